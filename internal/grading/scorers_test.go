package grading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCorrectnessScorer(t *testing.T) {
	scorer := correctnessScorer{h: DefaultHeuristics()}
	criterion := Criterion{Name: "Code Correctness", MaxPoints: 40}

	t.Run("clean run earns full credit", func(t *testing.T) {
		score := scorer.Score(strongDoc(), criterion)
		require.Equal(t, 40.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "free of execution errors")
	})

	t.Run("errors scale the award down", func(t *testing.T) {
		doc := newDoc("half.ipynb",
			codeCell("1/0", 1, errOut("ZeroDivisionError: division by zero")),
			codeCell("x = 1", 2, textOut("")),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 20.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "1 of 2 code cells raised errors")
	})

	t.Run("mostly unexecuted halves the award", func(t *testing.T) {
		doc := newDoc("stale.ipynb",
			codeCell("x = 1", 0),
			codeCell("y = 2", 0),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 20.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "never executed")
	})

	t.Run("no code cells scores zero", func(t *testing.T) {
		doc := newDoc("prose.ipynb", markdownCell("# Notes"))
		score := scorer.Score(doc, criterion)
		require.Zero(t, score.PointsAwarded)
	})
}

func TestQualityScorer(t *testing.T) {
	scorer := qualityScorer{h: DefaultHeuristics()}
	criterion := Criterion{Name: "Code Quality", MaxPoints: 20}

	t.Run("commented clean code has no issues", func(t *testing.T) {
		doc := newDoc("clean.ipynb",
			codeCell("# helper\ntotal = sum(values)", 1, textOut("10")),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 20.0, score.PointsAwarded)
		require.Equal(t, "No major code quality issues detected.", score.Comment)
	})

	t.Run("each issue removes a tenth", func(t *testing.T) {
		longLine := "value = '" + strings.Repeat("a", 120) + "'"
		doc := newDoc("messy.ipynb",
			codeCell("print('debug: checkpoint')", 1, textOut("debug: checkpoint")),
			codeCell("# TODO: vectorize\nresult = [min(row) for row in grid]\n"+longLine, 2, textOut("done")),
		)
		score := scorer.Score(doc, criterion)
		// Three issues: a long line, debug prints, TODO markers.
		require.Equal(t, 14.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "TODO/FIXME")
		require.Contains(t, score.Comment, "debug print")
	})

	t.Run("missing comments count as an issue", func(t *testing.T) {
		doc := newDoc("bare.ipynb",
			codeCell("total = sum(values)", 1, textOut("10")),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 18.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "no inline comments")
	})

	t.Run("duplicated cells count as an issue", func(t *testing.T) {
		text := "values = load_values('data.csv')\ntotal = sum(values)"
		doc := newDoc("copied.ipynb",
			codeCell(text, 1, textOut("10")),
			codeCell(text, 2, textOut("10")),
		)
		score := scorer.Score(doc, criterion)
		// Duplicate cell plus missing comments.
		require.Equal(t, 16.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "near-identical")
	})

	t.Run("long cells without nearby narrative count", func(t *testing.T) {
		doc := newDoc("wall.ipynb",
			codeCell(strings.Repeat("x = 1\n", 31), 1, textOut("1")),
		)
		score := scorer.Score(doc, criterion)
		// Oversized cell plus missing comments.
		require.Equal(t, 16.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "narrative")
	})

	t.Run("award never drops below the floor", func(t *testing.T) {
		harsh := DefaultHeuristics()
		harsh.QualityIssuePenalty = 0.4
		scorer := qualityScorer{h: harsh}
		doc := newDoc("messy.ipynb",
			codeCell("print('debug: checkpoint')\n# TODO: clean up", 1),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 6.0, score.PointsAwarded)
	})

	t.Run("no code cells scores zero", func(t *testing.T) {
		doc := newDoc("prose.ipynb", markdownCell("# Notes"))
		score := scorer.Score(doc, criterion)
		require.Zero(t, score.PointsAwarded)
	})
}

func TestDocumentationScorer(t *testing.T) {
	scorer := documentationScorer{h: DefaultHeuristics()}
	criterion := Criterion{Name: "Documentation & Comments", MaxPoints: 15}

	t.Run("narrative plus comments earns full credit", func(t *testing.T) {
		doc := newDoc("rich.ipynb",
			markdownCell("# Setup"),
			codeCell("# load the data\ndf = load()", 1, textOut("ok")),
			codeCell("# summarize\ndf.describe()", 2, textOut("table")),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 15.0, score.PointsAwarded)
	})

	t.Run("sparse narrative earns the partial tier", func(t *testing.T) {
		doc := newDoc("sparse.ipynb",
			markdownCell("# Intro"),
			codeCell("a = 1\nb = 2", 1, textOut("")),
			codeCell("c = 3\nd = 4", 2, textOut("")),
			codeCell("e = 5\nf = 6", 3, textOut("")),
			codeCell("g = 7\nh = 8", 4, textOut("")),
			codeCell("i = 9\nj = 10", 5, textOut("")),
			codeCell("k = 11\n# running total", 6, textOut("")),
		)
		score := scorer.Score(doc, criterion)
		// One narrative cell for six code cells, moderate comment density.
		require.Equal(t, 10.5, score.PointsAwarded)
		require.Contains(t, score.Comment, "more would help")
	})

	t.Run("no narrative scores near zero", func(t *testing.T) {
		doc := newDoc("bare.ipynb",
			codeCell("a = 1", 1, textOut("")),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 1.2, score.PointsAwarded)
		require.Contains(t, score.Comment, "No narrative cells")
	})

	t.Run("narrative-only notebook earns the prose tier", func(t *testing.T) {
		doc := newDoc("essay.ipynb", markdownCell("# Reflections"))
		score := scorer.Score(doc, criterion)
		require.Equal(t, 9.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "no code to document")
	})

	t.Run("empty notebook scores zero", func(t *testing.T) {
		score := scorer.Score(newDoc("empty.ipynb"), criterion)
		require.Zero(t, score.PointsAwarded)
	})
}

func TestCompletenessScorer(t *testing.T) {
	scorer := completenessScorer{h: DefaultHeuristics()}
	criterion := Criterion{Name: "Completeness", MaxPoints: 15}

	t.Run("full output coverage earns full credit", func(t *testing.T) {
		score := scorer.Score(strongDoc(), criterion)
		require.Equal(t, 15.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "Cells ran in order")
	})

	t.Run("half coverage earns the partial tier", func(t *testing.T) {
		doc := newDoc("half.ipynb",
			codeCell("a = compute()", 1, textOut("42")),
			codeCell("b = compute()", 2),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 10.5, score.PointsAwarded)
		require.Contains(t, score.Comment, "Only 1 of 2")
	})

	t.Run("little coverage earns the low tier", func(t *testing.T) {
		doc := newDoc("thin.ipynb",
			codeCell("a = compute()", 1, textOut("42")),
			codeCell("b = compute()", 0),
			codeCell("c = compute()", 0),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 6.0, score.PointsAwarded)
	})

	t.Run("out of order execution is called out", func(t *testing.T) {
		doc := newDoc("shuffled.ipynb",
			codeCell("a = compute()", 5, textOut("42")),
			codeCell("b = compute()", 2, textOut("43")),
		)
		score := scorer.Score(doc, criterion)
		require.Contains(t, score.Comment, "did not run in order")
	})

	t.Run("no code cells scores zero", func(t *testing.T) {
		doc := newDoc("prose.ipynb", markdownCell("# Notes"))
		score := scorer.Score(doc, criterion)
		require.Zero(t, score.PointsAwarded)
	})
}

func TestCreativityScorer(t *testing.T) {
	scorer := creativityScorer{h: DefaultHeuristics()}
	criterion := Criterion{Name: "Creativity & Insight", MaxPoints: 10}

	t.Run("plain work earns the base", func(t *testing.T) {
		score := scorer.Score(strongDoc(), criterion)
		require.Equal(t, 6.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "Standard approach")
	})

	t.Run("rendered artifacts earn a bonus", func(t *testing.T) {
		doc := newDoc("viz.ipynb",
			codeCell("df.hist()", 1, artifactOut()),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 8.5, score.PointsAwarded)
		require.Contains(t, score.Comment, "visualizations")
	})

	t.Run("plotting code counts even without stored output", func(t *testing.T) {
		doc := newDoc("viz.ipynb",
			codeCell("plt.scatter(x, y)", 0),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 8.5, score.PointsAwarded)
	})

	t.Run("advanced language features stack with artifacts", func(t *testing.T) {
		doc := newDoc("fancy.ipynb",
			codeCell("df.plot()\nscale = lambda v: v / v.max()", 1, artifactOut()),
		)
		score := scorer.Score(doc, criterion)
		require.Equal(t, 10.0, score.PointsAwarded)
		require.Contains(t, score.Comment, "advanced language features")
	})

	t.Run("no code cells scores zero", func(t *testing.T) {
		doc := newDoc("prose.ipynb", markdownCell("# Notes"))
		score := scorer.Score(doc, criterion)
		require.Zero(t, score.PointsAwarded)
	})
}
