package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLetterGrade(t *testing.T) {
	cases := []struct {
		percentage float64
		want       string
	}{
		{100, "A+"},
		{97, "A+"},
		{96.99, "A"},
		{93, "A"},
		{90, "A-"},
		{89.99, "B+"},
		{87, "B+"},
		{83, "B"},
		{80, "B-"},
		{77, "C+"},
		{73, "C"},
		{70, "C-"},
		{67, "D+"},
		{63, "D"},
		{60, "D-"},
		{59.99, "F"},
		{0, "F"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, LetterGrade(tc.percentage), "percentage %.2f", tc.percentage)
	}
}

func TestSelectExtremesBreaksTiesByInputOrder(t *testing.T) {
	scores := []CriterionScore{
		{Criterion: Criterion{Name: "Middle", MaxPoints: 10}, PointsAwarded: 5},
		{Criterion: Criterion{Name: "First High", MaxPoints: 10}, PointsAwarded: 10},
		{Criterion: Criterion{Name: "Second High", MaxPoints: 20}, PointsAwarded: 20},
		{Criterion: Criterion{Name: "First Low", MaxPoints: 10}, PointsAwarded: 2},
		{Criterion: Criterion{Name: "Second Low", MaxPoints: 100}, PointsAwarded: 20},
	}

	best, worst, ok := selectExtremes(scores)

	require.True(t, ok)
	require.Equal(t, "First High", best.Criterion.Name)
	require.Equal(t, "First Low", worst.Criterion.Name)
}

func TestSelectExtremesEmpty(t *testing.T) {
	_, _, ok := selectExtremes(nil)
	require.False(t, ok)
}

func TestOverallFeedbackTones(t *testing.T) {
	cases := []struct {
		percentage float64
		wantPrefix string
	}{
		{96, "Excellent work!"},
		{85, "Good job!"},
		{72, "Satisfactory work."},
		{61, "Needs improvement."},
		{40, "Please see me during office hours."},
	}
	for _, tc := range cases {
		got := overallFeedback(tc.percentage, LetterGrade(tc.percentage), nil)
		require.Contains(t, got, tc.wantPrefix)
		require.Contains(t, got, "Your submission earned")
	}
}

func TestOverallFeedbackNamesStrongAndWeakCriteria(t *testing.T) {
	scores := []CriterionScore{
		{Criterion: Criterion{Name: "Code Correctness", MaxPoints: 40}, PointsAwarded: 40, Comment: "All clear."},
		{Criterion: Criterion{Name: "Completeness", MaxPoints: 15}, PointsAwarded: 6, Comment: "Most cells show no output."},
	}

	got := overallFeedback(82.0, "B-", scores)

	require.Contains(t, got, "Key strength: Code Correctness. All clear.")
	require.Contains(t, got, "To improve: Completeness. Most cells show no output.")
}

func TestOverallFeedbackSkipsImprovementForTopMarks(t *testing.T) {
	scores := []CriterionScore{
		{Criterion: Criterion{Name: "Code Correctness", MaxPoints: 40}, PointsAwarded: 40, Comment: "All clear."},
		{Criterion: Criterion{Name: "Completeness", MaxPoints: 15}, PointsAwarded: 14, Comment: "Nearly all output present."},
	}

	got := overallFeedback(98.0, "A+", scores)

	require.Contains(t, got, "Key strength: Code Correctness.")
	require.NotContains(t, got, "To improve")
}

func TestSummaryFeedbackFallbacks(t *testing.T) {
	h := DefaultHeuristics()

	t.Run("empty notebook still yields one strength", func(t *testing.T) {
		stats := analyzeDocument(newDoc("empty.ipynb"), h)
		strengths, improvements := summaryFeedback(stats, h)
		require.Equal(t, []string{"Submitted assignment on time"}, strengths)
		require.Contains(t, improvements, "Add more markdown cells to explain your approach")
	})

	t.Run("strong notebook still yields one improvement", func(t *testing.T) {
		stats := analyzeDocument(strongDoc(), h)
		strengths, improvements := summaryFeedback(stats, h)
		require.Contains(t, strengths, "Code runs without errors")
		require.Contains(t, strengths, "Notebook is organized and runs in order")
		require.Equal(t, []string{"Keep up the excellent work!"}, improvements)
	})

	t.Run("errors surface first in improvements", func(t *testing.T) {
		doc := newDoc("broken.ipynb",
			codeCell("1/0", 1, errOut("ZeroDivisionError: division by zero")),
		)
		stats := analyzeDocument(doc, h)
		_, improvements := summaryFeedback(stats, h)
		require.Equal(t, "Fix code errors to improve correctness score", improvements[0])
	})
}
