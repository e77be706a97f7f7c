package grading

import (
	"fmt"

	"github.com/noah-isme/nilai-go-api/internal/notebook"
)

// Scorer is the single capability every criterion strategy implements.
// Implementations must be stateless across calls so batches can grade in
// parallel without locking.
type Scorer interface {
	Score(doc *notebook.Document, criterion Criterion) CriterionScore
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(doc *notebook.Document, criterion Criterion) CriterionScore

// Score implements Scorer.
func (f ScorerFunc) Score(doc *notebook.Document, criterion Criterion) CriterionScore {
	return f(doc, criterion)
}

func scoreOf(criterion Criterion, fraction float64, comment string) CriterionScore {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return CriterionScore{
		Criterion:     criterion,
		PointsAwarded: round2(fraction * criterion.MaxPoints),
		Comment:       comment,
	}
}

// correctnessScorer scales down with the fraction of code cells that raised
// errors, and further down when most code cells never executed.
type correctnessScorer struct {
	h Heuristics
}

func (s correctnessScorer) Score(doc *notebook.Document, criterion Criterion) CriterionScore {
	stats := analyzeDocument(doc, s.h)
	if stats.codeCells == 0 {
		return scoreOf(criterion, 0, "No code cells found, so correctness could not be assessed.")
	}

	fraction := 1 - stats.errorFraction()
	comment := fmt.Sprintf("%d of %d code cells raised errors.", stats.erroredCells, stats.codeCells)
	if stats.erroredCells == 0 {
		comment = fmt.Sprintf("All %d code cells are free of execution errors.", stats.codeCells)
	}

	if stats.executedFraction() < s.h.ExecutedFractionLow {
		fraction *= s.h.UnexecutedPenalty
		comment += " Most code cells were never executed."
	}

	return scoreOf(criterion, fraction, comment)
}

// qualityScorer counts style issues: overlong lines, leftover debug prints,
// TODO/FIXME markers, oversized cells without adjacent narrative, missing
// inline comments, and copy-pasted cells.
type qualityScorer struct {
	h Heuristics
}

func (s qualityScorer) Score(doc *notebook.Document, criterion Criterion) CriterionScore {
	stats := analyzeDocument(doc, s.h)
	if stats.codeCells == 0 {
		return scoreOf(criterion, 0, "No code cells found, so code quality could not be assessed.")
	}

	var issues []string
	if stats.longLines > 0 {
		issues = append(issues, fmt.Sprintf("%d lines exceed %d characters", stats.longLines, s.h.LongLineLimit))
	}
	if stats.hasDebugPrints {
		issues = append(issues, "possible debug print statements left in code")
	}
	if stats.hasTODOMarkers {
		issues = append(issues, "TODO/FIXME markers still present")
	}
	if stats.oversizedUndocumented > 0 {
		issues = append(issues, fmt.Sprintf("%d long cells lack nearby narrative", stats.oversizedUndocumented))
	}
	if stats.duplicateCells > 0 {
		issues = append(issues, fmt.Sprintf("%d near-identical code cells", stats.duplicateCells))
	}
	if stats.commentLines == 0 && stats.codeLines > 0 {
		issues = append(issues, "code carries no inline comments")
	}

	fraction := 1 - s.h.QualityIssuePenalty*float64(len(issues))
	if fraction < s.h.QualityFloor {
		fraction = s.h.QualityFloor
	}

	comment := "No major code quality issues detected."
	if len(issues) > 0 {
		comment = "Issues found: " + joinIssues(issues) + "."
	}

	return scoreOf(criterion, fraction, comment)
}

// documentationScorer scales with the ratio of narrative cells and inline
// comments to code. Code without any narrative scores near zero no matter
// how much of it there is.
type documentationScorer struct {
	h Heuristics
}

func (s documentationScorer) Score(doc *notebook.Document, criterion Criterion) CriterionScore {
	stats := analyzeDocument(doc, s.h)

	if stats.codeCells == 0 {
		if stats.docCells == 0 {
			return scoreOf(criterion, 0, "The notebook contains no cells to document.")
		}
		return scoreOf(criterion, s.h.DocOnlyScore,
			fmt.Sprintf("%d narrative cells present, but there is no code to document.", stats.docCells))
	}

	var fraction float64
	var comment string
	switch {
	case stats.hasGoodDocumentation(s.h):
		fraction = s.h.DocScoreGood
		comment = fmt.Sprintf("Good use of narrative cells (%d alongside %d code cells).", stats.docCells, stats.codeCells)
	case stats.docCells > 0:
		fraction = s.h.DocScorePartial
		comment = fmt.Sprintf("Some narrative present (%d cells); more would help.", stats.docCells)
	default:
		fraction = s.h.DocScoreNone
		comment = "No narrative cells explain the work."
	}

	switch {
	case stats.commentRatio >= s.h.CommentRatioGood:
		fraction += s.h.CommentBonus
		comment += " Inline comment density is good."
	case stats.commentRatio >= s.h.CommentRatioModerate:
		comment += " Inline comment density is moderate."
	default:
		fraction *= s.h.LowCommentPenalty
		comment += " Inline comments are scarce."
	}

	return scoreOf(criterion, fraction, comment)
}

// completenessScorer rewards code cells that both executed and produced
// visible output.
type completenessScorer struct {
	h Heuristics
}

func (s completenessScorer) Score(doc *notebook.Document, criterion Criterion) CriterionScore {
	stats := analyzeDocument(doc, s.h)
	if stats.codeCells == 0 {
		return scoreOf(criterion, 0, "No code cells found; nothing was completed.")
	}

	coverage := stats.outputCoverage()
	var fraction float64
	var comment string
	switch {
	case coverage >= s.h.OutputCoverageFull:
		fraction = 1
		comment = fmt.Sprintf("%d of %d code cells executed with output.", stats.executedWithOutput, stats.codeCells)
	case coverage >= s.h.OutputCoveragePartial:
		fraction = s.h.CompletenessPartial
		comment = fmt.Sprintf("Only %d of %d code cells executed with output.", stats.executedWithOutput, stats.codeCells)
	default:
		fraction = s.h.CompletenessLow
		comment = fmt.Sprintf("Most code cells show no output (%d of %d).", stats.executedWithOutput, stats.codeCells)
	}

	if stats.executedInOrder {
		comment += " Cells ran in order."
	} else {
		comment += " Cells did not run in order."
	}

	return scoreOf(criterion, fraction, comment)
}

// creativityScorer is bonus-leaning: rendered artifacts and advanced
// language patterns raise a moderate base.
type creativityScorer struct {
	h Heuristics
}

func (s creativityScorer) Score(doc *notebook.Document, criterion Criterion) CriterionScore {
	stats := analyzeDocument(doc, s.h)
	if stats.codeCells == 0 {
		return scoreOf(criterion, 0, "No code cells found, so there are no creative signals to reward.")
	}

	fraction := s.h.CreativityBase
	comment := "Standard approach; consider adding visualizations or extra analysis."

	if stats.hasArtifactOutput || stats.hasVizPatterns {
		fraction += s.h.CreativityArtifactBonus
		comment = "Includes data visualizations."
	}
	if stats.advancedHits > 0 {
		fraction += s.h.CreativityAdvancedBonus
		if stats.hasArtifactOutput || stats.hasVizPatterns {
			comment = "Includes data visualizations and advanced language features."
		} else {
			comment = "Uses advanced language features."
		}
	}

	return scoreOf(criterion, fraction, comment)
}

// partialCreditScorer handles criteria without a registered strategy.
type partialCreditScorer struct {
	h Heuristics
}

func (s partialCreditScorer) Score(_ *notebook.Document, criterion Criterion) CriterionScore {
	return scoreOf(criterion, s.h.PartialCreditFraction,
		fmt.Sprintf("No automated strategy for %q; partial credit awarded pending manual review.", criterion.Name))
}

func joinIssues(issues []string) string {
	out := issues[0]
	for _, issue := range issues[1:] {
		out += "; " + issue
	}
	return out
}
