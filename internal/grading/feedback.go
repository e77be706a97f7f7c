package grading

import (
	"fmt"
	"strings"
)

const maxFeedbackItems = 5

// LetterGrade converts a percentage to the letter scale printed on reports.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 97:
		return "A+"
	case percentage >= 93:
		return "A"
	case percentage >= 90:
		return "A-"
	case percentage >= 87:
		return "B+"
	case percentage >= 83:
		return "B"
	case percentage >= 80:
		return "B-"
	case percentage >= 77:
		return "C+"
	case percentage >= 73:
		return "C"
	case percentage >= 70:
		return "C-"
	case percentage >= 67:
		return "D+"
	case percentage >= 63:
		return "D"
	case percentage >= 60:
		return "D-"
	default:
		return "F"
	}
}

// selectExtremes returns the strongest and weakest criterion scores by
// fraction of max points, not raw points, so differently weighted criteria
// stay comparable. Ties keep the earliest criterion so repeated runs render
// identical feedback.
func selectExtremes(scores []CriterionScore) (best, worst CriterionScore, ok bool) {
	if len(scores) == 0 {
		return CriterionScore{}, CriterionScore{}, false
	}
	best, worst = scores[0], scores[0]
	for _, s := range scores[1:] {
		if s.Fraction() > best.Fraction() {
			best = s
		}
		if s.Fraction() < worst.Fraction() {
			worst = s
		}
	}
	return best, worst, true
}

func overallFeedback(percentage float64, letter string, scores []CriterionScore) string {
	var tone string
	switch {
	case percentage >= 90:
		tone = "Excellent work! "
	case percentage >= 80:
		tone = "Good job! "
	case percentage >= 70:
		tone = "Satisfactory work. "
	case percentage >= 60:
		tone = "Needs improvement. "
	default:
		tone = "Please see me during office hours. "
	}

	feedback := tone + fmt.Sprintf("Your submission earned %.1f%% (%s). ", percentage, letter)

	best, worst, ok := selectExtremes(scores)
	if !ok {
		return strings.TrimSpace(feedback)
	}

	feedback += fmt.Sprintf("Key strength: %s. %s", best.Criterion.Name, best.Comment)
	if percentage < 95 && worst.Criterion.Name != best.Criterion.Name {
		feedback += fmt.Sprintf(" To improve: %s. %s", worst.Criterion.Name, worst.Comment)
	}

	return strings.TrimSpace(feedback)
}

// summaryFeedback derives the bullet lists shown next to the numeric
// breakdown. Each list carries at most maxFeedbackItems entries and never
// comes back empty.
func summaryFeedback(stats documentStats, h Heuristics) (strengths, improvements []string) {
	if stats.codeCells > 0 && stats.erroredCells == 0 {
		strengths = append(strengths, "Code runs without errors")
	}
	if stats.hasGoodDocumentation(h) {
		strengths = append(strengths, "Well-documented with markdown cells")
	}
	if stats.commentRatio > h.CommentRatioGood {
		strengths = append(strengths, "Good use of code comments")
	}
	if stats.executedCells > 0 && stats.executedInOrder {
		strengths = append(strengths, "Notebook is organized and runs in order")
	}

	if stats.erroredCells > 0 {
		improvements = append(improvements, "Fix code errors to improve correctness score")
	}
	if !stats.hasGoodDocumentation(h) {
		improvements = append(improvements, "Add more markdown cells to explain your approach")
	}
	if stats.commentRatio < h.CommentRatioModerate {
		improvements = append(improvements, "Add more comments to explain complex code")
	}
	if stats.longLines > 0 || stats.hasDebugPrints || stats.hasTODOMarkers {
		improvements = append(improvements, "Address code quality issues (long lines, debug prints)")
	}

	if len(strengths) == 0 {
		strengths = append(strengths, "Submitted assignment on time")
	}
	if len(improvements) == 0 {
		improvements = append(improvements, "Keep up the excellent work!")
	}
	if len(strengths) > maxFeedbackItems {
		strengths = strengths[:maxFeedbackItems]
	}
	if len(improvements) > maxFeedbackItems {
		improvements = improvements[:maxFeedbackItems]
	}
	return strengths, improvements
}
