// Package grading evaluates parsed notebooks against weighted, rubric-based
// criteria. Scoring is deterministic and rule-based: the same document and
// criteria always produce an identical result, with no clocks, randomness,
// or external services involved.
package grading

// Criterion is one weighted axis of evaluation, supplied by the caller.
// The sum of MaxPoints across a criteria set defines the achievable total;
// the engine reports whatever total the supplied weights imply.
type Criterion struct {
	Name        string   `json:"name" toml:"name"`
	MaxPoints   float64  `json:"max_points" toml:"max_points"`
	Description string   `json:"description" toml:"description"`
	Rubric      []string `json:"rubric" toml:"rubric"`
}

// CriterionScore is the outcome of evaluating one criterion against one
// notebook. PointsAwarded always satisfies 0 <= value <= MaxPoints.
type CriterionScore struct {
	Criterion     Criterion `json:"criterion"`
	PointsAwarded float64   `json:"points_awarded"`
	Comment       string    `json:"comment"`
}

// Fraction returns the awarded share of the criterion's maximum, used to
// compare differently-weighted criteria.
func (s CriterionScore) Fraction() float64 {
	if s.Criterion.MaxPoints <= 0 {
		return 0
	}
	return s.PointsAwarded / s.Criterion.MaxPoints
}

// Result is the final grading output for one submission. It is created
// fresh per run and never mutated afterward; exporters only reformat it.
type Result struct {
	StudentIdentifier string           `json:"student_identifier"`
	FileName          string           `json:"file_name"`
	Scores            []CriterionScore `json:"scores"`
	TotalPoints       float64          `json:"total_points"`
	MaxPossible       float64          `json:"max_possible"`
	Percentage        float64          `json:"percentage"`
	LetterGrade       string           `json:"letter_grade"`
	Feedback          string           `json:"feedback"`
	Strengths         []string         `json:"strengths"`
	Improvements      []string         `json:"improvements"`
}
