package grading

// Heuristics carries every tunable threshold used by the canonical scorers.
// A value is fixed for the lifetime of an Engine; callers needing different
// thresholds construct a new Engine rather than mutating shared state.
type Heuristics struct {
	// Quality thresholds.
	LongLineLimit       int     // columns before a line counts as overlong
	LongCellLineLimit   int     // lines before a cell needs adjacent narrative
	QualityIssuePenalty float64 // fraction removed per detected issue
	QualityFloor        float64 // lowest quality fraction while code exists
	DuplicateMinChars   int     // normalized length before duplication counts

	// Comment density cutoffs (comment lines / code lines).
	CommentRatioGood     float64
	CommentRatioModerate float64

	// Documentation scoring.
	DocCellRatioGood  float64 // documentation cells per code cell
	DocScoreGood      float64
	DocScorePartial   float64
	DocScoreNone      float64 // near zero: code without narrative
	DocOnlyScore      float64 // narrative-only notebook
	LowCommentPenalty float64 // multiplier when comments are scarce
	CommentBonus      float64 // added when comment density is good

	// Correctness scoring.
	ExecutedFractionLow float64 // below this, most cells never ran
	UnexecutedPenalty   float64 // multiplier applied in that case

	// Completeness tiers over executed-with-output coverage.
	OutputCoverageFull    float64
	OutputCoveragePartial float64
	CompletenessPartial   float64
	CompletenessLow       float64

	// Creativity scoring.
	CreativityBase          float64
	CreativityArtifactBonus float64
	CreativityAdvancedBonus float64

	// Unknown criteria receive this fraction as partial credit.
	PartialCreditFraction float64

	// Pattern lists scanned over concatenated code text.
	VisualizationPatterns []string
	AdvancedPatterns      []string
}

// DefaultHeuristics returns the tuned thresholds used in production.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		LongLineLimit:       100,
		LongCellLineLimit:   30,
		QualityIssuePenalty: 0.1,
		QualityFloor:        0.3,
		DuplicateMinChars:   40,

		CommentRatioGood:     0.10,
		CommentRatioModerate: 0.05,

		DocCellRatioGood:  0.2,
		DocScoreGood:      0.9,
		DocScorePartial:   0.7,
		DocScoreNone:      0.1,
		DocOnlyScore:      0.6,
		LowCommentPenalty: 0.8,
		CommentBonus:      0.1,

		ExecutedFractionLow: 0.5,
		UnexecutedPenalty:   0.5,

		OutputCoverageFull:    0.8,
		OutputCoveragePartial: 0.5,
		CompletenessPartial:   0.7,
		CompletenessLow:       0.4,

		CreativityBase:          0.6,
		CreativityArtifactBonus: 0.25,
		CreativityAdvancedBonus: 0.15,

		PartialCreditFraction: 0.7,

		VisualizationPatterns: []string{
			"plt.", "plot(", "figure(", "seaborn", "sns.", "plotly", "chart",
		},
		AdvancedPatterns: []string{
			"lambda", "list comprehension", "dict comprehension",
			"decorator", "generator", "async", "class ",
		},
	}
}
