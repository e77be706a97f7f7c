package grading

// DefaultCriteria returns the standard five-criterion rubric used when a
// batch does not bring its own. Weights sum to 100 points.
func DefaultCriteria() []Criterion {
	return []Criterion{
		{
			Name:        "Code Correctness",
			MaxPoints:   40,
			Description: "Code runs without errors and produces correct output",
			Rubric: []string{
				"Code executes without syntax errors",
				"Output matches expected results",
				"Edge cases are handled appropriately",
				"Logic is sound and algorithms are correct",
			},
		},
		{
			Name:        "Code Quality",
			MaxPoints:   20,
			Description: "Code is well-written, clean, and follows best practices",
			Rubric: []string{
				"Variables have meaningful names",
				"Code is properly indented and formatted",
				"Functions are used appropriately",
				"No redundant or duplicate code",
			},
		},
		{
			Name:        "Documentation & Comments",
			MaxPoints:   15,
			Description: "Code is well-documented with helpful comments",
			Rubric: []string{
				"Comments explain complex logic",
				"Markdown cells provide context",
				"Function docstrings are present",
				"Overall flow is explained",
			},
		},
		{
			Name:        "Completeness",
			MaxPoints:   15,
			Description: "All required tasks and questions are addressed",
			Rubric: []string{
				"All required exercises completed",
				"All questions answered",
				"Required outputs displayed",
				"Assignment requirements met",
			},
		},
		{
			Name:        "Creativity & Insight",
			MaxPoints:   10,
			Description: "Shows original thinking and deep understanding",
			Rubric: []string{
				"Goes beyond minimum requirements",
				"Shows insight into the problem",
				"Includes helpful visualizations",
				"Demonstrates understanding of concepts",
			},
		},
	}
}
