package grading

import (
	"strings"

	"github.com/noah-isme/nilai-go-api/internal/notebook"
)

// documentStats aggregates every signal the scorers read, computed once per
// grading run so each scorer stays a cheap pure function over it.
type documentStats struct {
	totalCells         int
	codeCells          int
	docCells           int
	erroredCells       int
	executedCells      int
	executedWithOutput int
	executedInOrder    bool

	totalLines   int
	codeLines    int
	commentLines int
	blankLines   int
	commentRatio float64

	longLines             int
	hasDebugPrints        bool
	hasTODOMarkers        bool
	oversizedUndocumented int
	duplicateCells        int

	hasArtifactOutput bool
	hasVizPatterns    bool
	advancedHits      int
}

func (s documentStats) errorFraction() float64 {
	if s.codeCells == 0 {
		return 0
	}
	return float64(s.erroredCells) / float64(s.codeCells)
}

func (s documentStats) executedFraction() float64 {
	if s.codeCells == 0 {
		return 0
	}
	return float64(s.executedCells) / float64(s.codeCells)
}

func (s documentStats) outputCoverage() float64 {
	if s.codeCells == 0 {
		return 0
	}
	return float64(s.executedWithOutput) / float64(s.codeCells)
}

func (s documentStats) hasGoodDocumentation(h Heuristics) bool {
	if s.codeCells == 0 {
		return s.docCells > 0
	}
	return float64(s.docCells) >= float64(s.codeCells)*h.DocCellRatioGood
}

func analyzeDocument(doc *notebook.Document, h Heuristics) documentStats {
	stats := documentStats{totalCells: len(doc.Cells), executedInOrder: true}

	allCode := doc.AllCode()
	lowerCode := strings.ToLower(allCode)

	normalized := make(map[string]int)
	lastCount := 0

	for i, cell := range doc.Cells {
		if cell.Kind == notebook.KindDocumentation {
			stats.docCells++
			continue
		}

		stats.codeCells++
		if cell.HasError {
			stats.erroredCells++
		}
		if cell.Executed() {
			stats.executedCells++
			if hasVisibleOutput(cell) {
				stats.executedWithOutput++
			}
			if cell.ExecutionCount < lastCount {
				stats.executedInOrder = false
			}
			lastCount = cell.ExecutionCount
		}

		for _, output := range cell.Outputs {
			if output.Kind == notebook.OutputArtifact {
				stats.hasArtifactOutput = true
			}
		}

		analyzeCellText(cell.Text, h, &stats)

		if cellLineCount(cell.Text) > h.LongCellLineLimit && !hasAdjacentDocumentation(doc.Cells, i) {
			stats.oversizedUndocumented++
		}

		if key := normalizeCode(cell.Text); len(key) >= h.DuplicateMinChars {
			normalized[key]++
		}
	}

	for _, count := range normalized {
		if count > 1 {
			stats.duplicateCells += count - 1
		}
	}

	if stats.codeLines > 0 {
		stats.commentRatio = float64(stats.commentLines) / float64(stats.codeLines)
	} else if stats.commentLines > 0 {
		stats.commentRatio = 1
	}

	stats.hasDebugPrints = strings.Contains(lowerCode, "print(") &&
		(strings.Contains(lowerCode, "debug") || strings.Contains(lowerCode, "test"))
	stats.hasTODOMarkers = strings.Contains(lowerCode, "todo") || strings.Contains(lowerCode, "fixme")

	for _, pattern := range h.VisualizationPatterns {
		if strings.Contains(allCode, pattern) {
			stats.hasVizPatterns = true
			break
		}
	}
	for _, pattern := range h.AdvancedPatterns {
		if strings.Contains(allCode, pattern) {
			stats.advancedHits++
		}
	}

	return stats
}

func analyzeCellText(text string, h Heuristics, stats *documentStats) {
	for _, line := range strings.Split(text, "\n") {
		stats.totalLines++
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			stats.blankLines++
		case strings.HasPrefix(trimmed, "#"):
			stats.commentLines++
		default:
			stats.codeLines++
		}
		if len(line) > h.LongLineLimit {
			stats.longLines++
		}
	}
}

func hasVisibleOutput(cell notebook.Cell) bool {
	for _, output := range cell.Outputs {
		if output.Kind != notebook.OutputError {
			return true
		}
	}
	return false
}

func cellLineCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}

func hasAdjacentDocumentation(cells []notebook.Cell, index int) bool {
	if index > 0 && cells[index-1].Kind == notebook.KindDocumentation {
		return true
	}
	if index+1 < len(cells) && cells[index+1].Kind == notebook.KindDocumentation {
		return true
	}
	return false
}

// normalizeCode strips comments, blank lines, and spacing so near-identical
// cells compare equal when checking for copy-pasted blocks.
func normalizeCode(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		b.WriteString(strings.Join(strings.Fields(trimmed), " "))
		b.WriteByte('\n')
	}
	return b.String()
}
