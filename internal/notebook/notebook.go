// Package notebook parses Jupyter notebook files into a normalized
// in-memory model suitable for rubric-based grading. Parsing is pure:
// no filesystem, network, or shared state.
package notebook

import "strings"

// CellKind classifies a notebook cell.
type CellKind string

const (
	// KindCode marks an executable cell.
	KindCode CellKind = "code"
	// KindDocumentation marks a narrative (markdown or unrecognized) cell.
	KindDocumentation CellKind = "documentation"
)

// OutputKind classifies a single captured cell output.
type OutputKind string

const (
	// OutputText is plain textual output (streams, printed results).
	OutputText OutputKind = "text"
	// OutputArtifact marks a rendered artifact such as an image or plot.
	// Presence alone is significant; the content is never decoded.
	OutputArtifact OutputKind = "artifact"
	// OutputError marks a raised runtime error captured during execution.
	OutputError OutputKind = "error"
)

// Output is one captured output record of a code cell, in document order.
type Output struct {
	Kind OutputKind
	Text string
}

// Cell is one executable or narrative unit of a notebook.
type Cell struct {
	Kind CellKind
	Text string
	// ExecutionCount is the execution ordinal; 0 means the cell never ran.
	ExecutionCount int
	Outputs        []Output
	// HasError is true when any output is an error record.
	HasError bool
}

// Executed reports whether the cell ran at least once.
func (c Cell) Executed() bool {
	return c.ExecutionCount > 0
}

// HasOutput reports whether the cell produced at least one output record.
func (c Cell) HasOutput() bool {
	return len(c.Outputs) > 0
}

// Document is the normalized result of parsing one submitted notebook.
// Cells keep document order; an empty slice is a valid zero-content state.
type Document struct {
	SourceFileName string
	Cells          []Cell
	// Warnings collects non-fatal parse notes such as skipped cells.
	Warnings []string
}

// CodeCells returns the code cells in document order.
func (d *Document) CodeCells() []Cell {
	cells := make([]Cell, 0, len(d.Cells))
	for _, cell := range d.Cells {
		if cell.Kind == KindCode {
			cells = append(cells, cell)
		}
	}
	return cells
}

// DocumentationCells returns the narrative cells in document order.
func (d *Document) DocumentationCells() []Cell {
	cells := make([]Cell, 0, len(d.Cells))
	for _, cell := range d.Cells {
		if cell.Kind == KindDocumentation {
			cells = append(cells, cell)
		}
	}
	return cells
}

// AllCode concatenates the source of every code cell, separated by blank
// lines, for pattern-based inspection.
func (d *Document) AllCode() string {
	var parts []string
	for _, cell := range d.Cells {
		if cell.Kind == KindCode {
			parts = append(parts, cell.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}
