package notebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel reasons carried by ParseError.
var (
	// ErrNotJSON indicates the submission content is not decodable JSON.
	ErrNotJSON = errors.New("content is not valid notebook json")
	// ErrMissingCellArray indicates no cell list was found in the content.
	ErrMissingCellArray = errors.New("notebook has no cell array")
)

// ParseError is the fatal, per-submission parse failure. The submission is
// ungradable and must be reported as failed rather than scored zero.
type ParseError struct {
	FileName string
	Reason   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.FileName, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Reason
}

var nullLiteral = []byte("null")

type rawCell struct {
	CellType       string            `json:"cell_type"`
	Source         json.RawMessage   `json:"source"`
	ExecutionCount json.RawMessage   `json:"execution_count"`
	Outputs        []json.RawMessage `json:"outputs"`
}

type rawOutput struct {
	OutputType string                     `json:"output_type"`
	Text       json.RawMessage            `json:"text"`
	Data       map[string]json.RawMessage `json:"data"`
	EName      string                     `json:"ename"`
	EValue     string                     `json:"evalue"`
}

// Parse decodes one notebook's raw content into a Document. It fails with a
// *ParseError when the content is not JSON or carries no cell array; a
// malformed individual cell is skipped with a warning instead of aborting
// the whole parse.
func Parse(content []byte, fileName string) (*Document, error) {
	var top struct {
		Cells json.RawMessage `json:"cells"`
	}
	if err := json.Unmarshal(content, &top); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ParseError{FileName: fileName, Reason: ErrMissingCellArray}
		}
		return nil, &ParseError{FileName: fileName, Reason: ErrNotJSON}
	}

	trimmed := bytes.TrimSpace(top.Cells)
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return nil, &ParseError{FileName: fileName, Reason: ErrMissingCellArray}
	}

	var rawCells []json.RawMessage
	if err := json.Unmarshal(trimmed, &rawCells); err != nil {
		return nil, &ParseError{FileName: fileName, Reason: ErrMissingCellArray}
	}

	doc := &Document{
		SourceFileName: fileName,
		Cells:          make([]Cell, 0, len(rawCells)),
	}

	for i, raw := range rawCells {
		cell, warnings, err := decodeCell(raw)
		if err != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("cell %d skipped: %v", i+1, err))
			continue
		}
		doc.Warnings = append(doc.Warnings, warnings...)
		doc.Cells = append(doc.Cells, cell)
	}

	return doc, nil
}

func decodeCell(raw json.RawMessage) (Cell, []string, error) {
	var rc rawCell
	if err := json.Unmarshal(raw, &rc); err != nil {
		return Cell{}, nil, errors.New("entry is not a cell object")
	}

	text, err := decodeSource(rc.Source)
	if err != nil {
		return Cell{}, nil, fmt.Errorf("invalid source field: %w", err)
	}

	// Unrecognized cell types become documentation so their content is
	// preserved without counting toward code-presence checks.
	if rc.CellType != "code" {
		return Cell{Kind: KindDocumentation, Text: text}, nil, nil
	}

	cell := Cell{
		Kind:           KindCode,
		Text:           text,
		ExecutionCount: decodeExecutionCount(rc.ExecutionCount),
	}

	var warnings []string
	for _, rawOut := range rc.Outputs {
		output, ok := decodeOutput(rawOut)
		if !ok {
			warnings = append(warnings, "output record skipped: not an output object")
			continue
		}
		if output.Kind == OutputError {
			cell.HasError = true
		}
		cell.Outputs = append(cell.Outputs, output)
	}

	return cell, warnings, nil
}

// decodeSource accepts the two on-disk shapes of a cell source: a plain
// string, or an ordered list of string fragments that concatenate.
func decodeSource(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return "", nil
	}

	var single string
	if err := json.Unmarshal(trimmed, &single); err == nil {
		return single, nil
	}

	var fragments []string
	if err := json.Unmarshal(trimmed, &fragments); err == nil {
		return strings.Join(fragments, ""), nil
	}

	return "", errors.New("source is neither string nor fragment list")
}

// decodeExecutionCount normalizes absent, null, zero, negative, and
// non-numeric markers to 0 ("never executed").
func decodeExecutionCount(raw json.RawMessage) int {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return 0
	}

	var count int
	if err := json.Unmarshal(trimmed, &count); err != nil {
		return 0
	}
	if count < 0 {
		return 0
	}
	return count
}

func decodeOutput(raw json.RawMessage) (Output, bool) {
	var ro rawOutput
	if err := json.Unmarshal(raw, &ro); err != nil {
		return Output{}, false
	}

	switch ro.OutputType {
	case "error":
		return Output{Kind: OutputError, Text: errorText(ro)}, true
	case "execute_result", "display_data":
		if hasRenderedData(ro.Data) {
			return Output{Kind: OutputArtifact}, true
		}
		return Output{Kind: OutputText, Text: mimeText(ro.Data)}, true
	default:
		// "stream" and anything unrecognized count as textual output.
		text, err := decodeSource(ro.Text)
		if err != nil {
			text = ""
		}
		return Output{Kind: OutputText, Text: text}, true
	}
}

func errorText(ro rawOutput) string {
	name := strings.TrimSpace(ro.EName)
	value := strings.TrimSpace(ro.EValue)
	switch {
	case name != "" && value != "":
		return name + ": " + value
	case name != "":
		return name
	default:
		return value
	}
}

// hasRenderedData reports whether a rich output carries an image or plot
// payload. The payload itself is never decoded.
func hasRenderedData(data map[string]json.RawMessage) bool {
	for mime := range data {
		if strings.HasPrefix(mime, "image/") || strings.HasPrefix(mime, "application/vnd.plotly") {
			return true
		}
	}
	return false
}

func mimeText(data map[string]json.RawMessage) string {
	raw, ok := data["text/plain"]
	if !ok {
		return ""
	}
	text, err := decodeSource(raw)
	if err != nil {
		return ""
	}
	return text
}
