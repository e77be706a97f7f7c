// Package report renders grading results as CSV, JSON, and Markdown
// documents for instructors to download or archive.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/nilai-go-api/internal/grading"
)

// Format names accepted by the report endpoints and the CLI.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// csvHeader is the column order spreadsheets built on earlier exports expect.
var csvHeader = []string{
	"Student Name", "Filename", "Total Score", "Max Score",
	"Percentage", "Letter Grade", "Overall Feedback",
}

// sanitizer strips any markup smuggled in through file names or notebook
// text before it lands in a rendered report.
var sanitizer = bluemonday.StrictPolicy()

// WriteCSV renders one row per result under the fixed header.
func WriteCSV(w io.Writer, results []grading.Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, result := range results {
		row := []string{
			result.StudentIdentifier,
			result.FileName,
			formatPoints(result.TotalPoints),
			formatPoints(result.MaxPossible),
			formatPoints(result.Percentage),
			result.LetterGrade,
			result.Feedback,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

type jsonSession struct {
	Timestamp        string  `json:"timestamp"`
	TotalSubmissions int     `json:"total_submissions"`
	AverageScore     float64 `json:"average_score"`
}

type jsonExport struct {
	GradingSession jsonSession      `json:"grading_session"`
	Results        []grading.Result `json:"results"`
}

// WriteJSON renders the full result set inside a session envelope.
func WriteJSON(w io.Writer, results []grading.Result, generatedAt time.Time) error {
	if results == nil {
		results = []grading.Result{}
	}
	export := jsonExport{
		GradingSession: jsonSession{
			Timestamp:        generatedAt.UTC().Format(time.RFC3339),
			TotalSubmissions: len(results),
			AverageScore:     averagePercentage(results),
		},
		Results: results,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteMarkdown renders a per-student breakdown with criterion tables and
// the strength/improvement bullets.
func WriteMarkdown(w io.Writer, results []grading.Result, generatedAt time.Time) error {
	var b strings.Builder

	b.WriteString("# Grading Report\n\n")
	fmt.Fprintf(&b, "Generated %s for %d submissions. Average score %s%%.\n\n",
		generatedAt.UTC().Format(time.RFC3339), len(results), formatPoints(averagePercentage(results)))

	for _, result := range results {
		fmt.Fprintf(&b, "## %s\n\n", mdText(result.StudentIdentifier))
		fmt.Fprintf(&b, "- File: `%s`\n", mdText(result.FileName))
		fmt.Fprintf(&b, "- Score: %s / %s (%s%%, %s)\n\n",
			formatPoints(result.TotalPoints), formatPoints(result.MaxPossible),
			formatPoints(result.Percentage), result.LetterGrade)

		b.WriteString("| Criterion | Points | Max | Comment |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, score := range result.Scores {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				mdCell(score.Criterion.Name),
				formatPoints(score.PointsAwarded),
				formatPoints(score.Criterion.MaxPoints),
				mdCell(score.Comment))
		}
		b.WriteString("\n**Strengths**\n\n")
		for _, item := range result.Strengths {
			fmt.Fprintf(&b, "- %s\n", mdText(item))
		}
		b.WriteString("\n**Areas for improvement**\n\n")
		for _, item := range result.Improvements {
			fmt.Fprintf(&b, "- %s\n", mdText(item))
		}
		fmt.Fprintf(&b, "\n> %s\n\n", mdText(result.Feedback))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func averagePercentage(results []grading.Result) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, result := range results {
		sum += result.Percentage
	}
	return math.Round(sum/float64(len(results))*100) / 100
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func mdText(s string) string {
	return strings.TrimSpace(sanitizer.Sanitize(s))
}

func mdCell(s string) string {
	clean := mdText(s)
	clean = strings.ReplaceAll(clean, "|", "\\|")
	return strings.ReplaceAll(clean, "\n", " ")
}
