package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/nilai-go-api/internal/archive"
	"github.com/noah-isme/nilai-go-api/internal/grading"
	"github.com/noah-isme/nilai-go-api/internal/notebook"
	"github.com/noah-isme/nilai-go-api/internal/report"
)

var (
	gradeInput    string
	gradeCriteria string
	gradeFormat   string
	gradeOut      string
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade a notebook, a folder of notebooks, or a zip bundle",
	Example: `  gradectl grade --input submissions/ --out report.csv
  gradectl grade --input cohort.zip --criteria rubric.toml --format markdown --out report.md
  gradectl grade --input ana_silva_hw.ipynb --format json`,
	RunE: runGrade,
}

func init() {
	gradeCmd.Flags().StringVarP(&gradeInput, "input", "i", "", "notebook file, directory, or zip archive (required)")
	gradeCmd.Flags().StringVarP(&gradeCriteria, "criteria", "c", "", "criteria TOML file (default: built-in rubric)")
	gradeCmd.Flags().StringVarP(&gradeFormat, "format", "f", report.FormatCSV, "report format: csv, json, or markdown")
	gradeCmd.Flags().StringVarP(&gradeOut, "out", "o", "", "report output path (default: stdout table only)")
	_ = gradeCmd.MarkFlagRequired("input")
}

// ungradableFile records one submission that failed to parse, so the run
// summary can report it by name instead of silently dropping it.
type ungradableFile struct {
	Name   string
	Reason string
}

func runGrade(cmd *cobra.Command, _ []string) error {
	format := strings.ToLower(strings.TrimSpace(gradeFormat))
	if format != report.FormatCSV && format != report.FormatJSON && format != report.FormatMarkdown {
		return fmt.Errorf("unsupported format %q: use csv, json, or markdown", gradeFormat)
	}

	criteria := grading.DefaultCriteria()
	if gradeCriteria != "" {
		loaded, err := grading.LoadCriteriaFile(gradeCriteria)
		if err != nil {
			return err
		}
		criteria = loaded
	}

	notebooks, err := collectNotebooks(gradeInput)
	if err != nil {
		return err
	}

	engine := grading.NewEngine(grading.DefaultHeuristics())
	var results []grading.Result
	var failed []ungradableFile
	for _, file := range notebooks {
		doc, err := notebook.Parse(file.Content, file.Name)
		if err != nil {
			failed = append(failed, ungradableFile{Name: file.Name, Reason: err.Error()})
			continue
		}
		results = append(results, engine.Grade(doc, criteria))
	}

	printSummary(cmd, results, failed)

	if len(results) == 0 {
		return errors.New("no gradable notebooks found")
	}

	if gradeOut != "" {
		if err := writeReport(gradeOut, format, results); err != nil {
			return err
		}
		cmd.Printf("report written to %s\n", gradeOut)
	}

	return nil
}

// collectNotebooks resolves the input flag into raw notebook contents,
// in deterministic name order for directories.
func collectNotebooks(input string) ([]archive.NotebookFile, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("cannot read input: %w", err)
	}

	if info.IsDir() {
		return notebooksFromDir(input)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("cannot read input: %w", err)
	}

	switch strings.ToLower(filepath.Ext(input)) {
	case ".zip":
		return archive.ExtractNotebooks(data)
	case ".ipynb":
		return []archive.NotebookFile{{Name: filepath.Base(input), Content: data}}, nil
	default:
		return nil, fmt.Errorf("input must be a directory, a .zip archive, or an .ipynb file")
	}
}

func notebooksFromDir(dir string) ([]archive.NotebookFile, error) {
	var files []archive.NotebookFile
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if entry.Name() == ".ipynb_checkpoints" || entry.Name() == "__MACOSX" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ".ipynb") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, archive.NotebookFile{Name: entry.Name(), Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func printSummary(cmd *cobra.Command, results []grading.Result, failed []ungradableFile) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tFILE\tSCORE\tPERCENT\tGRADE")
	for _, result := range results {
		fmt.Fprintf(w, "%s\t%s\t%.1f/%.1f\t%.1f%%\t%s\n",
			result.StudentIdentifier, result.FileName,
			result.TotalPoints, result.MaxPossible,
			result.Percentage, result.LetterGrade)
	}
	w.Flush()

	if len(failed) > 0 {
		cmd.Printf("\nungradable (%d):\n", len(failed))
		for _, f := range failed {
			cmd.Printf("  %s: %s\n", f.Name, f.Reason)
		}
	}
}

func writeReport(path, format string, results []grading.Result) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create report file: %w", err)
	}
	defer out.Close()

	switch format {
	case report.FormatCSV:
		return report.WriteCSV(out, results)
	case report.FormatJSON:
		return report.WriteJSON(out, results, time.Now())
	default:
		return report.WriteMarkdown(out, results, time.Now())
	}
}
