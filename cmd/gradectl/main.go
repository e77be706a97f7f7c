// gradectl grades notebooks offline, straight through the parser and
// engine, with no server or database in the loop. It exists for quick
// spot-checks of a rubric against a folder of submissions.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gradectl",
	Short: "Grade Jupyter notebooks from the command line",
	Long: `gradectl runs the notebook grading pipeline locally: it parses .ipynb
files, scores them against a weighted rubric, and writes a CSV, JSON, or
Markdown report. Grading is deterministic and never executes notebook code.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(criteriaCmd)
}
