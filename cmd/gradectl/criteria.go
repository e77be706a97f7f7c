package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/nilai-go-api/internal/grading"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Work with grading criteria files",
}

var criteriaValidateCmd = &cobra.Command{
	Use:   "validate <file.toml>",
	Short: "Check a criteria file for structural problems",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := grading.LoadCriteriaFile(args[0])
		if err != nil {
			return err
		}

		var total float64
		for _, c := range criteria {
			cmd.Printf("%-28s %6.1f pts  %s\n", c.Name, c.MaxPoints, c.Description)
			total += c.MaxPoints
		}
		cmd.Printf("\n%d criteria, %.1f points total\n", len(criteria), total)

		if total != 100 {
			fmt.Fprintf(cmd.ErrOrStderr(), "note: weights sum to %.1f, not 100; percentages are computed against this total\n", total)
		}
		return nil
	},
}

func init() {
	criteriaCmd.AddCommand(criteriaValidateCmd)
}
