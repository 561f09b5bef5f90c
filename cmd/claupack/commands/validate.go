package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/claupack/pkg/state"
)

func newValidateCmd() *cobra.Command {
	var (
		repair       bool
		exportPath   string
		exportFormat string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the state document for consistency defects",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newAppContext()
			if err != nil {
				return err
			}

			report, err := ctx.tracker.ValidateState()
			if err != nil {
				return err
			}

			if report.Valid() {
				fmt.Println("State is consistent.")
			} else {
				for _, issue := range report.Issues {
					fmt.Printf("%s\t%s\t%s\n", issue.Kind, issue.RepositoryID, issue.Message)
				}
			}

			if repair && !report.Valid() {
				fixed, err := ctx.tracker.RepairState()
				if err != nil {
					return err
				}
				fmt.Printf("Applied %d fixes.\n", fixed.Fixed)
				for _, detail := range fixed.Details {
					fmt.Printf("  %s\n", detail)
				}
			}

			if exportPath != "" {
				data, err := ctx.tracker.ExportState(nil, state.Format(exportFormat))
				if err != nil {
					return err
				}
				if err := os.WriteFile(exportPath, data, 0644); err != nil {
					return err
				}
				fmt.Printf("Exported state to %s\n", exportPath)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Fix the defects found and persist the result")
	cmd.Flags().StringVar(&exportPath, "export", "", "Write a state snapshot to this path")
	cmd.Flags().StringVar(&exportFormat, "format", "json", "Snapshot format (json or yaml)")

	return cmd
}
