package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/claupack/pkg/state"
	"github.com/arthur-debert/claupack/pkg/types"
)

func newHistoryCmd() *cobra.Command {
	var (
		repoID    string
		operation string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the installation history, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newAppContext()
			if err != nil {
				return err
			}

			filter := &state.HistoryFilter{
				RepositoryID: repoID,
				Operation:    types.Operation(operation),
				Limit:        limit,
			}
			records, err := ctx.tracker.GetInstallationHistory(filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No history records.")
				return nil
			}

			for _, rec := range records {
				outcome := "ok"
				if !rec.Success {
					outcome = "failed"
				}
				fmt.Printf("%s\t%s\t%s\t%d files\t%s\n",
					rec.Timestamp.Format(time.RFC3339), rec.RepositoryID, rec.Operation, rec.FilesAffected, outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repoID, "repo", "", "Filter by repository id")
	cmd.Flags().StringVar(&operation, "operation", "", "Filter by operation (install, uninstall, unregister)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")

	return cmd
}
