package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the state document to the current schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newAppContext()
			if err != nil {
				return err
			}

			info, err := ctx.migrator.DetectVersion()
			if err != nil {
				return err
			}
			if check {
				fmt.Printf("Schema version: %s (migration needed: %v)\n", info.Version, info.NeedsMigration)
				return nil
			}
			if !info.NeedsMigration {
				fmt.Printf("State is already at schema %s.\n", info.Version)
				return nil
			}

			result, err := ctx.migrator.Migrate()
			if err != nil {
				return err
			}
			fmt.Printf("Migrated %d repositories to schema %s.\n", result.Repositories, result.Version)
			fmt.Printf("Backup written to %s\n", result.BackupPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Report the schema version without migrating")

	return cmd
}
