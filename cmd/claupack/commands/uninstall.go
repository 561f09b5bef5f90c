package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <id>",
		Short: "Remove a repository's deployed files from the extension directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newAppContext()
			if err != nil {
				return err
			}

			id := args[0]
			st, err := ctx.tracker.GetDeploymentState(id)
			if err != nil {
				return err
			}
			if st == nil || len(st.DeployedFiles) == 0 {
				fmt.Printf("%s has no deployed files.\n", id)
				return nil
			}

			removed, failed := ctx.engine.Undeploy(st.DeployedFiles)
			if err := ctx.tracker.TrackUninstallation(id, removed, nil); err != nil {
				return err
			}

			fmt.Printf("%s: removed %d files\n", id, len(removed))
			for _, f := range failed {
				fmt.Printf("  could not remove: %s\n", f)
			}
			return nil
		},
	}
}
