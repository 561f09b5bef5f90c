package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [id]",
		Short: "Show deployment status for one or all repositories",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newAppContext()
			if err != nil {
				return err
			}

			repos, err := ctx.registry.List()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				repo, err := ctx.registry.Get(args[0])
				if err != nil {
					return err
				}
				repos = repos[:0]
				repos = append(repos, repo)
			}

			for _, repo := range repos {
				st, err := ctx.tracker.GetDeploymentState(repo.ID)
				if err != nil {
					return err
				}
				if st == nil {
					fmt.Printf("%s\tnot installed\n", repo.ID)
					continue
				}
				fmt.Printf("%s\t%s\t%d files\n", repo.ID, st.InstallationStatus, len(st.DeployedFiles))
			}

			total, err := ctx.store.GetTotalDeployedFiles()
			if err != nil {
				return err
			}
			fmt.Printf("Total deployed files: %d\n", total)
			return nil
		},
	}
}
