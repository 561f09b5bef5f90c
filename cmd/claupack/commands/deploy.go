package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/claupack/pkg/deploy"
	"github.com/arthur-debert/claupack/pkg/recovery"
	"github.com/arthur-debert/claupack/pkg/types"
)

func newDeployCmd() *cobra.Command {
	var (
		interactive bool
		update      bool
		dryRun      bool
		clean       bool
	)

	cmd := &cobra.Command{
		Use:   "deploy <id>",
		Short: "Deploy a repository's artifacts into the extension directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newAppContext()
			if err != nil {
				return err
			}

			repo, err := ctx.registry.Get(args[0])
			if err != nil {
				return err
			}

			if update && repo.URL != "" {
				summary, err := ctx.git.Pull(repo.LocalPath)
				if err != nil {
					result := ctx.recovery.Recover(err, recovery.Context{
						Retry: func() error {
							_, retryErr := ctx.git.Pull(repo.LocalPath)
							return retryErr
						},
					})
					if !result.Succeeded {
						return err
					}
				} else if summary.FilesChanged > 0 {
					fmt.Printf("Updated %s: %d files changed (+%d -%d)\n",
						repo.ID, summary.FilesChanged, summary.Insertions, summary.Deletions)
				}
			}

			if dryRun {
				matches, err := ctx.engine.DetectPatterns(repo)
				if err != nil {
					return err
				}
				if len(matches) == 0 {
					fmt.Println("Nothing to deploy.")
					return nil
				}
				for _, m := range matches {
					fmt.Printf("%s\t%s\t%s\n", m.TargetType, m.File, m.Pattern)
				}
				return nil
			}

			result, err := ctx.engine.Deploy(repo, deploy.Options{Interactive: interactive})
			if err != nil {
				return err
			}

			if err := ctx.tracker.TrackDeployment(repo.ID, result, deployOptions(interactive, update)); err != nil {
				return err
			}

			if clean {
				st, err := ctx.tracker.GetDeploymentState(repo.ID)
				if err == nil && st != nil {
					if removed, err := ctx.engine.CleanOrphanedFiles(repo, st.DeployedFiles); err == nil && removed > 0 {
						fmt.Printf("Removed %d orphaned files\n", removed)
					}
				}
			}

			printResult(repo.ID, result)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt before overwriting existing files")
	cmd.Flags().BoolVar(&update, "update", false, "Pull the repository before deploying")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be deployed without deploying")
	cmd.Flags().BoolVar(&clean, "clean", false, "Remove deployed files whose source no longer exists")

	return cmd
}

func deployOptions(interactive, update bool) map[string]string {
	opts := map[string]string{}
	if interactive {
		opts["interactive"] = "true"
	}
	if update {
		opts["update"] = "true"
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func printResult(id string, result *types.DeploymentResult) {
	fmt.Printf("%s: %d deployed, %d skipped, %d failed, %d conflicts\n",
		id, len(result.Deployed), len(result.Skipped), len(result.Failed), len(result.Conflicts))
	for _, f := range result.Failed {
		fmt.Printf("  failed: %s\n", f)
	}
	if result.IsPartial() {
		fmt.Println("Deployment was partial; re-run after resolving failures.")
	}
}
