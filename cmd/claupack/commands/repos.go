package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/claupack/pkg/types"
)

func newRegisterCmd() *cobra.Command {
	var (
		localPath string
		typeBased string
	)

	cmd := &cobra.Command{
		Use:   "register <id> [url]",
		Short: "Register a source repository",
		Long: `Register a source repository by id. With a url the working copy is
cloned under the data directory; with --path an existing local
directory is used instead.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newAppContext()
			if err != nil {
				return err
			}

			id := args[0]
			repo := types.Repository{ID: id, LocalPath: localPath}
			if len(args) == 2 {
				repo.URL = args[1]
			}
			if typeBased != "" {
				repo.DeploymentMode = types.ModeTypeBased
				repo.Type = types.Category(typeBased)
			}

			if repo.LocalPath == "" && repo.URL != "" {
				repo.LocalPath = ctx.paths.RepoPath(id)
				if err := ctx.git.Clone(repo.URL, repo.LocalPath); err != nil {
					return err
				}
			}
			if repo.LocalPath != "" {
				if repo.LocalPath, err = filepath.Abs(repo.LocalPath); err != nil {
					return err
				}
			}

			if err := ctx.registry.Add(repo); err != nil {
				return err
			}
			fmt.Printf("Registered %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&localPath, "path", "", "Use an existing local working copy instead of cloning")
	cmd.Flags().StringVar(&typeBased, "type", "", "Type-based repository: route all files under this category (commands, agents or hooks)")

	return cmd
}

func newUnregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <id>",
		Short: "Unregister a repository (deployed files stay on disk)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newAppContext()
			if err != nil {
				return err
			}
			if err := ctx.registry.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("Unregistered %s\n", args[0])
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newAppContext()
			if err != nil {
				return err
			}
			repos, err := ctx.registry.List()
			if err != nil {
				return err
			}
			if len(repos) == 0 {
				fmt.Println("No repositories registered.")
				return nil
			}
			for _, repo := range repos {
				mode := string(repo.DeploymentMode)
				if mode == "" {
					mode = string(types.ModePattern)
				}
				fmt.Printf("%s\t%s\t%s\n", repo.ID, mode, repo.LocalPath)
			}
			return nil
		},
	}
}
