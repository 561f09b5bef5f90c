package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/claupack/pkg/config"
	"github.com/arthur-debert/claupack/pkg/paths"
)

func newGenConfigCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "gen-config",
		Short: "Print the default configuration, or write it to the config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			content := config.GetDefaultConfigContent()
			if !write {
				fmt.Print(content)
				return nil
			}

			p, err := paths.New("")
			if err != nil {
				return err
			}
			target := p.ConfigFilePath()
			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("%s already exists, remove it first", target)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(target, []byte(content), 0644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "Write the config file instead of printing it")

	return cmd
}
