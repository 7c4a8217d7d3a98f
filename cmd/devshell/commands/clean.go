package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/devshell/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean the resolver and environment caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nixhub, _ := cmd.Flags().GetBool("nixhub")
			environments, _ := cmd.Flags().GetBool("environments")

			opts := app.CleanOptions{
				NixHub:       nixhub,
				Environments: environments,
			}

			// Default behavior: clean everything
			if !nixhub && !environments {
				opts.NixHub = true
				opts.Environments = true
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	cmd.Flags().Bool("nixhub", false, "Clean only the NixHub version cache")
	cmd.Flags().BoolP("environments", "e", false, "Clean only the environment cache")

	return cmd
}
