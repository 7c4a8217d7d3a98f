package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/devshell/internal/app"
)

func (c *CLI) newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List the supported platforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Platforms(cmd.Context())
		},
	}
}

func (c *CLI) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Provision every supported platform and report which ones resolve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Check(cmd.Context(), provisionOptions(cmd))
		},
	}
}

func (c *CLI) newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Record the resolved store paths of every platform in devshell.lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Lock(cmd.Context(), provisionOptions(cmd))
		},
	}
}

func (c *CLI) newFlakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flake",
		Short: "Print the manifest as an equivalent flake.nix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			write, _ := cmd.Flags().GetBool("write")
			return c.app.Flake(cmd.Context(), app.FlakeOptions{Write: write})
		},
	}
	cmd.Flags().BoolP("write", "w", false, "Write flake.nix next to the manifest")
	return cmd
}
