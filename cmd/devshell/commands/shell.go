package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/devshell/internal/app"
)

func (c *CLI) newEnterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enter",
		Short: "Enter the development shell for the host platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Enter(cmd.Context(), provisionOptions(cmd))
		},
	}
}

func (c *CLI) newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the environment of the development shell",
		Example: `  eval "$(devshell env)"
  devshell env --platform aarch64-darwin --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Env(cmd.Context(), envOptions(cmd))
		},
	}
	addEnvFlags(cmd)
	return cmd
}

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Run a command inside the development shell",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return nil
			}
			return c.app.Run(cmd.Context(), args, provisionOptions(cmd))
		},
	}
	// Flags after the command name belong to the command.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func (c *CLI) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the environment again whenever the manifest changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Watch(cmd.Context(), envOptions(cmd))
		},
	}
	addEnvFlags(cmd)
	return cmd
}

func addEnvFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("platform", "p", "", "Target platform (defaults to the host), e.g. x86_64-linux")
	cmd.Flags().StringP("format", "f", "export", "Output format: export, json, or dotenv")
}

func envOptions(cmd *cobra.Command) app.EnvOptions {
	opts := app.EnvOptions{ProvisionOptions: provisionOptions(cmd)}
	opts.Platform, _ = cmd.Flags().GetString("platform")
	opts.Format, _ = cmd.Flags().GetString("format")
	return opts
}
