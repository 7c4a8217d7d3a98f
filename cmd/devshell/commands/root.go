// Package commands implements the CLI commands for devshell.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/devshell/internal/app"
	"go.trai.ch/devshell/internal/build"
)

// CLI represents the command line interface for devshell.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Enter(ctx context.Context, opts app.ProvisionOptions) error
	Env(ctx context.Context, opts app.EnvOptions) error
	Run(ctx context.Context, argv []string, opts app.ProvisionOptions) error
	Platforms(ctx context.Context) error
	Check(ctx context.Context, opts app.ProvisionOptions) error
	Lock(ctx context.Context, opts app.ProvisionOptions) error
	Flake(ctx context.Context, opts app.FlakeOptions) error
	Watch(ctx context.Context, opts app.EnvOptions) error
	Clean(ctx context.Context, opts app.CleanOptions) error
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	c := &CLI{app: a}

	rootCmd := &cobra.Command{
		Use:           "devshell",
		Short:         "Reproducible development shell for bunqyy",
		Long:          "Resolves the pinned toolchain for the host platform and enters a shell with it on PATH.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Enter(cmd.Context(), provisionOptions(cmd))
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().BoolP("no-cache", "n", false, "Ignore cached environments and resolve again")
	rootCmd.PersistentFlags().StringP("output-mode", "o", "auto", "Progress output: auto, tui, linear, or quiet")
	rootCmd.PersistentFlags().Bool("ci", false, "Use linear output mode (shorthand for --output-mode=linear)")

	c.rootCmd = rootCmd

	rootCmd.AddCommand(c.newEnterCmd())
	rootCmd.AddCommand(c.newEnvCmd())
	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newPlatformsCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newLockCmd())
	rootCmd.AddCommand(c.newFlakeCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// provisionOptions reads the shared provisioning flags.
func provisionOptions(cmd *cobra.Command) app.ProvisionOptions {
	noCache, _ := cmd.Flags().GetBool("no-cache")
	outputMode, _ := cmd.Flags().GetString("output-mode")
	ci, _ := cmd.Flags().GetBool("ci")

	// --ci wins over --output-mode.
	if ci {
		outputMode = "linear"
	}

	return app.ProvisionOptions{
		NoCache:    noCache,
		OutputMode: outputMode,
	}
}
