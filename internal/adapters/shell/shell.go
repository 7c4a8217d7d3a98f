// Package shell activates provisioned environments: interactive shells, commands and rendered exports.
package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultShell is used when $SHELL is unset.
const DefaultShell = "/bin/sh"

var _ ports.Shell = (*Shell)(nil)

// Shell implements ports.Shell using os/exec and pty.
type Shell struct {
	logger  ports.Logger
	environ func() []string
}

// New creates a Shell inheriting the process environment.
func New(logger ports.Logger) *Shell {
	return &Shell{logger: logger, environ: os.Environ}
}

// NewWithEnviron creates a Shell that uses base as the inherited environment.
func NewWithEnviron(logger ports.Logger, base []string) *Shell {
	return &Shell{logger: logger, environ: func() []string { return base }}
}

// Enter starts the user's shell with the environment applied and waits for it to exit.
func (s *Shell) Enter(
	ctx context.Context,
	env *domain.ShellEnvironment,
	stdin io.Reader,
	stdout, stderr io.Writer,
) error {
	cmdEnv := env.Environ(s.environ())

	shellPath := lookupEnv(cmdEnv, "SHELL")
	if shellPath == "" {
		s.logger.Warn("SHELL is not set, falling back to " + DefaultShell)
		shellPath = DefaultShell
	}

	cmd := exec.CommandContext(ctx, shellPath) //nolint:gosec // the user's own shell
	cmd.Env = cmdEnv
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The exit status of an interactive shell is the last command's, not ours.
			return nil
		}
		return zerr.With(zerr.Wrap(err, domain.ErrShellFailed.Error()), "shell", shellPath)
	}
	return nil
}

// Run executes argv with the environment applied.
// When stdout is a terminal the command runs inside a PTY sized like it.
func (s *Shell) Run(
	ctx context.Context,
	env *domain.ShellEnvironment,
	argv []string,
	stdout, stderr io.Writer,
) error {
	if len(argv) == 0 {
		return domain.ErrNoCommand
	}

	cmdEnv := env.Environ(s.environ())
	name := argv[0]

	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, cmdEnv); err == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(ctx, executable, argv[1:]...) //nolint:gosec // user provided command
	cmd.Args[0] = name
	cmd.Env = cmdEnv

	proc, err := start(cmd, stdout, stderr)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCommandFailed.Error()), "command", name)
	}

	if err := proc.Wait(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		cmdErr := zerr.With(zerr.Wrap(err, domain.ErrCommandFailed.Error()), "command", name)
		return zerr.With(cmdErr, "exit_code", exitCode)
	}
	return nil
}

// ExitCode extracts the exit status of a failed command, if there is one.
func ExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false
	}
	return exitErr.ExitCode(), true
}

func lookupEnv(env []string, key string) string {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix)
		}
	}
	return ""
}

// lookPath searches for an executable in the directories named by the PATH of env.
func lookPath(file string, env []string) (string, error) {
	path := lookupEnv(env, "PATH")
	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
