package ports

import (
	"context"
	"io"

	"go.trai.ch/devshell/internal/core/domain"
)

// Shell activates a provisioned environment.
//
//go:generate mockgen -source=shell.go -destination=mocks/mock_shell.go -package=mocks
type Shell interface {
	// Enter starts an interactive shell with the environment applied.
	// It blocks until the shell exits.
	Enter(ctx context.Context, env *domain.ShellEnvironment, stdin io.Reader, stdout, stderr io.Writer) error

	// Run executes argv with the environment applied.
	//
	// It returns an error wrapping domain.ErrCommandFailed when the command exits non-zero.
	Run(ctx context.Context, env *domain.ShellEnvironment, argv []string, stdout, stderr io.Writer) error
}
