package nix

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/zerr"
)

// determinateProfileBin is where Determinate Nix installs its binaries.
// It is outside PATH by default.
const determinateProfileBin = "/nix/var/nix/profiles/default/bin"

// FindBinary resolves a Nix binary by name, checking PATH first and then
// the Determinate Nix profile directory.
func FindBinary(name string) (string, error) {
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}

	fallback := filepath.Join(determinateProfileBin, name)
	if _, err := os.Stat(fallback); err == nil {
		return fallback, nil
	}

	err := zerr.With(zerr.Wrap(domain.ErrNixNotFound, "lookup binary"), "binary", name)
	return "", zerr.With(err, "searched", "PATH, "+determinateProfileBin)
}

// commandError carries the captured stderr of a failed nix invocation.
type commandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *commandError) Error() string {
	cmd := "nix " + strings.Join(e.Args, " ")
	if e.Stderr != "" {
		return cmd + ": " + e.Stderr
	}
	return cmd + ": " + e.Err.Error()
}

func (e *commandError) Unwrap() error {
	return e.Err
}

// run executes the nix binary and returns stdout.
// Stderr is kept separately since nix writes its diagnostics there.
func run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	//nolint:gosec // binary is resolved by FindBinary or set by the caller
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &commandError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}
