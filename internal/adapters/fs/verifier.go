package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.StoreVerifier = (*Verifier)(nil)

// Verifier checks that the store paths referenced by an environment still exist.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifyEnvironment returns false as soon as a search path entry or an absolute
// binding value is missing, for example after the store was garbage collected.
func (v *Verifier) VerifyEnvironment(env *domain.ShellEnvironment) (bool, error) {
	if env == nil {
		return false, nil
	}

	paths := make([]string, 0, len(env.SearchPath)+len(env.Vars))
	paths = append(paths, env.SearchPath...)
	for _, kv := range env.Vars {
		for _, p := range strings.Split(kv.Value, domain.PathListSeparator) {
			if filepath.IsAbs(p) {
				paths = append(paths, p)
			}
		}
	}

	return v.VerifyPaths(paths)
}

// VerifyPaths reports whether all paths exist.
func (v *Verifier) VerifyPaths(paths []string) (bool, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return false, nil
			}
			return false, zerr.With(zerr.Wrap(err, "failed to stat store path"), "path", path)
		}
	}
	return true, nil
}
