package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/zerr"
)

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	NixHub       bool
	Environments bool
}

// Clean removes the caches selected by options from the manifest root.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	cwd, err := os.Getwd()
	if err != nil {
		return zerr.Wrap(err, "failed to get working directory")
	}
	root, err := a.loader.DiscoverRoot(cwd)
	if err != nil {
		return zerr.Wrap(err, "failed to discover manifest root")
	}

	var errs error

	remove := func(path string, name string) {
		count := a.walker.CountFiles(path)
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s (%d files)", name, count))
	}

	if options.NixHub {
		remove(filepath.Join(root, domain.DefaultNixHubCachePath()), "nixhub cache")
	}
	if options.Environments {
		remove(filepath.Join(root, domain.DefaultEnvCachePath()), "environment cache")
	}

	return errs
}
