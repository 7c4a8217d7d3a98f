package app

import (
	"context"
	"os"

	"go.trai.ch/devshell/internal/adapters/shell"
	"go.trai.ch/devshell/internal/adapters/watcher"
	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/zerr"
)

// Watch renders the environment, then renders it again each time the manifest
// content changes, until ctx is canceled. Failed runs are logged and watching goes on.
func (a *App) Watch(ctx context.Context, opts EnvOptions) error {
	if a.newWatcher == nil {
		return zerr.Wrap(domain.ErrWatchFailed, "no watcher configured")
	}

	format, err := shell.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return zerr.Wrap(err, "failed to get working directory")
	}
	root, err := a.loader.DiscoverRoot(cwd)
	if err != nil {
		return zerr.Wrap(err, "failed to discover manifest root")
	}

	w, err := a.newWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Stop()
	}()

	if err := w.Start(ctx, root); err != nil {
		return err
	}

	changes := watcher.NewChangeDetector(a.hasher, root)
	if err := changes.Prime(); err != nil {
		return zerr.Wrap(err, domain.ErrWatchFailed.Error())
	}

	render := func() {
		env, err := a.Provision(ctx, opts.ProvisionOptions)
		if err == nil {
			err = shell.Render(a.stdout, env, format)
		}
		if err != nil && ctx.Err() == nil {
			a.logger.Error(err)
		}
	}
	render()
	a.logger.Info("watching " + root + " for manifest changes")

	settled := make(chan struct{}, 1)
	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func([]string) {
		select {
		case settled <- struct{}{}:
		default:
		}
	})
	defer debouncer.Stop()

	go func() {
		for event := range w.Events() {
			debouncer.Add(event.Path)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-settled:
			changed, err := changes.Changed()
			if err != nil {
				a.logger.Warn("failed to fingerprint manifest: " + err.Error())
				continue
			}
			if !changed {
				continue
			}
			a.logger.Info("manifest changed, provisioning again")
			render()
		}
	}
}
