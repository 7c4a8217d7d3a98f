package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/devshell/internal/ui/output"
	"go.trai.ch/devshell/internal/ui/style"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// platformResult is the outcome of provisioning one platform.
type platformResult struct {
	platform domain.Platform
	env      *domain.ShellEnvironment
	err      error
}

// provisionAll provisions m for every supported platform concurrently.
// Results keep the order of the supported platforms.
func (a *App) provisionAll(
	ctx context.Context,
	m *domain.Manifest,
	opts ProvisionOptions,
) ([]platformResult, error) {
	platforms := m.Systems.Supported()
	results := make([]platformResult, len(platforms))

	err := a.withProvisioner(ctx, opts.OutputMode, func(ctx context.Context, p ports.Provisioner) error {
		var g errgroup.Group
		for i, platform := range platforms {
			g.Go(func() error {
				env, err := p.Provision(ctx, m, platform, ports.ProvisionOptions{NoCache: opts.NoCache})
				results[i] = platformResult{platform: platform, env: env, err: err}
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Check provisions every supported platform and prints a matrix of the outcomes.
func (a *App) Check(ctx context.Context, opts ProvisionOptions) error {
	m, _, err := a.loadManifest()
	if err != nil {
		return err
	}

	results, err := a.provisionAll(ctx, m, opts)
	if err != nil {
		return err
	}

	out := output.New(a.stdout)
	_, _ = fmt.Fprintln(a.stdout, style.Heading(m.Name))

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			mark := out.String(style.Cross).Foreground(out.Color(string(style.Red))).String()
			_, _ = fmt.Fprintf(a.stdout, "%s %-16s %s\n", mark, r.platform, failureReason(r.err))
			continue
		}
		mark := out.String(style.Check).Foreground(out.Color(string(style.Green))).String()
		_, _ = fmt.Fprintf(a.stdout, "%s %-16s %d packages\n", mark, r.platform, len(r.env.Packages)+len(r.env.Libraries))
	}

	if failed > 0 {
		return zerr.With(zerr.Wrap(domain.ErrLockIncomplete, "check"), "failed_platforms", failed)
	}
	return nil
}

// Lock provisions every supported platform and records the store paths next to
// the manifest. Nothing is written unless every platform succeeds.
func (a *App) Lock(ctx context.Context, opts ProvisionOptions) error {
	m, path, err := a.loadManifest()
	if err != nil {
		return err
	}

	results, err := a.provisionAll(ctx, m, opts)
	if err != nil {
		return err
	}

	lock := domain.NewLockfile(m, a.now())
	var errs error
	for _, r := range results {
		if r.err != nil {
			errs = errors.Join(errs, r.err)
			continue
		}
		lock.Record(r.env)
	}
	if errs != nil {
		return errors.Join(domain.ErrLockIncomplete, errs)
	}

	root, err := a.root(path)
	if err != nil {
		return err
	}
	target := filepath.Join(root, domain.LockFileName)
	if err := a.lockfiles.Write(target, lock); err != nil {
		return err
	}
	a.logger.Info(fmt.Sprintf("locked %d packages for %d platforms in %s", len(lock.Packages), len(results), target))
	return nil
}

// failureReason names the package of a resolution error, falling back to the message.
func failureReason(err error) string {
	var resErr *domain.ResolutionError
	if errors.As(err, &resErr) {
		msg := resErr.Package
		if resErr.Err != nil {
			msg += ": " + firstLine(resErr.Err.Error())
		}
		return msg
	}
	return firstLine(err.Error())
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
