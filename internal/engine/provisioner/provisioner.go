// Package provisioner resolves a manifest into a shell environment for one platform.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"path"
	"runtime"
	"strings"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var _ ports.Provisioner = (*Provisioner)(nil)

// Provisioner implements ports.Provisioner on top of a package catalog.
// Either all declared packages and bindings resolve, or the call fails with a
// *domain.ResolutionError naming the first declared package that did not.
type Provisioner struct {
	catalog  ports.Catalog
	resolver ports.DependencyResolver
	cache    ports.EnvironmentCache
	verifier ports.StoreVerifier
	tracer   ports.Tracer
	logger   ports.Logger

	parallelism  int
	requestGroup singleflight.Group
}

// New creates a Provisioner. resolver, cache, and verifier may be nil.
func New(
	catalog ports.Catalog,
	resolver ports.DependencyResolver,
	cache ports.EnvironmentCache,
	verifier ports.StoreVerifier,
	tracer ports.Tracer,
	logger ports.Logger,
) *Provisioner {
	return &Provisioner{
		catalog:     catalog,
		resolver:    resolver,
		cache:       cache,
		verifier:    verifier,
		tracer:      tracer,
		logger:      logger,
		parallelism: runtime.NumCPU(),
	}
}

// WithParallelism limits the number of concurrent catalog lookups.
func (p *Provisioner) WithParallelism(n int) *Provisioner {
	if n > 0 {
		p.parallelism = n
	}
	return p
}

// lookup is one package or library to resolve.
type lookup struct {
	role domain.Role
	decl string
}

// Provision resolves every declared package and binding of m for platform.
func (p *Provisioner) Provision(
	ctx context.Context,
	m *domain.Manifest,
	platform domain.Platform,
	opts ports.ProvisionOptions,
) (*domain.ShellEnvironment, error) {
	if m == nil {
		return nil, zerr.Wrap(domain.ErrInvalidManifest, "no manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := checkBindings(m, platform); err != nil {
		return nil, err
	}

	if !platform.IsSupported(m.Systems.Supported()) {
		cause := zerr.With(zerr.Wrap(domain.ErrUnsupportedPlatform, "check platform"), "platform", platform.String())
		return nil, domain.NewResolutionError(m.Packages[0].Name, platform, cause)
	}

	m, err := p.lockCatalog(ctx, m, platform)
	if err != nil {
		return nil, err
	}

	envID := domain.GenerateEnvID(m, platform)
	key := envID
	if opts.NoCache {
		key += ":nocache"
	}

	result, err, _ := p.requestGroup.Do(key, func() (any, error) {
		if !opts.NoCache {
			if env, ok := p.cached(envID); ok {
				return env, nil
			}
		}

		env, err := p.resolve(ctx, m, platform, envID)
		if err != nil {
			return nil, err
		}

		if p.cache != nil {
			if err := p.cache.Put(env); err != nil && p.logger != nil {
				p.logger.Warn("failed to cache environment: " + err.Error())
			}
		}
		return env, nil
	})
	if err != nil {
		return nil, err
	}

	env, _ := result.(*domain.ShellEnvironment)
	return env.Clone(), nil
}

// lockCatalog pins a branch or tag revision to the commit it points at, so the
// environment id, the cache and the lockfile never refer to a moving catalog.
func (p *Provisioner) lockCatalog(ctx context.Context, m *domain.Manifest, platform domain.Platform) (*domain.Manifest, error) {
	locker, ok := p.catalog.(ports.CatalogLocker)
	if !ok || m.Catalog.Pinned() {
		return m, nil
	}

	result, err, _ := p.requestGroup.Do("lock:"+m.Catalog.Ref(), func() (any, error) {
		return locker.Lock(ctx, m.Catalog)
	})
	if err != nil {
		return nil, domain.NewResolutionError(m.Packages[0].Name, platform, err)
	}

	pin, _ := result.(domain.CatalogPin)
	return m.WithCatalog(pin), nil
}

// cached returns a cache hit whose store paths are still present.
func (p *Provisioner) cached(envID string) (*domain.ShellEnvironment, bool) {
	if p.cache == nil {
		return nil, false
	}

	env, err := p.cache.Get(envID)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) && p.logger != nil {
			p.logger.Warn("ignoring unreadable environment cache: " + err.Error())
		}
		return nil, false
	}

	if p.verifier != nil {
		ok, err := p.verifier.VerifyEnvironment(env)
		if err != nil || !ok {
			if p.logger != nil {
				p.logger.Info("cached environment refers to missing store paths, resolving again")
			}
			return nil, false
		}
	}
	return env, true
}

func (p *Provisioner) resolve(
	ctx context.Context,
	m *domain.Manifest,
	platform domain.Platform,
	envID string,
) (*domain.ShellEnvironment, error) {
	lookups := make([]lookup, 0, len(m.Packages)+len(m.Libraries))
	for _, decl := range m.Packages {
		lookups = append(lookups, lookup{role: decl.Role, decl: decl.Name})
	}
	for _, lib := range m.Libraries {
		lookups = append(lookups, lookup{decl: lib})
	}

	ctx, span := p.tracer.Start(ctx, "provision "+platform.String(),
		ports.WithAttribute("platform", platform),
		ports.WithAttribute("env_id", envID),
	)
	defer span.End()

	steps := make([]string, len(lookups))
	for i, l := range lookups {
		steps[i] = l.decl
	}
	p.tracer.EmitPlan(ctx, steps, platform.String())

	resolved, err := p.resolveAll(ctx, m, platform, lookups)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	pkgs := resolved[:len(m.Packages)]
	libs := resolved[len(m.Packages):]

	vars, err := bindings(m, platform, resolved)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	env := domain.NewShellEnvironment(envID, m.Name, platform, pkgs, vars)
	if m.Catalog.Pinned() {
		env.Catalog = m.Catalog
	}
	if len(libs) > 0 {
		env.Libraries = libs
	}
	return env, nil
}

// resolveAll looks every entry up concurrently. Lookups are not canceled when one
// fails, so the reported error is always that of the earliest declared entry.
func (p *Provisioner) resolveAll(
	ctx context.Context,
	m *domain.Manifest,
	platform domain.Platform,
	lookups []lookup,
) ([]domain.ResolvedPackage, error) {
	results := make([]domain.ResolvedPackage, len(lookups))
	errs := make([]error, len(lookups))

	var g errgroup.Group
	g.SetLimit(p.parallelism)

	for i, l := range lookups {
		g.Go(func() error {
			pkg, err := p.resolveOne(ctx, m.Catalog, platform, l)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = *pkg
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (p *Provisioner) resolveOne(
	ctx context.Context,
	pin domain.CatalogPin,
	platform domain.Platform,
	l lookup,
) (*domain.ResolvedPackage, error) {
	ctx, span := p.tracer.Start(ctx, l.decl, ports.WithAttribute("package", l.decl))
	defer span.End()

	fail := func(err error) (*domain.ResolvedPackage, error) {
		span.RecordError(err)
		return nil, domain.NewResolutionError(l.decl, platform, err)
	}

	decl := domain.PackageDecl{Role: l.role, Name: l.decl}
	name, version, err := decl.Spec()
	if err != nil {
		return fail(err)
	}

	ref := domain.PackageRef{Catalog: pin, Platform: platform, Attr: name}
	if version != "" {
		if p.resolver == nil {
			return fail(zerr.With(zerr.Wrap(domain.ErrNixPackageNotFound, "no version resolver"), "version", version))
		}
		rev, attrPath, err := p.resolver.Resolve(ctx, name, version, platform)
		if err != nil {
			return fail(err)
		}
		ref.Catalog.Revision = rev
		ref.Attr = domain.TrimAttrPath(attrPath, platform)
		span.SetAttribute("revision", rev)
	}

	pkg, err := p.catalog.Resolve(ctx, ref)
	if err != nil {
		return fail(err)
	}

	pkg.Role = l.role
	pkg.Name = name
	pkg.Platform = platform
	if pkg.Version != "" {
		span.SetAttribute("version", pkg.Version)
	}
	if out, err := pkg.Prefix(domain.DefaultOutput); err == nil {
		_, _ = fmt.Fprintln(span, out)
	}
	return pkg, nil
}

// checkBindings fails before any lookup when a binding names a package the
// manifest does not declare.
func checkBindings(m *domain.Manifest, platform domain.Platform) error {
	for _, b := range m.Env {
		if !m.Declares(b.Package) {
			cause := zerr.With(zerr.Wrap(domain.ErrUndeclaredBindingPackage, "bind "+b.Key), "key", b.Key)
			return domain.NewResolutionError(b.Package, platform, cause)
		}
	}
	return nil
}

// bindings derives each binding from the resolved package it names.
// A binding value is always the package prefix followed by the subpath.
func bindings(m *domain.Manifest, platform domain.Platform, resolved []domain.ResolvedPackage) ([]domain.EnvVar, error) {
	vars := make([]domain.EnvVar, 0, len(m.Env))
	for _, b := range m.Env {
		pkg, ok := findPackage(resolved, b.Package)
		if !ok {
			cause := zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "bind "+b.Key), "key", b.Key)
			return nil, domain.NewResolutionError(b.Package, platform, cause)
		}

		prefix, err := pkg.Prefix(b.OutputName())
		if err != nil {
			return nil, domain.NewResolutionError(b.Package, platform, err)
		}

		subpath := path.Clean(b.Subpath)
		value := path.Join(prefix, subpath)
		if prefix == "" || !strings.HasPrefix(value, prefix+"/") || !strings.HasSuffix(value, "/"+subpath) {
			cause := zerr.With(zerr.Wrap(domain.ErrMalformedBinding, "bind "+b.Key), "value", value)
			return nil, domain.NewResolutionError(b.Package, platform, cause)
		}

		vars = append(vars, domain.EnvVar{Key: b.Key, Value: value})
	}
	return vars, nil
}

func findPackage(resolved []domain.ResolvedPackage, name string) (domain.ResolvedPackage, bool) {
	for _, pkg := range resolved {
		if pkg.Name == name {
			return pkg, true
		}
	}
	return domain.ResolvedPackage{}, false
}
