package provisioner_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/devshell/internal/adapters/cas"
	"go.trai.ch/devshell/internal/adapters/fixture"
	"go.trai.ch/devshell/internal/adapters/telemetry"
	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/devshell/internal/core/ports/mocks"
	"go.trai.ch/devshell/internal/engine/provisioner"
	"go.uber.org/mock/gomock"
)

const (
	snapshotPath = "../../adapters/fixture/testdata/bunqyy.jsonc"
	opensslDev   = "/nix/store/0cz8qqjqmdbxq8z4x7c0dk6mlzpw8p2m-openssl-3.0.14-dev"
	lockedRev    = "c0f3a1e5b2d94e7a8f6b1c3d5e7f9a0b2c4d6e8f"
)

func loadSnapshot(t *testing.T) *fixture.Catalog {
	t.Helper()
	catalog, err := fixture.Load(snapshotPath)
	require.NoError(t, err)
	return catalog
}

func newProvisioner(catalog ports.Catalog) *provisioner.Provisioner {
	return provisioner.New(catalog, nil, nil, nil, telemetry.NewNoOpTracer(), nil)
}

func requireResolutionError(t *testing.T, err error, pkg string, platform domain.Platform) *domain.ResolutionError {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrResolution)

	var resErr *domain.ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, pkg, resErr.Package)
	assert.Equal(t, platform, resErr.Platform)
	return resErr
}

func TestProvision_X8664Linux(t *testing.T) {
	p := newProvisioner(loadSnapshot(t))

	env, err := p.Provision(context.Background(), domain.DefaultManifest(), domain.X8664Linux, ports.ProvisionOptions{})
	require.NoError(t, err)

	require.Len(t, env.Packages, 6)
	roles := make([]domain.Role, 0, len(env.Packages))
	for _, pkg := range env.Packages {
		roles = append(roles, pkg.Role)
		assert.Equal(t, domain.X8664Linux, pkg.Platform)
	}
	assert.Equal(t, []domain.Role{
		domain.RoleCompiler,
		domain.RoleFormatter,
		domain.RoleLinter,
		domain.RoleBuildTool,
		domain.RoleLanguageServer,
		domain.RoleBuildHelper,
	}, roles)

	require.Len(t, env.SearchPath, 6)
	assert.Equal(t, "/nix/store/1bq0rz3h8kdpdhvqnzfv54ww0nqdjd2p-rustc-wrapper-1.80.1/bin", env.SearchPath[0])
	for _, dir := range env.SearchPath {
		assert.NotContains(t, dir, "openssl")
	}

	require.Len(t, env.Vars, 1)
	assert.Equal(t, domain.EnvVar{Key: "PKG_CONFIG_PATH", Value: opensslDev + "/lib/pkgconfig"}, env.Vars[0])

	require.Len(t, env.Libraries, 1)
	assert.Equal(t, "openssl", env.Libraries[0].Name)
	locked := domain.DefaultManifest().WithCatalog(domain.CatalogPin{Source: domain.DefaultCatalogSource, Revision: lockedRev})
	assert.Equal(t, domain.GenerateEnvID(locked, domain.X8664Linux), env.ID)
	assert.Equal(t, locked.Catalog, env.Catalog)
}

func TestProvision_BindingPrefixAndSuffix(t *testing.T) {
	p := newProvisioner(loadSnapshot(t))

	for _, platform := range []domain.Platform{domain.X8664Linux, domain.Aarch64Darwin} {
		t.Run(platform.String(), func(t *testing.T) {
			env, err := p.Provision(context.Background(), domain.DefaultManifest(), platform, ports.ProvisionOptions{})
			require.NoError(t, err)

			openssl := env.Libraries[0]
			prefix, err := openssl.Prefix("dev")
			require.NoError(t, err)

			value, ok := env.Lookup("PKG_CONFIG_PATH")
			require.True(t, ok)
			assert.True(t, len(value) > len(prefix))
			assert.Equal(t, prefix, value[:len(prefix)])
			assert.Equal(t, "/lib/pkgconfig", value[len(prefix):])
		})
	}
}

func TestProvision_Idempotent(t *testing.T) {
	p := newProvisioner(loadSnapshot(t))
	ctx := context.Background()

	first, err := p.Provision(ctx, domain.DefaultManifest(), domain.Aarch64Darwin, ports.ProvisionOptions{})
	require.NoError(t, err)
	second, err := p.Provision(ctx, domain.DefaultManifest(), domain.Aarch64Darwin, ports.ProvisionOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestProvision_UnsupportedPlatform(t *testing.T) {
	ctrl := gomock.NewController(t)
	// No catalog lookups are expected.
	catalog := mocks.NewMockCatalog(ctrl)
	p := newProvisioner(catalog)

	env, err := p.Provision(context.Background(), domain.DefaultManifest(), "i686-linux", ports.ProvisionOptions{})
	assert.Nil(t, env)
	requireResolutionError(t, err, "rustc", "i686-linux")
	assert.ErrorIs(t, err, domain.ErrUnsupportedPlatform)
}

func TestProvision_ManifestPlatformsRestrictSupport(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := newProvisioner(mocks.NewMockCatalog(ctrl))

	m := domain.DefaultManifest()
	m.Systems.Platforms = []domain.Platform{domain.X8664Linux}

	_, err := p.Provision(context.Background(), m, domain.Aarch64Darwin, ports.ProvisionOptions{})
	requireResolutionError(t, err, "rustc", domain.Aarch64Darwin)
	assert.ErrorIs(t, err, domain.ErrUnsupportedPlatform)
}

func TestProvision_MissingPackage(t *testing.T) {
	p := newProvisioner(loadSnapshot(t))

	env, err := p.Provision(context.Background(), domain.DefaultManifest(), domain.Aarch64Linux, ports.ProvisionOptions{})
	assert.Nil(t, env)
	requireResolutionError(t, err, "rust-analyzer", domain.Aarch64Linux)
	assert.ErrorIs(t, err, domain.ErrPackageNotFound)
}

func TestProvision_PlatformAbsentFromCatalog(t *testing.T) {
	p := newProvisioner(loadSnapshot(t))

	_, err := p.Provision(context.Background(), domain.DefaultManifest(), domain.X8664Darwin, ports.ProvisionOptions{})
	requireResolutionError(t, err, "rustc", domain.X8664Darwin)
}

func TestProvision_ReportsEarliestDeclaredFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalog(ctrl)
	snapshot := loadSnapshot(t)

	catalog.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, ref domain.PackageRef) (*domain.ResolvedPackage, error) {
			switch ref.Attr {
			case "clippy", "cargo":
				return nil, domain.ErrPackageNotFound
			default:
				return snapshot.Resolve(ctx, ref)
			}
		},
	).Times(7)

	p := newProvisioner(catalog).WithParallelism(7)

	_, err := p.Provision(context.Background(), domain.DefaultManifest(), domain.X8664Linux, ports.ProvisionOptions{})
	requireResolutionError(t, err, "clippy", domain.X8664Linux)
}

func TestProvision_MissingCryptoPackage(t *testing.T) {
	t.Run("not declared", func(t *testing.T) {
		p := newProvisioner(loadSnapshot(t))

		m := domain.DefaultManifest()
		m.Libraries = nil

		_, err := p.Provision(context.Background(), m, domain.X8664Linux, ports.ProvisionOptions{})
		requireResolutionError(t, err, "openssl", domain.X8664Linux)
		assert.ErrorIs(t, err, domain.ErrUndeclaredBindingPackage)
	})

	t.Run("not declared fails before any lookup", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		catalog := mocks.NewMockCatalog(ctrl)
		catalog.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)

		m := domain.DefaultManifest()
		m.Libraries = nil

		_, err := newProvisioner(catalog).Provision(context.Background(), m, domain.X8664Linux, ports.ProvisionOptions{})
		requireResolutionError(t, err, "openssl", domain.X8664Linux)
		assert.ErrorIs(t, err, domain.ErrUndeclaredBindingPackage)
	})

	t.Run("not in catalog", func(t *testing.T) {
		snapshot := loadSnapshot(t)
		ctrl := gomock.NewController(t)
		catalog := mocks.NewMockCatalog(ctrl)
		catalog.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, ref domain.PackageRef) (*domain.ResolvedPackage, error) {
				if ref.Attr == "openssl" {
					return nil, domain.ErrPackageNotFound
				}
				return snapshot.Resolve(ctx, ref)
			},
		).AnyTimes()

		_, err := newProvisioner(catalog).Provision(context.Background(), domain.DefaultManifest(), domain.X8664Linux, ports.ProvisionOptions{})
		requireResolutionError(t, err, "openssl", domain.X8664Linux)
	})

	t.Run("missing dev output", func(t *testing.T) {
		snapshot := loadSnapshot(t)
		ctrl := gomock.NewController(t)
		catalog := mocks.NewMockCatalog(ctrl)
		catalog.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, ref domain.PackageRef) (*domain.ResolvedPackage, error) {
				pkg, err := snapshot.Resolve(ctx, ref)
				if err == nil && ref.Attr == "openssl" {
					delete(pkg.Outputs, "dev")
				}
				return pkg, err
			},
		).AnyTimes()

		_, err := newProvisioner(catalog).Provision(context.Background(), domain.DefaultManifest(), domain.X8664Linux, ports.ProvisionOptions{})
		requireResolutionError(t, err, "openssl", domain.X8664Linux)
		assert.ErrorIs(t, err, domain.ErrOutputNotFound)
	})
}

func TestProvision_BindingOnDeclaredPackage(t *testing.T) {
	p := newProvisioner(loadSnapshot(t))

	m := domain.DefaultManifest()
	m.Env = append(m.Env, domain.EnvBinding{Key: "RUST_SRC", Package: "rustc", Subpath: "lib/rustlib/src"})

	env, err := p.Provision(context.Background(), m, domain.X8664Linux, ports.ProvisionOptions{})
	require.NoError(t, err)

	value, ok := env.Lookup("RUST_SRC")
	require.True(t, ok)
	assert.Equal(t, "/nix/store/1bq0rz3h8kdpdhvqnzfv54ww0nqdjd2p-rustc-wrapper-1.80.1/lib/rustlib/src", value)
}

func TestProvision_InvalidManifest(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := newProvisioner(mocks.NewMockCatalog(ctrl))

	m := domain.DefaultManifest()
	m.Packages = nil

	_, err := p.Provision(context.Background(), m, domain.X8664Linux, ports.ProvisionOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidManifest)

	_, err = p.Provision(context.Background(), nil, domain.X8664Linux, ports.ProvisionOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidManifest)
}

func TestProvision_VersionedPackage(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalog(ctrl)
	resolver := mocks.NewMockDependencyResolver(ctrl)
	snapshot := loadSnapshot(t)

	resolver.EXPECT().
		Resolve(gomock.Any(), "rustc", "1.79.0", domain.X8664Linux).
		Return("abc123", "legacyPackages.x86_64-linux.rustc", nil)

	catalog.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, ref domain.PackageRef) (*domain.ResolvedPackage, error) {
			if ref.Attr == "rustc" {
				assert.Equal(t, "abc123", ref.Catalog.Revision)
				assert.Equal(t, domain.DefaultCatalogSource, ref.Catalog.Source)
				return &domain.ResolvedPackage{
					Name:    "rustc",
					Version: "1.79.0",
					Outputs: map[string]string{"out": "/nix/store/zz-rustc-1.79.0"},
				}, nil
			}
			return snapshot.Resolve(ctx, ref)
		},
	).Times(7)

	m := domain.DefaultManifest()
	m.Packages[0].Name = "rustc@1.79.0"

	p := provisioner.New(catalog, resolver, nil, nil, telemetry.NewNoOpTracer(), nil)
	env, err := p.Provision(context.Background(), m, domain.X8664Linux, ports.ProvisionOptions{})
	require.NoError(t, err)

	rustc, ok := env.Package(domain.RoleCompiler)
	require.True(t, ok)
	assert.Equal(t, "rustc", rustc.Name)
	assert.Equal(t, "1.79.0", rustc.Version)
	assert.Equal(t, "/nix/store/zz-rustc-1.79.0/bin", env.SearchPath[0])
}

func TestProvision_VersionNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockDependencyResolver(ctrl)
	resolver.EXPECT().
		Resolve(gomock.Any(), "rustc", "0.0.1", domain.X8664Linux).
		Return("", "", domain.ErrNixPackageNotFound)

	m := domain.DefaultManifest()
	m.Packages[0].Name = "rustc@0.0.1"

	p := provisioner.New(loadSnapshot(t), resolver, nil, nil, telemetry.NewNoOpTracer(), nil)
	_, err := p.Provision(context.Background(), m, domain.X8664Linux, ports.ProvisionOptions{})
	requireResolutionError(t, err, "rustc@0.0.1", domain.X8664Linux)
	assert.ErrorIs(t, err, domain.ErrNixPackageNotFound)
}

func TestProvision_Cache(t *testing.T) {
	ctx := context.Background()
	m := domain.DefaultManifest()

	t.Run("hit skips the catalog", func(t *testing.T) {
		m := m.WithCatalog(domain.CatalogPin{Source: domain.DefaultCatalogSource, Revision: lockedRev})
		store := cas.NewStore(t.TempDir())
		warm, err := newProvisioner(loadSnapshot(t)).Provision(ctx, m, domain.X8664Linux, ports.ProvisionOptions{})
		require.NoError(t, err)
		require.NoError(t, store.Put(warm))

		ctrl := gomock.NewController(t)
		verifier := mocks.NewMockStoreVerifier(ctrl)
		verifier.EXPECT().VerifyEnvironment(gomock.Any()).Return(true, nil)

		p := provisioner.New(mocks.NewMockCatalog(ctrl), nil, store, verifier, telemetry.NewNoOpTracer(), nil)
		env, err := p.Provision(ctx, m, domain.X8664Linux, ports.ProvisionOptions{})
		require.NoError(t, err)
		assert.Equal(t, warm, env)
	})

	t.Run("miss writes the result", func(t *testing.T) {
		store := cas.NewStore(t.TempDir())
		p := provisioner.New(loadSnapshot(t), nil, store, nil, telemetry.NewNoOpTracer(), nil)

		env, err := p.Provision(ctx, m, domain.X8664Linux, ports.ProvisionOptions{})
		require.NoError(t, err)

		cached, err := store.Get(env.ID)
		require.NoError(t, err)
		assert.Equal(t, env, cached)
	})

	t.Run("stale entry is resolved again", func(t *testing.T) {
		store := cas.NewStore(t.TempDir())
		stale, err := newProvisioner(loadSnapshot(t)).Provision(ctx, m, domain.X8664Linux, ports.ProvisionOptions{})
		require.NoError(t, err)
		stale.SearchPath = []string{"/nix/store/collected/bin"}
		require.NoError(t, store.Put(stale))

		ctrl := gomock.NewController(t)
		verifier := mocks.NewMockStoreVerifier(ctrl)
		verifier.EXPECT().VerifyEnvironment(gomock.Any()).Return(false, nil)
		log := mocks.NewMockLogger(ctrl)
		log.EXPECT().Info(gomock.Any())

		p := provisioner.New(loadSnapshot(t), nil, store, verifier, telemetry.NewNoOpTracer(), log)
		env, err := p.Provision(ctx, m, domain.X8664Linux, ports.ProvisionOptions{})
		require.NoError(t, err)
		assert.Len(t, env.SearchPath, 6)
	})

	t.Run("no-cache skips the read", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockEnvironmentCache(ctrl)
		cache.EXPECT().Put(gomock.Any()).Return(nil)

		p := provisioner.New(loadSnapshot(t), nil, cache, nil, telemetry.NewNoOpTracer(), nil)
		_, err := p.Provision(ctx, m, domain.X8664Linux, ports.ProvisionOptions{NoCache: true})
		require.NoError(t, err)
	})

	t.Run("failed write is only a warning", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockEnvironmentCache(ctrl)
		cache.EXPECT().Get(gomock.Any()).Return(nil, domain.ErrCacheMiss)
		cache.EXPECT().Put(gomock.Any()).Return(domain.ErrCacheWriteFailed)
		log := mocks.NewMockLogger(ctrl)
		log.EXPECT().Warn(gomock.Any())

		p := provisioner.New(loadSnapshot(t), nil, cache, nil, telemetry.NewNoOpTracer(), log)
		_, err := p.Provision(ctx, m, domain.X8664Linux, ports.ProvisionOptions{})
		require.NoError(t, err)
	})

	t.Run("failure is not cached", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cache := mocks.NewMockEnvironmentCache(ctrl)
		cache.EXPECT().Get(gomock.Any()).Return(nil, domain.ErrCacheMiss)

		p := provisioner.New(loadSnapshot(t), nil, cache, nil, telemetry.NewNoOpTracer(), nil)
		_, err := p.Provision(ctx, m, domain.Aarch64Linux, ports.ProvisionOptions{})
		require.Error(t, err)
	})
}

// lockingCatalog is a catalog that can also lock moving revisions.
type lockingCatalog struct {
	*mocks.MockCatalog
	locker *mocks.MockCatalogLocker
}

func (c lockingCatalog) Lock(ctx context.Context, pin domain.CatalogPin) (domain.CatalogPin, error) {
	return c.locker.Lock(ctx, pin)
}

func TestProvision_LocksCatalog(t *testing.T) {
	ctx := context.Background()
	locked := domain.CatalogPin{Source: domain.DefaultCatalogSource, Revision: lockedRev}
	snapshot := loadSnapshot(t)

	t.Run("moving revision is locked to its commit", func(t *testing.T) {
		p := newProvisioner(loadSnapshot(t))

		linux, err := p.Provision(ctx, domain.DefaultManifest(), domain.X8664Linux, ports.ProvisionOptions{})
		require.NoError(t, err)
		assert.Equal(t, locked, linux.Catalog)

		pinned, err := p.Provision(ctx, domain.DefaultManifest().WithCatalog(locked), domain.X8664Linux, ports.ProvisionOptions{})
		require.NoError(t, err)
		assert.Equal(t, linux.ID, pinned.ID)
	})

	t.Run("lookups use the locked commit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		catalog := lockingCatalog{MockCatalog: mocks.NewMockCatalog(ctrl), locker: mocks.NewMockCatalogLocker(ctrl)}
		catalog.locker.EXPECT().Lock(gomock.Any(), domain.DefaultManifest().Catalog).Return(locked, nil)
		catalog.MockCatalog.EXPECT().Resolve(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, ref domain.PackageRef) (*domain.ResolvedPackage, error) {
				assert.Equal(t, locked, ref.Catalog)
				return snapshot.Resolve(ctx, ref)
			}).Times(7)

		env, err := newProvisioner(catalog).Provision(ctx, domain.DefaultManifest(), domain.X8664Linux, ports.ProvisionOptions{})
		require.NoError(t, err)
		assert.Equal(t, locked, env.Catalog)
	})

	t.Run("commit is not locked again", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		catalog := lockingCatalog{MockCatalog: mocks.NewMockCatalog(ctrl), locker: mocks.NewMockCatalogLocker(ctrl)}
		catalog.locker.EXPECT().Lock(gomock.Any(), gomock.Any()).Times(0)
		catalog.MockCatalog.EXPECT().Resolve(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, ref domain.PackageRef) (*domain.ResolvedPackage, error) {
				return snapshot.Resolve(ctx, ref)
			}).Times(7)

		_, err := newProvisioner(catalog).Provision(ctx, domain.DefaultManifest().WithCatalog(locked), domain.X8664Linux, ports.ProvisionOptions{})
		require.NoError(t, err)
	})

	t.Run("lock failure names the first package", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		catalog := lockingCatalog{MockCatalog: mocks.NewMockCatalog(ctrl), locker: mocks.NewMockCatalogLocker(ctrl)}
		catalog.locker.EXPECT().Lock(gomock.Any(), gomock.Any()).
			Return(domain.CatalogPin{}, domain.ErrCatalogUnreachable)
		catalog.MockCatalog.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)

		_, err := newProvisioner(catalog).Provision(ctx, domain.DefaultManifest(), domain.X8664Linux, ports.ProvisionOptions{})
		requireResolutionError(t, err, "rustc", domain.X8664Linux)
		assert.ErrorIs(t, err, domain.ErrCatalogUnreachable)
	})
}

func TestProvision_ConcurrentCallsAreIndependent(t *testing.T) {
	p := newProvisioner(loadSnapshot(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*domain.ShellEnvironment, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			platform := domain.X8664Linux
			if i%2 == 1 {
				platform = domain.Aarch64Darwin
			}
			results[i], errs[i] = p.Provision(ctx, domain.DefaultManifest(), platform, ports.ProvisionOptions{})
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[i%2], results[i])
	}
	results[0].Vars[0].Value = "mutated"
	assert.NotEqual(t, results[0].Vars[0].Value, results[2].Vars[0].Value)
}

func TestProvision_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := telemetry.NewOTelTracerWithProvider(tp, "test")
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	p := provisioner.New(loadSnapshot(t), nil, nil, nil, tracer, nil)
	_, err := p.Provision(context.Background(), domain.DefaultManifest(), domain.Aarch64Linux, ports.ProvisionOptions{})
	require.Error(t, err)

	names := make(map[string]bool)
	var failed []string
	for _, span := range sr.Ended() {
		names[span.Name()] = true
		if span.Status().Description != "" {
			failed = append(failed, span.Name())
		}
	}

	assert.Len(t, sr.Ended(), 8)
	assert.True(t, names["provision aarch64-linux"])
	assert.True(t, names["rust-analyzer"])
	assert.ElementsMatch(t, []string{"rust-analyzer", "provision aarch64-linux"}, failed)
}
