package nix_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/devshell/internal/adapters/nix"
	"go.trai.ch/devshell/internal/core/domain"
)

// fakeNix answers nix build and nix flake metadata the way nixpkgs would for a handful of attributes.
const fakeNix = `#!/bin/sh
if [ "$1" = flake ]; then
  case "$4" in
    offline*)
      echo "error: unable to download 'https://api.github.com/repos/NixOS/nixpkgs/commits/x': Could not resolve host: api.github.com" >&2
      exit 1
      ;;
    */unlocked)
      echo '{"locked":{"type":"github"}}'
      ;;
    */nixos-unstable)
      echo '{"locked":{"owner":"NixOS","repo":"nixpkgs","rev":"c0f3a1e5b2d94e7a8f6b1c3d5e7f9a0b2c4d6e8f","type":"github"}}'
      ;;
    *)
      echo "error: cannot find flake '$4'" >&2
      exit 1
      ;;
  esac
  exit 0
fi

case "$4" in
  offline*)
    echo "error: unable to download 'https://github.com/NixOS/nixpkgs/archive/x.tar.gz': Could not resolve host: github.com" >&2
    exit 1
    ;;
  *legacyPackages.x86_64-linux.rustc^\*)
    echo '[{"drvPath":"/nix/store/d-rustc-1.80.1.drv","outputs":{"out":"/nix/store/a-rustc-1.80.1","man":"/nix/store/b-rustc-1.80.1-man"}}]'
    ;;
  *legacyPackages.x86_64-linux.openssl^\*)
    echo '[{"drvPath":"/nix/store/d-openssl.drv","outputs":{"out":"/nix/store/c-openssl-3.0.14","dev":"/nix/store/e-openssl-3.0.14-dev"}}]'
    ;;
  *legacyPackages.x86_64-linux.empty^\*)
    echo '[]'
    ;;
  *)
    echo "error: flake 'github:NixOS/nixpkgs/nixos-unstable' does not provide attribute 'legacyPackages.x86_64-linux.rustcc'" >&2
    exit 1
    ;;
esac
`

func writeFakeNix(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake nix is a shell script")
	}
	path := filepath.Join(t.TempDir(), "nix")
	require.NoError(t, os.WriteFile(path, []byte(fakeNix), 0o755)) //nolint:gosec // test executable
	return path
}

func newFakeCatalog(t *testing.T) *nix.Catalog {
	t.Helper()
	return nix.NewCatalogWithBinary(writeFakeNix(t))
}

func ref(source, attr string) domain.PackageRef {
	return domain.PackageRef{
		Catalog:  domain.CatalogPin{Source: source, Revision: "nixos-unstable"},
		Platform: domain.X8664Linux,
		Attr:     attr,
	}
}

func TestInstallable(t *testing.T) {
	assert.Equal(t,
		"github:NixOS/nixpkgs/nixos-unstable#legacyPackages.x86_64-linux.rust-analyzer^*",
		nix.Installable(ref(domain.DefaultCatalogSource, "rust-analyzer")),
	)
}

func TestCatalog_Resolve(t *testing.T) {
	catalog := newFakeCatalog(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		pkg, err := catalog.Resolve(ctx, ref(domain.DefaultCatalogSource, "rustc"))
		require.NoError(t, err)
		assert.Equal(t, "rustc", pkg.Name)
		assert.Equal(t, "1.80.1", pkg.Version)
		assert.Equal(t, domain.X8664Linux, pkg.Platform)
		assert.Equal(t, "/nix/store/a-rustc-1.80.1/bin", pkg.BinDir())
	})

	t.Run("MultipleOutputs", func(t *testing.T) {
		pkg, err := catalog.Resolve(ctx, ref(domain.DefaultCatalogSource, "openssl"))
		require.NoError(t, err)

		prefix, err := pkg.Prefix("dev")
		require.NoError(t, err)
		assert.Equal(t, "/nix/store/e-openssl-3.0.14-dev", prefix)
		assert.Equal(t, "3.0.14", pkg.Version)
	})

	t.Run("UnknownAttribute", func(t *testing.T) {
		_, err := catalog.Resolve(ctx, ref(domain.DefaultCatalogSource, "rustcc"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrPackageNotFound))
		assert.Contains(t, err.Error(), "does not provide attribute")
		assert.Contains(t, err.Error(), "package not found in catalog")
	})

	t.Run("Unreachable", func(t *testing.T) {
		_, err := catalog.Resolve(ctx, ref("offline:nixpkgs", "rustc"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrCatalogUnreachable))
	})

	t.Run("EmptyResults", func(t *testing.T) {
		_, err := catalog.Resolve(ctx, ref(domain.DefaultCatalogSource, "empty"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNixBuildFailed))
	})
}

func TestCatalog_Lock(t *testing.T) {
	catalog := newFakeCatalog(t)
	ctx := context.Background()

	t.Run("Branch", func(t *testing.T) {
		pin, err := catalog.Lock(ctx, domain.CatalogPin{Source: domain.DefaultCatalogSource, Revision: "nixos-unstable"})
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultCatalogSource, pin.Source)
		assert.Equal(t, "c0f3a1e5b2d94e7a8f6b1c3d5e7f9a0b2c4d6e8f", pin.Revision)
		assert.True(t, pin.Pinned())
	})

	failures := []struct {
		name    string
		pin     domain.CatalogPin
		message string
	}{
		{name: "Offline", pin: domain.CatalogPin{Source: "offline:nixpkgs", Revision: "nixos-unstable"}, message: "Could not resolve host"},
		{name: "UnknownRef", pin: domain.CatalogPin{Source: domain.DefaultCatalogSource, Revision: "nixos-00.00"}, message: "cannot find flake"},
		{name: "NoLockedCommit", pin: domain.CatalogPin{Source: domain.DefaultCatalogSource, Revision: "unlocked"}, message: "no locked commit"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			pin, err := catalog.Lock(ctx, tt.pin)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrCatalogUnreachable))
			assert.Contains(t, err.Error(), tt.message)
			assert.Equal(t, tt.pin, pin)
		})
	}
}

func TestCatalog_ResolveConcurrent(t *testing.T) {
	path := writeFakeNix(t)

	var lookups atomic.Int32
	catalog := nix.NewCatalogWithFinder(func(name string) (string, error) {
		lookups.Add(1)
		assert.Equal(t, "nix", name)
		return path, nil
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			pkg, err := catalog.Resolve(context.Background(), ref(domain.DefaultCatalogSource, "rustc"))
			if assert.NoError(t, err) {
				assert.Equal(t, "/nix/store/a-rustc-1.80.1/bin", pkg.BinDir())
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), lookups.Load())
}

func TestCatalog_LookupFailureIsReused(t *testing.T) {
	var lookups atomic.Int32
	catalog := nix.NewCatalogWithFinder(func(string) (string, error) {
		lookups.Add(1)
		return "", domain.ErrNixNotFound
	})

	for range 2 {
		_, err := catalog.Resolve(context.Background(), ref(domain.DefaultCatalogSource, "rustc"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrCatalogUnreachable))
	}
	assert.Equal(t, int32(1), lookups.Load())
}

func TestCatalog_MissingBinary(t *testing.T) {
	catalog := nix.NewCatalogWithBinary(filepath.Join(t.TempDir(), "no-such-nix"))

	_, err := catalog.Resolve(context.Background(), ref(domain.DefaultCatalogSource, "rustc"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrPackageNotFound))
}

func TestFindBinary_NonexistentBinary(t *testing.T) {
	_, err := nix.FindBinary("nix-definitely-does-not-exist-abcxyz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNixNotFound))
}
