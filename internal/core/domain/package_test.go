package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/devshell/internal/core/domain"
)

func TestParseStorePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    domain.StorePathInfo
		wantErr bool
	}{
		{
			name: "simple",
			path: "/nix/store/7x2xk1hw0j4v8fk6h2brbzn2l8s8zpxp-rustc-1.80.1",
			want: domain.StorePathInfo{Hash: "7x2xk1hw0j4v8fk6h2brbzn2l8s8zpxp", Name: "rustc", Version: "1.80.1"},
		},
		{
			name: "dashed name",
			path: "/nix/store/abc-rust-analyzer-2024-08-05",
			want: domain.StorePathInfo{Hash: "abc", Name: "rust-analyzer", Version: "2024-08-05"},
		},
		{
			name: "output suffix",
			path: "/nix/store/abc-openssl-3.0.14-dev",
			want: domain.StorePathInfo{Hash: "abc", Name: "openssl", Version: "3.0.14", Output: "dev"},
		},
		{
			name: "nested path",
			path: "/nix/store/abc-pkg-config-wrapper-0.29.2/bin/pkg-config",
			want: domain.StorePathInfo{Hash: "abc", Name: "pkg-config-wrapper", Version: "0.29.2"},
		},
		{
			name: "no version",
			path: "/nix/store/abc-source",
			want: domain.StorePathInfo{Hash: "abc", Name: "source"},
		},
		{name: "outside store", path: "/usr/bin/rustc", wantErr: true},
		{name: "store root", path: "/nix/store/", wantErr: true},
		{name: "no name", path: "/nix/store/abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseStorePath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStoreDirectory(t *testing.T) {
	dir, err := domain.StoreDirectory("/nix/store/abc-openssl-3.0.14-dev/lib/pkgconfig")
	require.NoError(t, err)
	assert.Equal(t, "/nix/store/abc-openssl-3.0.14-dev", dir)

	entry, err := domain.StoreEntry("/nix/store/abc-openssl-3.0.14-dev/lib")
	require.NoError(t, err)
	assert.Equal(t, "abc-openssl-3.0.14-dev", entry)
}

func TestResolvedPackage_Prefix(t *testing.T) {
	pkg := domain.ResolvedPackage{
		Name: "openssl",
		Outputs: map[string]string{
			"out": "/nix/store/abc-openssl-3.0.14",
			"dev": "/nix/store/def-openssl-3.0.14-dev",
		},
	}

	prefix, err := pkg.Prefix("")
	require.NoError(t, err)
	assert.Equal(t, "/nix/store/abc-openssl-3.0.14", prefix)

	prefix, err = pkg.Prefix("dev")
	require.NoError(t, err)
	assert.Equal(t, "/nix/store/def-openssl-3.0.14-dev", prefix)

	_, err = pkg.Prefix("man")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOutputNotFound))

	assert.Equal(t, "/nix/store/abc-openssl-3.0.14/bin", pkg.BinDir())
	assert.Empty(t, (&domain.ResolvedPackage{Name: "empty"}).BinDir())
}

func TestTrimAttrPath(t *testing.T) {
	assert.Equal(t, "rustc", domain.TrimAttrPath("legacyPackages.x86_64-linux.rustc", domain.X8664Linux))
	assert.Equal(t, "legacyPackages.aarch64-darwin.rustc", domain.TrimAttrPath("legacyPackages.aarch64-darwin.rustc", domain.X8664Linux))
	assert.Equal(t, "rustc", domain.TrimAttrPath("rustc", domain.X8664Linux))
}
