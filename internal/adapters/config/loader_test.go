package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/devshell/internal/adapters/config"
	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newLoader(t *testing.T, root string, files fstest.MapFS) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info(gomock.Any()).AnyTimes()

	loader := config.NewLoader(mockLogger)
	loader.FS = config.NewMapFSAdapter(root, files)
	return loader
}

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestLoader_LoadFormatsAgree(t *testing.T) {
	root := "/work/bunqyy"
	tests := []struct {
		name     string
		file     string
		testdata string
	}{
		{name: "yaml", file: domain.ManifestFileName, testdata: "bunqyy.yaml"},
		{name: "toml", file: domain.TOMLManifestFileName, testdata: "bunqyy.toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newLoader(t, root, fstest.MapFS{
				tt.file: {Data: readTestdata(t, tt.testdata)},
			})

			m, path, err := loader.Load(root)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, tt.file), path)
			assert.Equal(t, domain.DefaultManifest(), m)
		})
	}
}

func TestLoader_WalksUp(t *testing.T) {
	root := "/work/bunqyy"
	loader := newLoader(t, root, fstest.MapFS{
		domain.ManifestFileName: {Data: readTestdata(t, "bunqyy.yaml")},
		"src/api/.keep":         {Data: nil},
	})

	_, path, err := loader.Load(filepath.Join(root, "src", "api"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, domain.ManifestFileName), path)

	dir, err := loader.DiscoverRoot(filepath.Join(root, "src", "api"))
	require.NoError(t, err)
	assert.Equal(t, root, dir)
}

func TestLoader_YAMLWinsOverTOML(t *testing.T) {
	root := "/work/bunqyy"
	loader := newLoader(t, root, fstest.MapFS{
		domain.ManifestFileName:     {Data: readTestdata(t, "bunqyy.yaml")},
		domain.TOMLManifestFileName: {Data: []byte("this is not toml")},
	})

	_, path, err := loader.Load(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, domain.ManifestFileName), path)
}

func TestLoader_DefaultWithoutManifest(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info(gomock.Any()).Times(1)

	loader := config.NewLoader(mockLogger)
	loader.FS = config.NewMapFSAdapter("/work", fstest.MapFS{})

	m, path, err := loader.Load("/work")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, domain.DefaultManifest(), m)

	dir, err := loader.DiscoverRoot("/work")
	require.NoError(t, err)
	assert.Equal(t, "/work", dir)
}

func TestLoader_PartialManifestInheritsPins(t *testing.T) {
	root := "/work"
	loader := newLoader(t, root, fstest.MapFS{
		domain.ManifestFileName: {Data: []byte(`
catalog:
  revision: nixos-24.05
systems:
  platforms: [x86_64-linux]
packages:
  - role: compiler
    name: rustc@1.80.1
`)},
	})

	m, _, err := loader.Load(root)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCatalogSource, m.Catalog.Source)
	assert.Equal(t, "nixos-24.05", m.Catalog.Revision)
	assert.Equal(t, domain.DefaultSystemsSource, m.Systems.Source)
	assert.Equal(t, []domain.Platform{domain.X8664Linux}, m.Systems.Supported())
	assert.Equal(t, []domain.PackageDecl{{Role: domain.RoleCompiler, Name: "rustc@1.80.1"}}, m.Packages)
	assert.Empty(t, m.Env)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		content     string
		wantErr     error
		errContains string
	}{
		{
			name:    "malformed yaml",
			file:    domain.ManifestFileName,
			content: "packages: [",
			wantErr: domain.ErrManifestParseFailed,
		},
		{
			name:        "unknown yaml field",
			file:        domain.ManifestFileName,
			content:     "pakages: []\n",
			errContains: "field pakages not found",
		},
		{
			name:        "unknown toml key",
			file:        domain.TOMLManifestFileName,
			content:     "nmae = \"x\"\n",
			errContains: "unknown manifest keys",
		},
		{
			name:        "unsupported version",
			file:        domain.ManifestFileName,
			content:     "version: \"2\"\n",
			errContains: "unsupported manifest version",
		},
		{
			name:        "invalid platform",
			file:        domain.ManifestFileName,
			content:     "systems:\n  platforms: [linux]\n",
			errContains: "invalid platform identifier",
		},
		{
			name:        "empty manifest has no packages",
			file:        domain.ManifestFileName,
			content:     "",
			errContains: "no packages declared",
		},
		{
			name: "duplicate role",
			file: domain.ManifestFileName,
			content: `packages:
  - {role: compiler, name: rustc}
  - {role: compiler, name: gcc}
`,
			errContains: "duplicate role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newLoader(t, "/work", fstest.MapFS{
				tt.file: {Data: []byte(tt.content)},
			})

			_, _, err := loader.Load("/work")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			}
			if tt.errContains != "" {
				assert.Contains(t, err.Error(), tt.errContains)
			}
		})
	}
}

func TestLoader_OSFilesystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.TOMLManifestFileName), readTestdata(t, "bunqyy.toml"), domain.FilePerm))
	nested := filepath.Join(dir, "crates", "api")
	require.NoError(t, os.MkdirAll(nested, domain.DirPerm))

	ctrl := gomock.NewController(t)
	loader := config.NewLoader(mocks.NewMockLogger(ctrl))

	m, path, err := loader.Load(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, domain.TOMLManifestFileName), path)
	assert.Equal(t, "bunqyy", m.Name)

	_, err = loader.LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), domain.ErrManifestReadFailed.Error())
}
