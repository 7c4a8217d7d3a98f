package app_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grindlemire/graft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/devshell/internal/app"
	_ "go.trai.ch/devshell/internal/wiring" // Register providers
)

func TestAppWiring(t *testing.T) {
	snapshot, err := filepath.Abs(filepath.Join("..", "adapters", "fixture", "testdata", "bunqyy.jsonc"))
	require.NoError(t, err)
	t.Setenv("DEVSHELL_CATALOG", "fixture:"+snapshot)
	t.Setenv("NO_COLOR", "1")
	t.Chdir(t.TempDir())

	components, _, err := graft.ExecuteFor[*app.Components](context.Background())
	require.NoError(t, err)
	require.NotNil(t, components)
	require.NotNil(t, components.App)
	require.NotNil(t, components.Logger)

	var stdout bytes.Buffer
	components.App.WithStreams(strings.NewReader(""), &stdout, new(bytes.Buffer))

	err = components.App.Env(context.Background(), envOpts("dotenv", "aarch64-darwin"))
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), `PKG_CONFIG_PATH="/nix/store/hm0g3v7uaq7w2h6z4s8p0gnz3ct2dk6y-openssl-3.0.14-dev/lib/pkgconfig"`)
}
