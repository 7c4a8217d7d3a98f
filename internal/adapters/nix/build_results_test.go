//nolint:testpackage // Testing internal parsing logic
package nix

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/devshell/internal/core/domain"
)

func TestParseBuildResults_Success(t *testing.T) {
	output := []byte(`[
		{
			"drvPath": "/nix/store/drv",
			"outputs": {
				"out": "/nix/store/out-path",
				"dev": "/nix/store/dev-path"
			}
		}
	]`)

	outputs, err := parseBuildResults(output, "openssl", "github:NixOS/nixpkgs")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"out": "/nix/store/out-path",
		"dev": "/nix/store/dev-path",
	}, outputs)
}

func TestParseBuildResults_InvalidJSON(t *testing.T) {
	_, err := parseBuildResults([]byte(`invalid json`), "rustc", "github:NixOS/nixpkgs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse nix build JSON output")
}

func TestParseBuildResults_EmptyResults(t *testing.T) {
	_, err := parseBuildResults([]byte(`[]`), "rustc", "github:NixOS/nixpkgs")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNixBuildFailed))
	assert.Contains(t, err.Error(), "empty build results from nix build")
}

func TestParseBuildResults_MissingOut(t *testing.T) {
	output := []byte(`[{"drvPath": "/nix/store/drv", "outputs": {"dev": "/nix/store/dev-path"}}]`)

	_, err := parseBuildResults(output, "openssl", "github:NixOS/nixpkgs")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNixBuildFailed))
	assert.Contains(t, err.Error(), "no 'out' output found in build results")
}

func TestClassifyBuildError(t *testing.T) {
	r := domain.PackageRef{
		Catalog:  domain.CatalogPin{Source: domain.DefaultCatalogSource},
		Platform: domain.X8664Linux,
		Attr:     "rustc",
	}

	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{name: "missing attribute", stderr: "error: flake does not provide attribute 'x'", want: domain.ErrPackageNotFound},
		{name: "offline", stderr: "warning: x\nerror: unable to download 'https://x'", want: domain.ErrCatalogUnreachable},
		{name: "other", stderr: "error: builder failed", want: domain.ErrNixBuildFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyBuildError(&commandError{Stderr: tt.stderr, Err: errors.New("exit status 1")}, r)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "error: b", lastLine("warning: a\nerror: b\n"))
	assert.Equal(t, "only", lastLine("only"))
}
