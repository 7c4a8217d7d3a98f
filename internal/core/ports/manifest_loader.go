package ports

import "go.trai.ch/devshell/internal/core/domain"

// ManifestLoader defines the interface for loading the shell manifest.
//
//go:generate mockgen -source=manifest_loader.go -destination=mocks/mock_manifest_loader.go -package=mocks
type ManifestLoader interface {
	// Load reads the manifest found from cwd upwards.
	// It returns the built-in manifest and an empty path when no manifest file exists.
	Load(cwd string) (*domain.Manifest, string, error)

	// DiscoverRoot walks up from cwd to the directory containing a manifest.
	// It returns cwd itself when no manifest file exists.
	DiscoverRoot(cwd string) (string, error)
}
