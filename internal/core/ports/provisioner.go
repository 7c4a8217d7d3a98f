package ports

import (
	"context"

	"go.trai.ch/devshell/internal/core/domain"
)

// ProvisionOptions tunes a single provisioning call.
type ProvisionOptions struct {
	// NoCache skips reading the environment cache. Results are still written.
	NoCache bool
}

// Provisioner resolves a manifest into an activatable shell environment for one platform.
//
//go:generate mockgen -source=provisioner.go -destination=mocks/mock_provisioner.go -package=mocks
type Provisioner interface {
	// Provision returns the environment, or a *domain.ResolutionError naming the first
	// declared package that could not be resolved. It never returns a partial environment.
	Provision(ctx context.Context, manifest *domain.Manifest, platform domain.Platform, opts ProvisionOptions) (*domain.ShellEnvironment, error)
}
