package nix

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/devshell/internal/adapters/config"
	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
)

const (
	// ResolverNodeID is the unique identifier for the NixHub resolver Graft node.
	ResolverNodeID graft.ID = "adapter.nix.resolver"
	// CatalogNodeID is the unique identifier for the Nix catalog Graft node.
	CatalogNodeID graft.ID = "adapter.nix.catalog"
)

func init() {
	graft.Register(graft.Node[ports.DependencyResolver]{
		ID:        ResolverNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.DependencyResolver, error) {
			loader, err := graft.Dep[ports.ManifestLoader](ctx)
			if err != nil {
				return nil, err
			}
			cwd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			root, err := loader.DiscoverRoot(cwd)
			if err != nil {
				return nil, err
			}
			return NewResolverWithCache(filepath.Join(root, domain.DefaultNixHubCachePath()))
		},
	})

	graft.Register(graft.Node[*Catalog]{
		ID:        CatalogNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Catalog, error) {
			return NewCatalog(), nil
		},
	})
}
