package fixture

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/devshell/internal/adapters/nix"
	"go.trai.ch/devshell/internal/core/ports"
)

// NodeID is the unique identifier for the catalog Graft node.
const NodeID graft.ID = "adapter.catalog"

func init() {
	graft.Register(graft.Node[ports.Catalog]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{nix.CatalogNodeID},
		Run: func(ctx context.Context) (ports.Catalog, error) {
			live, err := graft.Dep[*nix.Catalog](ctx)
			if err != nil {
				return nil, err
			}
			return SelectFromEnv(live)
		},
	})
}
