package cas

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/devshell/internal/adapters/config"
	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
)

// NodeID is the unique identifier for the environment cache Graft node.
const NodeID graft.ID = "adapter.environment_cache"

func init() {
	graft.Register(graft.Node[ports.EnvironmentCache]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.EnvironmentCache, error) {
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
			return NewStore(filepath.Join(root, domain.DefaultEnvCachePath())), nil
		},
	})
}
