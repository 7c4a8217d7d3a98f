package shell

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/devshell/internal/adapters/logger"
	"go.trai.ch/devshell/internal/core/ports"
)

// NodeID is the unique identifier for the shell Graft node.
const NodeID graft.ID = "adapter.shell"

func init() {
	graft.Register(graft.Node[ports.Shell]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.Shell, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(log), nil
		},
	})
}
