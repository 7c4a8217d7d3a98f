package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/devshell/internal/adapters/cas"      //nolint:depguard // Wired in app layer
	"go.trai.ch/devshell/internal/adapters/config"   //nolint:depguard // Wired in app layer
	"go.trai.ch/devshell/internal/adapters/fixture"  //nolint:depguard // Wired in app layer
	"go.trai.ch/devshell/internal/adapters/fs"       //nolint:depguard // Wired in app layer
	"go.trai.ch/devshell/internal/adapters/lockfile" //nolint:depguard // Wired in app layer
	"go.trai.ch/devshell/internal/adapters/logger"   //nolint:depguard // Wired in app layer
	"go.trai.ch/devshell/internal/adapters/nix"      //nolint:depguard // Wired in app layer
	"go.trai.ch/devshell/internal/adapters/shell"    //nolint:depguard // Wired in app layer
	"go.trai.ch/devshell/internal/adapters/watcher"  //nolint:depguard // Wired in app layer
	"go.trai.ch/devshell/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			fixture.NodeID,
			nix.ResolverNodeID,
			cas.NodeID,
			fs.VerifierNodeID,
			lockfile.NodeID,
			shell.NodeID,
			logger.NodeID,
			fs.WalkerNodeID,
			fs.HasherNodeID,
			watcher.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: app, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ManifestLoader](ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := graft.Dep[ports.Catalog](ctx)
	if err != nil {
		return nil, err
	}
	resolver, err := graft.Dep[ports.DependencyResolver](ctx)
	if err != nil {
		return nil, err
	}
	cache, err := graft.Dep[ports.EnvironmentCache](ctx)
	if err != nil {
		return nil, err
	}
	verifier, err := graft.Dep[ports.StoreVerifier](ctx)
	if err != nil {
		return nil, err
	}
	lockfiles, err := graft.Dep[ports.LockfileStore](ctx)
	if err != nil {
		return nil, err
	}
	sh, err := graft.Dep[ports.Shell](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	walker, err := graft.Dep[*fs.Walker](ctx)
	if err != nil {
		return nil, err
	}
	hasher, err := graft.Dep[*fs.Hasher](ctx)
	if err != nil {
		return nil, err
	}
	newWatcher, err := graft.Dep[ports.WatcherFactory](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, catalog, resolver, cache, verifier, lockfiles, sh, log).
		WithFS(walker, hasher).
		WithWatcherFactory(newWatcher), nil
}
