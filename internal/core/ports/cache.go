package ports

import "go.trai.ch/devshell/internal/core/domain"

// EnvironmentCache persists provisioned environments by environment id.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type EnvironmentCache interface {
	// Get returns the cached environment, or an error wrapping domain.ErrCacheMiss.
	Get(envID string) (*domain.ShellEnvironment, error)
	// Put stores the environment under env.ID.
	Put(env *domain.ShellEnvironment) error
}

// LockfileStore reads and writes lockfiles.
type LockfileStore interface {
	Read(path string) (*domain.Lockfile, error)
	Write(path string, lock *domain.Lockfile) error
}
