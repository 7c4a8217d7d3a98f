package ports

import "go.trai.ch/devshell/internal/core/domain"

// StoreVerifier checks that the store paths an environment points at are still present.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type StoreVerifier interface {
	// VerifyEnvironment reports whether every search path entry and binding target exists.
	VerifyEnvironment(env *domain.ShellEnvironment) (bool, error)
}
