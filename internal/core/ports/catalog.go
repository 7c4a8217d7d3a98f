// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/devshell/internal/core/domain"
)

// Catalog resolves package names against a pinned package catalog.
//
//go:generate mockgen -source=catalog.go -destination=mocks/mock_catalog.go -package=mocks
type Catalog interface {
	// Resolve maps a package reference to its store paths for the reference's platform.
	//
	// Implementations wrap domain.ErrPackageNotFound when the attribute does not exist
	// and domain.ErrCatalogUnreachable when the pinned revision cannot be read.
	Resolve(ctx context.Context, ref domain.PackageRef) (*domain.ResolvedPackage, error)
}

// CatalogLocker is implemented by catalogs that can pin a branch or tag to a commit.
type CatalogLocker interface {
	// Lock returns pin with Revision replaced by the commit it currently points at.
	Lock(ctx context.Context, pin domain.CatalogPin) (domain.CatalogPin, error)
}

// DependencyResolver resolves a versioned package to the catalog revision that carries it.
type DependencyResolver interface {
	// Resolve returns the catalog revision and attribute path providing name@version on platform.
	// It should check the cache first, then query the NixHub API.
	Resolve(ctx context.Context, name, version string, platform domain.Platform) (revision, attrPath string, err error)
}
