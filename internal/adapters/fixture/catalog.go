// Package fixture provides an offline package catalog backed by a JSONC snapshot.
//
// A snapshot records, for one pinned catalog revision, the outputs every
// package builds to on each platform:
//
//	{
//	  // taken from nixos-unstable on 2024-08-01
//	  "catalog": {"source": "github:NixOS/nixpkgs", "revision": "nixos-unstable"},
//	  "locked": "<commit nixos-unstable pointed at>",
//	  "platforms": {
//	    "x86_64-linux": {
//	      "rustc": {"version": "1.80.1", "outputs": {"out": "/nix/store/...-rustc-1.80.1"}},
//	    },
//	  },
//	}
package fixture

import (
	"context"
	"encoding/json"
	"maps"
	"os"

	"github.com/tidwall/jsonc"
	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.Catalog       = (*Catalog)(nil)
	_ ports.CatalogLocker = (*Catalog)(nil)
)

// Entry is one package of the snapshot.
type Entry struct {
	Version string            `json:"version"`
	Outputs map[string]string `json:"outputs"`
}

// Snapshot is the on-disk form of a fixture catalog.
type Snapshot struct {
	Catalog domain.CatalogPin `json:"catalog"`
	// Locked is the commit Catalog.Revision pointed at when the snapshot was taken.
	Locked    string                               `json:"locked,omitempty"`
	Platforms map[domain.Platform]map[string]Entry `json:"platforms"`
}

// Catalog implements ports.Catalog from an in-memory snapshot.
type Catalog struct {
	snapshot Snapshot
}

// New creates a Catalog serving the given snapshot.
func New(snapshot Snapshot) *Catalog {
	return &Catalog{snapshot: snapshot}
}

// Parse strips JSONC comments and trailing commas from data and decodes the snapshot.
func Parse(data []byte) (*Catalog, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(jsonc.ToJSON(data), &snapshot); err != nil {
		return nil, zerr.Wrap(err, domain.ErrFixtureParseFailed.Error())
	}
	if snapshot.Catalog.Source == "" {
		return nil, zerr.Wrap(domain.ErrFixtureParseFailed, "snapshot has no catalog source")
	}
	return New(snapshot), nil
}

// Load reads a JSONC snapshot from disk.
func Load(path string) (*Catalog, error) {
	//nolint:gosec // path is chosen by the user through DEVSHELL_CATALOG
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrFixtureReadFailed.Error()), "path", path)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return c, nil
}

// Lock returns the snapshot's locked commit for the snapshot's own pin.
// Any other pin is returned unchanged and fails on Resolve.
func (c *Catalog) Lock(ctx context.Context, pin domain.CatalogPin) (domain.CatalogPin, error) {
	if err := ctx.Err(); err != nil {
		return pin, err
	}
	if pin != c.snapshot.Catalog || c.snapshot.Locked == "" {
		return pin, nil
	}
	return domain.CatalogPin{Source: pin.Source, Revision: c.snapshot.Locked}, nil
}

// Resolve looks the package up in the snapshot.
// A reference to any other catalog pin is treated as unreachable.
func (c *Catalog) Resolve(ctx context.Context, ref domain.PackageRef) (*domain.ResolvedPackage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !c.serves(ref.Catalog) {
		err := zerr.With(zerr.Wrap(domain.ErrCatalogUnreachable, "fixture snapshot"), "catalog", ref.Catalog.Ref())
		return nil, zerr.With(err, "snapshot", c.snapshot.Catalog.Ref())
	}

	entry, ok := c.snapshot.Platforms[ref.Platform][ref.Attr]
	if !ok || len(entry.Outputs) == 0 {
		err := zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "fixture snapshot"), "attribute", ref.Attr)
		return nil, zerr.With(err, "platform", ref.Platform.String())
	}

	return &domain.ResolvedPackage{
		Name:     ref.Attr,
		Version:  entry.Version,
		Platform: ref.Platform,
		Outputs:  maps.Clone(entry.Outputs),
	}, nil
}

func (c *Catalog) serves(pin domain.CatalogPin) bool {
	if pin == c.snapshot.Catalog {
		return true
	}
	locked := domain.CatalogPin{Source: c.snapshot.Catalog.Source, Revision: c.snapshot.Locked}
	return c.snapshot.Locked != "" && pin == locked
}
