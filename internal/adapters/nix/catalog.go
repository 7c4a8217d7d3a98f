// Package nix implements the catalog and resolver ports on top of the Nix CLI and NixHub.
package nix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.Catalog       = (*Catalog)(nil)
	_ ports.CatalogLocker = (*Catalog)(nil)
)

// Markers nix prints on stderr, used to classify build failures.
var (
	notFoundMarkers = []string{
		"does not provide attribute",
		"undefined variable",
	}
	unreachableMarkers = []string{
		"unable to download",
		"Could not resolve host",
		"cannot find flake",
		"error: getting status of",
		"unable to fetch",
	}
)

// Catalog implements ports.Catalog by building packages from a pinned nixpkgs flake.
// Resolve is safe for concurrent use.
type Catalog struct {
	find func(name string) (string, error)

	once      sync.Once
	binary    string
	binaryErr error
}

// NewCatalog creates a Catalog that locates the nix binary on first use.
func NewCatalog() *Catalog {
	return &Catalog{find: FindBinary}
}

// NewCatalogWithBinary creates a Catalog that always invokes the given nix binary.
func NewCatalogWithBinary(path string) *Catalog {
	return &Catalog{find: func(string) (string, error) { return path, nil }}
}

// Installable returns the flake installable selecting every output of ref.
func Installable(ref domain.PackageRef) string {
	return fmt.Sprintf("%s#legacyPackages.%s.%s^*", ref.Catalog.Ref(), ref.Platform, ref.Attr)
}

// Resolve realises the package in the local store and returns its output paths.
func (c *Catalog) Resolve(ctx context.Context, ref domain.PackageRef) (*domain.ResolvedPackage, error) {
	binary, err := c.nixBinary()
	if err != nil {
		return nil, unreachable(err)
	}

	installable := Installable(ref)
	output, err := run(ctx, binary, "build", "--json", "--no-link", installable)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyBuildError(err, ref)
	}

	outputs, err := parseBuildResults(output, ref.Attr, ref.Catalog.Ref())
	if err != nil {
		return nil, err
	}

	pkg := &domain.ResolvedPackage{
		Name:     ref.Attr,
		Platform: ref.Platform,
		Outputs:  outputs,
	}
	if info, err := domain.ParseStorePath(outputs[domain.DefaultOutput]); err == nil {
		pkg.Version = info.Version
	}
	return pkg, nil
}

// nixBinary locates nix once and reuses the result, failure included.
func (c *Catalog) nixBinary() (string, error) {
	c.once.Do(func() {
		c.binary, c.binaryErr = c.find("nix")
	})
	return c.binary, c.binaryErr
}

// Lock asks nix which commit a branch or tag of the catalog points at.
func (c *Catalog) Lock(ctx context.Context, pin domain.CatalogPin) (domain.CatalogPin, error) {
	binary, err := c.nixBinary()
	if err != nil {
		return pin, unreachable(err)
	}

	output, err := run(ctx, binary, "flake", "metadata", "--json", pin.Ref())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return pin, ctxErr
		}
		return pin, zerr.With(classify(err, "nix flake metadata", domain.ErrCatalogUnreachable), "catalog", pin.Ref())
	}

	var meta flakeMetadata
	if err := json.Unmarshal(output, &meta); err != nil {
		return pin, zerr.With(unreachable(err), "catalog", pin.Ref())
	}

	locked := domain.CatalogPin{Source: pin.Source, Revision: meta.Locked.Rev}
	if !locked.Pinned() {
		err := zerr.With(zerr.Wrap(domain.ErrCatalogUnreachable, "nix flake metadata: no locked commit"), "catalog", pin.Ref())
		return pin, err
	}
	return locked, nil
}

// classifyBuildError maps a failed nix build to a catalog error kind.
func classifyBuildError(err error, ref domain.PackageRef) error {
	buildErr := classify(err, "nix build", domain.ErrNixBuildFailed)
	buildErr = zerr.With(buildErr, "attribute", ref.Attr)
	return zerr.With(buildErr, "catalog", ref.Catalog.Ref())
}

func unreachable(err error) error {
	return zerr.Wrap(domain.ErrCatalogUnreachable, err.Error())
}

// classify picks the error kind from the stderr markers of a failed nix command.
func classify(err error, msg string, fallback error) error {
	kind := fallback

	var cmdErr *commandError
	if errors.As(err, &cmdErr) {
		switch {
		case containsAny(cmdErr.Stderr, notFoundMarkers):
			kind = domain.ErrPackageNotFound
		case containsAny(cmdErr.Stderr, unreachableMarkers):
			kind = domain.ErrCatalogUnreachable
		}
	}

	// The last stderr line is nix's own diagnostic; keep it in the message.
	if cmdErr != nil && cmdErr.Stderr != "" {
		msg += ": " + lastLine(cmdErr.Stderr)
	}
	return zerr.Wrap(kind, msg)
}

// parseBuildResults extracts the output paths of the first build result.
func parseBuildResults(output []byte, attr, catalog string) (map[string]string, error) {
	var results buildResults
	if err := json.Unmarshal(output, &results); err != nil {
		parseErr := zerr.Wrap(err, "failed to parse nix build JSON output")
		parseErr = zerr.With(parseErr, "attribute", attr)
		return nil, zerr.With(parseErr, "catalog", catalog)
	}

	if len(results) == 0 {
		emptyErr := zerr.With(zerr.Wrap(domain.ErrNixBuildFailed, "empty build results from nix build"), "attribute", attr)
		return nil, zerr.With(emptyErr, "catalog", catalog)
	}

	outputs := results[0].Outputs
	if p, ok := outputs[domain.DefaultOutput]; !ok || p == "" {
		outErr := zerr.With(zerr.Wrap(domain.ErrNixBuildFailed, "no 'out' output found in build results"), "attribute", attr)
		return nil, zerr.With(outErr, "catalog", catalog)
	}

	return outputs, nil
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i != -1 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
