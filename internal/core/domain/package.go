package domain

import (
	"path"
	"strings"

	"go.trai.ch/zerr"
)

// StoreDir is the root of the Nix store.
const StoreDir = "/nix/store"

// PackageRef identifies a package lookup in a pinned catalog for one platform.
type PackageRef struct {
	Catalog  CatalogPin
	Platform Platform
	// Attr is the attribute name inside legacyPackages.<platform>.
	Attr string
}

// ResolvedPackage is a package mapped to concrete store paths for one platform.
type ResolvedPackage struct {
	Role     Role              `json:"role,omitempty"`
	Name     string            `json:"name"`
	Version  string            `json:"version,omitempty"`
	Platform Platform          `json:"platform"`
	Outputs  map[string]string `json:"outputs"`
}

// Prefix returns the installation prefix of the named output.
func (p *ResolvedPackage) Prefix(output string) (string, error) {
	if output == "" {
		output = DefaultOutput
	}
	prefix, ok := p.Outputs[output]
	if !ok || prefix == "" {
		err := zerr.With(zerr.Wrap(ErrOutputNotFound, "lookup output"), "package", p.Name)
		return "", zerr.With(err, "output", output)
	}
	return prefix, nil
}

// BinDir returns the executable directory of the default output.
func (p *ResolvedPackage) BinDir() string {
	prefix, err := p.Prefix(DefaultOutput)
	if err != nil {
		return ""
	}
	return path.Join(prefix, "bin")
}

// StorePathInfo is the decomposed name of a store path.
type StorePathInfo struct {
	Hash    string
	Name    string
	Version string
	Output  string
}

// knownOutputs are the output suffixes nixpkgs appends to store path names.
var knownOutputs = []string{"dev", "lib", "bin", "man", "doc", "info", "debug", "out", "static"}

// ParseStorePath decomposes "/nix/store/<hash>-<name>-<version>[-<output>]".
// The version starts at the first dash-separated component that begins with a digit.
func ParseStorePath(p string) (StorePathInfo, error) {
	entry, err := StoreEntry(p)
	if err != nil {
		return StorePathInfo{}, err
	}

	hash, rest, ok := strings.Cut(entry, "-")
	if !ok || hash == "" || rest == "" {
		return StorePathInfo{}, zerr.With(zerr.New("store path has no name"), "path", p)
	}

	parts := strings.Split(rest, "-")
	info := StorePathInfo{Hash: hash}

	if n := len(parts); n > 1 {
		last := parts[n-1]
		for _, out := range knownOutputs {
			if last == out {
				info.Output = out
				parts = parts[:n-1]
				break
			}
		}
	}

	versionIdx := -1
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" && parts[i][0] >= '0' && parts[i][0] <= '9' {
			versionIdx = i
			break
		}
	}

	if versionIdx == -1 {
		info.Name = strings.Join(parts, "-")
	} else {
		info.Name = strings.Join(parts[:versionIdx], "-")
		info.Version = strings.Join(parts[versionIdx:], "-")
	}

	return info, nil
}

// StoreEntry returns the first path component below /nix/store.
func StoreEntry(p string) (string, error) {
	dir, err := StoreDirectory(p)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(dir, StoreDir+"/"), nil
}

// StoreDirectory extracts the store directory from a path within it:
//
//	"/nix/store/abc-openssl-3.0.13-dev/lib/pkgconfig" → "/nix/store/abc-openssl-3.0.13-dev"
func StoreDirectory(p string) (string, error) {
	prefix := StoreDir + "/"
	if !strings.HasPrefix(p, prefix) {
		return "", zerr.With(zerr.New("path is not under /nix/store"), "path", p)
	}

	remainder := p[len(prefix):]
	if remainder == "" {
		return "", zerr.With(zerr.New("path has no store entry name"), "path", p)
	}

	if i := strings.IndexByte(remainder, '/'); i != -1 {
		return p[:len(prefix)+i], nil
	}
	return p, nil
}

// TrimAttrPath strips the "legacyPackages.<platform>." prefix from a flake attribute path.
func TrimAttrPath(attrPath string, platform Platform) string {
	return strings.TrimPrefix(attrPath, "legacyPackages."+platform.String()+".")
}
