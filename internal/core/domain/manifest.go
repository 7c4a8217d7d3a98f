package domain

import (
	"path"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Role names the purpose a package serves in the shell.
type Role string

// Roles of the fixed package set.
const (
	RoleCompiler       Role = "compiler"
	RoleFormatter      Role = "formatter"
	RoleLinter         Role = "linter"
	RoleBuildTool      Role = "build-tool"
	RoleLanguageServer Role = "language-server"
	RoleBuildHelper    Role = "build-helper"
)

// DefaultOutput is the package output used when a declaration names none.
const DefaultOutput = "out"

// CatalogPin is a pinned reference to a package catalog.
type CatalogPin struct {
	// Source is a flake reference without revision, e.g. "github:NixOS/nixpkgs".
	Source string `yaml:"source" toml:"source" json:"source"`
	// Revision is a commit, or a branch or tag that is locked to one before resolution.
	Revision string `yaml:"revision" toml:"revision" json:"revision"`
}

// Pinned reports whether Revision is a full commit hash rather than a moving ref.
func (c CatalogPin) Pinned() bool {
	if len(c.Revision) != 40 {
		return false
	}
	for _, r := range c.Revision {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// Ref returns the flake reference of the pinned catalog.
func (c CatalogPin) Ref() string {
	if c.Revision == "" {
		return c.Source
	}
	return c.Source + "/" + c.Revision
}

// SystemsPin is a pinned reference to the helper that enumerates supported platforms.
type SystemsPin struct {
	Source    string     `yaml:"source" toml:"source" json:"source"`
	Revision  string     `yaml:"revision" toml:"revision" json:"revision"`
	Platforms []Platform `yaml:"platforms,omitempty" toml:"platforms,omitempty" json:"platforms,omitempty"`
}

// Supported returns the platforms listed by the pin, or the default systems.
func (s SystemsPin) Supported() []Platform {
	if len(s.Platforms) == 0 {
		return DefaultSystems()
	}
	return slices.Clone(s.Platforms)
}

// PackageDecl declares one package of the set.
type PackageDecl struct {
	Role Role `yaml:"role" toml:"role" json:"role"`
	// Name is the catalog attribute, optionally suffixed with @version.
	Name string `yaml:"name" toml:"name" json:"name"`
}

// Spec splits the declared name into attribute name and optional version.
func (d PackageDecl) Spec() (name, version string, err error) {
	name, version, hasVersion := strings.Cut(d.Name, "@")
	if name == "" || (hasVersion && version == "") {
		return "", "", zerr.With(zerr.Wrap(ErrInvalidPackageSpec, "parse package"), "package", d.Name)
	}
	return name, version, nil
}

// Attr returns the catalog attribute name without any version suffix.
func (d PackageDecl) Attr() string {
	name, _, _ := strings.Cut(d.Name, "@")
	return name
}

// EnvBinding derives an environment variable from a resolved package path.
type EnvBinding struct {
	Key string `yaml:"key" toml:"key" json:"key"`
	// Package is the catalog attribute whose prefix is used.
	Package string `yaml:"package" toml:"package" json:"package"`
	// Output selects the package output, e.g. "dev". Defaults to "out".
	Output  string `yaml:"output,omitempty" toml:"output,omitempty" json:"output,omitempty"`
	Subpath string `yaml:"subpath" toml:"subpath" json:"subpath"`
}

// OutputName returns the output the binding reads, defaulting to "out".
func (b EnvBinding) OutputName() string {
	if b.Output == "" {
		return DefaultOutput
	}
	return b.Output
}

// Manifest is the declarative description of a development shell.
type Manifest struct {
	Name     string        `yaml:"name" toml:"name" json:"name"`
	Catalog  CatalogPin    `yaml:"catalog" toml:"catalog" json:"catalog"`
	Systems  SystemsPin    `yaml:"systems" toml:"systems" json:"systems"`
	Packages []PackageDecl `yaml:"packages" toml:"packages" json:"packages"`
	// Libraries are resolvable packages referenced only by bindings.
	Libraries []string     `yaml:"libraries,omitempty" toml:"libraries,omitempty" json:"libraries,omitempty"`
	Env       []EnvBinding `yaml:"env" toml:"env" json:"env"`
}

// Default pins of the bunqyy shell. The catalog follows nixos-unstable and is
// locked to a commit whenever the environment is provisioned.
const (
	DefaultCatalogSource   = "github:NixOS/nixpkgs"
	DefaultCatalogRevision = "nixos-unstable"
	DefaultSystemsSource   = "github:nix-systems/default"
	DefaultSystemsRevision = "da67096a3b9bf56a91d16901293e51ba5b49a27e"
)

// DefaultManifest returns the built-in manifest of the bunqyy development shell.
func DefaultManifest() *Manifest {
	return &Manifest{
		Name: "bunqyy",
		Catalog: CatalogPin{
			Source:   DefaultCatalogSource,
			Revision: DefaultCatalogRevision,
		},
		Systems: SystemsPin{
			Source:   DefaultSystemsSource,
			Revision: DefaultSystemsRevision,
		},
		Packages: []PackageDecl{
			{Role: RoleCompiler, Name: "rustc"},
			{Role: RoleFormatter, Name: "rustfmt"},
			{Role: RoleLinter, Name: "clippy"},
			{Role: RoleBuildTool, Name: "cargo"},
			{Role: RoleLanguageServer, Name: "rust-analyzer"},
			{Role: RoleBuildHelper, Name: "pkg-config"},
		},
		Libraries: []string{"openssl"},
		Env: []EnvBinding{
			{Key: "PKG_CONFIG_PATH", Package: "openssl", Output: "dev", Subpath: "lib/pkgconfig"},
		},
	}
}

// Validate checks the structural invariants of the manifest.
// Resolvability is checked by provisioning, not here.
func (m *Manifest) Validate() error {
	if m.Catalog.Source == "" {
		return invalidManifest("catalog source is empty")
	}
	if len(m.Packages) == 0 {
		return invalidManifest("no packages declared")
	}

	roles := make(map[Role]struct{}, len(m.Packages))
	names := make(map[string]struct{}, len(m.Packages))
	for _, decl := range m.Packages {
		if decl.Role == "" {
			return zerr.With(invalidManifest("package has no role"), "package", decl.Name)
		}
		if _, dup := roles[decl.Role]; dup {
			return zerr.With(invalidManifest("duplicate role"), "role", string(decl.Role))
		}
		roles[decl.Role] = struct{}{}

		name, _, err := decl.Spec()
		if err != nil {
			return err
		}
		if _, dup := names[name]; dup {
			return zerr.With(invalidManifest("duplicate package"), "package", name)
		}
		names[name] = struct{}{}
	}

	keys := make(map[string]struct{}, len(m.Env))
	for _, b := range m.Env {
		if b.Key == "" {
			return invalidManifest("binding has no key")
		}
		if _, dup := keys[b.Key]; dup {
			return zerr.With(invalidManifest("duplicate binding"), "key", b.Key)
		}
		keys[b.Key] = struct{}{}

		if b.Subpath == "" || path.IsAbs(b.Subpath) || strings.HasPrefix(path.Clean(b.Subpath), "..") {
			return zerr.With(invalidManifest("binding subpath must be relative"), "key", b.Key)
		}
	}

	for _, p := range m.Systems.Platforms {
		if _, err := ParsePlatform(string(p)); err != nil {
			return err
		}
	}

	return nil
}

// WithCatalog returns a shallow copy of m resolving against pin.
func (m *Manifest) WithCatalog(pin CatalogPin) *Manifest {
	out := *m
	out.Catalog = pin
	return &out
}

// Declares reports whether name is declared as a package or library.
func (m *Manifest) Declares(name string) bool {
	if name == "" {
		return false
	}
	if slices.Contains(m.Libraries, name) {
		return true
	}
	return slices.ContainsFunc(m.Packages, func(d PackageDecl) bool {
		return d.Attr() == name
	})
}

func invalidManifest(reason string) error {
	return zerr.Wrap(ErrInvalidManifest, reason)
}
