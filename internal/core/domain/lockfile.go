package domain

import (
	"slices"
	"time"
)

// LockfileVersion is the current lockfile format version.
const LockfileVersion = 1

// Lockfile records the store paths a manifest resolved to on every platform.
type Lockfile struct {
	Version   int        `yaml:"version"`
	Name      string     `yaml:"name,omitempty"`
	Catalog   CatalogPin `yaml:"catalog"`
	Generated time.Time  `yaml:"generated"`
	// Packages maps package name to platform to the locked entry.
	Packages map[string]map[Platform]LockedPackage `yaml:"packages"`
}

// LockedPackage is the resolved state of one package on one platform.
type LockedPackage struct {
	Role    Role              `yaml:"role,omitempty"`
	Version string            `yaml:"version,omitempty"`
	Outputs map[string]string `yaml:"outputs"`
}

// NewLockfile creates an empty lockfile for the manifest.
func NewLockfile(m *Manifest, generated time.Time) *Lockfile {
	return &Lockfile{
		Version:   LockfileVersion,
		Name:      m.Name,
		Catalog:   m.Catalog,
		Generated: generated.UTC(),
		Packages:  make(map[string]map[Platform]LockedPackage),
	}
}

// Record adds every package and library of a provisioned environment to the lockfile.
// The catalog commit the environment was resolved from replaces a moving revision.
func (l *Lockfile) Record(env *ShellEnvironment) {
	if env.Catalog.Pinned() {
		l.Catalog = env.Catalog
	}
	add := func(p ResolvedPackage) {
		byPlatform, ok := l.Packages[p.Name]
		if !ok {
			byPlatform = make(map[Platform]LockedPackage)
			l.Packages[p.Name] = byPlatform
		}
		byPlatform[env.Platform] = LockedPackage{
			Role:    p.Role,
			Version: p.Version,
			Outputs: p.Outputs,
		}
	}

	for _, p := range env.Packages {
		add(p)
	}
	for _, p := range env.Libraries {
		add(p)
	}
}

// Platforms returns the platforms recorded for a package, sorted.
func (l *Lockfile) Platforms(name string) []Platform {
	byPlatform := l.Packages[name]
	platforms := make([]Platform, 0, len(byPlatform))
	for p := range byPlatform {
		platforms = append(platforms, p)
	}
	slices.Sort(platforms)
	return platforms
}
