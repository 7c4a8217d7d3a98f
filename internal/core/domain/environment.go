package domain

import (
	"maps"
	"slices"
	"strings"
)

// PathListSeparator separates search path entries in PATH.
const PathListSeparator = ":"

// EnvVar is a single environment variable binding.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ShellEnvironment is the activatable result of provisioning.
type ShellEnvironment struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Platform Platform `json:"platform"`
	// Catalog is the commit the packages were resolved from.
	Catalog CatalogPin `json:"catalog,omitzero"`
	// Packages are in declaration order.
	Packages []ResolvedPackage `json:"packages"`
	// Libraries are resolved only for bindings and do not extend the search path.
	Libraries []ResolvedPackage `json:"libraries,omitempty"`
	// SearchPath holds executable directories, de-duplicated, in declaration order.
	SearchPath []string `json:"search_path"`
	Vars       []EnvVar `json:"vars"`
}

// NewShellEnvironment builds the search path from the packages' executable directories.
func NewShellEnvironment(id, name string, platform Platform, pkgs []ResolvedPackage, vars []EnvVar) *ShellEnvironment {
	searchPath := make([]string, 0, len(pkgs))
	for i := range pkgs {
		dir := pkgs[i].BinDir()
		if dir == "" || slices.Contains(searchPath, dir) {
			continue
		}
		searchPath = append(searchPath, dir)
	}

	return &ShellEnvironment{
		ID:         id,
		Name:       name,
		Platform:   platform,
		Packages:   pkgs,
		SearchPath: searchPath,
		Vars:       vars,
	}
}

// Lookup returns the value of a binding.
func (e *ShellEnvironment) Lookup(key string) (string, bool) {
	for _, v := range e.Vars {
		if v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// Package returns the resolved package with the given role.
func (e *ShellEnvironment) Package(role Role) (ResolvedPackage, bool) {
	for _, p := range e.Packages {
		if p.Role == role {
			return p, true
		}
	}
	return ResolvedPackage{}, false
}

// PathValue joins the search path in front of an existing PATH value.
func (e *ShellEnvironment) PathValue(existing string) string {
	parts := slices.Clone(e.SearchPath)
	if existing != "" {
		parts = append(parts, existing)
	}
	return strings.Join(parts, PathListSeparator)
}

// Environ merges the environment into base ("KEY=VALUE" entries).
// PATH is prefixed with the search path; bindings replace existing keys.
// The result is sorted for deterministic process environments.
func (e *ShellEnvironment) Environ(base []string) []string {
	overrides := make(map[string]string, len(e.Vars))
	for _, v := range e.Vars {
		overrides[v.Key] = v.Value
	}

	var existingPath string
	out := make([]string, 0, len(base)+len(overrides)+1)
	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if key == "PATH" {
			existingPath = value
			continue
		}
		if _, replaced := overrides[key]; replaced {
			continue
		}
		out = append(out, kv)
	}

	out = append(out, "PATH="+e.PathValue(existingPath))
	for key, value := range overrides {
		out = append(out, key+"="+value)
	}

	slices.Sort(out)
	return out
}

// Clone returns a deep copy of the environment.
func (e *ShellEnvironment) Clone() *ShellEnvironment {
	if e == nil {
		return nil
	}
	out := *e
	out.Packages = clonePackages(e.Packages)
	out.Libraries = clonePackages(e.Libraries)
	out.SearchPath = slices.Clone(e.SearchPath)
	out.Vars = slices.Clone(e.Vars)
	return &out
}

func clonePackages(pkgs []ResolvedPackage) []ResolvedPackage {
	if pkgs == nil {
		return nil
	}
	out := make([]ResolvedPackage, len(pkgs))
	for i, p := range pkgs {
		p.Outputs = maps.Clone(p.Outputs)
		out[i] = p
	}
	return out
}
