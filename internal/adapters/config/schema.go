package config

// ManifestVersion is the only manifest schema version understood by the loader.
const ManifestVersion = "1"

// ManifestFile is the on-disk shape of devshell.yaml and devshell.toml.
type ManifestFile struct {
	Version   string       `yaml:"version" toml:"version"`
	Name      string       `yaml:"name" toml:"name"`
	Catalog   *PinDTO      `yaml:"catalog" toml:"catalog"`
	Systems   *SystemsDTO  `yaml:"systems" toml:"systems"`
	Packages  []PackageDTO `yaml:"packages" toml:"packages"`
	Libraries []string     `yaml:"libraries" toml:"libraries"`
	Env       []EnvBindDTO `yaml:"env" toml:"env"`
}

// PinDTO is a pinned flake reference.
type PinDTO struct {
	Source   string `yaml:"source" toml:"source"`
	Revision string `yaml:"revision" toml:"revision"`
}

// SystemsDTO pins the systems helper and optionally overrides its platform list.
type SystemsDTO struct {
	Source    string   `yaml:"source" toml:"source"`
	Revision  string   `yaml:"revision" toml:"revision"`
	Platforms []string `yaml:"platforms" toml:"platforms"`
}

// PackageDTO declares one package by role.
type PackageDTO struct {
	Role string `yaml:"role" toml:"role"`
	Name string `yaml:"name" toml:"name"`
}

// EnvBindDTO derives an environment variable from a package prefix.
type EnvBindDTO struct {
	Key     string `yaml:"key" toml:"key"`
	Package string `yaml:"package" toml:"package"`
	Output  string `yaml:"output" toml:"output"`
	Subpath string `yaml:"subpath" toml:"subpath"`
}
