package domain

import "path/filepath"

const (
	// DevshellDirName is the name of the internal workspace directory.
	DevshellDirName = ".devshell"

	// CacheDirName is the name of the cache directory.
	CacheDirName = "cache"

	// NixHubDirName is the name of the NixHub cache directory.
	NixHubDirName = "nixhub"

	// EnvDirName is the name of the environment cache directory.
	EnvDirName = "environments"

	// ManifestFileName is the name of the YAML manifest.
	ManifestFileName = "devshell.yaml"

	// TOMLManifestFileName is the name of the TOML manifest.
	TOMLManifestFileName = "devshell.toml"

	// LockFileName is the name of the lockfile written next to the manifest.
	LockFileName = "devshell.lock"

	// FlakeFileName is the name of the rendered flake.
	FlakeFileName = "flake.nix"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// ManifestFileNames lists manifest names in lookup order.
func ManifestFileNames() []string {
	return []string{ManifestFileName, TOMLManifestFileName}
}

// DefaultDevshellPath returns the default root directory for devshell metadata.
func DefaultDevshellPath() string {
	return DevshellDirName
}

// DefaultNixHubCachePath returns the default path for the NixHub cache.
// It joins .devshell, cache, and nixhub.
func DefaultNixHubCachePath() string {
	return filepath.Join(DevshellDirName, CacheDirName, NixHubDirName)
}

// DefaultEnvCachePath returns the default path for the environment cache.
// It joins .devshell, cache, and environments.
func DefaultEnvCachePath() string {
	return filepath.Join(DevshellDirName, CacheDirName, EnvDirName)
}
