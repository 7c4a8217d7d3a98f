package domain

import (
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrResolution is the kind shared by every ResolutionError.
	ErrResolution = zerr.New("failed to resolve package")

	// ErrUnsupportedPlatform is returned when a platform is not one of the default systems.
	ErrUnsupportedPlatform = zerr.New("platform is not a supported system")

	// ErrInvalidPlatform is returned when a platform identifier is not of the form arch-os.
	ErrInvalidPlatform = zerr.New("invalid platform identifier, expected format: arch-os")

	// ErrPackageNotFound is returned when a package name does not exist in the catalog.
	ErrPackageNotFound = zerr.New("package not found in catalog")

	// ErrOutputNotFound is returned when a resolved package lacks the requested output.
	ErrOutputNotFound = zerr.New("package output not found")

	// ErrCatalogUnreachable is returned when the pinned catalog revision cannot be read.
	ErrCatalogUnreachable = zerr.New("package catalog is unreachable")

	// ErrUndeclaredBindingPackage is returned when a binding references a package that is not declared.
	ErrUndeclaredBindingPackage = zerr.New("binding references an undeclared package")

	// ErrMalformedBinding is returned when a binding value would not be prefixed by the resolved package path.
	ErrMalformedBinding = zerr.New("malformed environment binding")

	// ErrInvalidManifest is returned when a manifest fails validation.
	ErrInvalidManifest = zerr.New("invalid manifest")

	// ErrManifestReadFailed is returned when the manifest file cannot be read.
	ErrManifestReadFailed = zerr.New("failed to read manifest file")

	// ErrManifestParseFailed is returned when the manifest file cannot be parsed.
	ErrManifestParseFailed = zerr.New("failed to parse manifest file")

	// ErrInvalidPackageSpec is returned when a package declaration has an empty name or version part.
	ErrInvalidPackageSpec = zerr.New("invalid package specification, expected format: name or name@version")

	// ErrNixNotFound is returned when no nix binary can be located.
	ErrNixNotFound = zerr.New("nix binary not found")

	// ErrNixBuildFailed is returned when nix build fails or returns unusable results.
	ErrNixBuildFailed = zerr.New("failed to build package via Nix")

	// ErrNixCacheCreateFailed is returned when the Nix cache directory cannot be created.
	ErrNixCacheCreateFailed = zerr.New("failed to create Nix cache directory")

	// ErrNixCacheReadFailed is returned when reading from the Nix cache fails.
	ErrNixCacheReadFailed = zerr.New("failed to read from Nix cache")

	// ErrNixCacheWriteFailed is returned when writing to the Nix cache fails.
	ErrNixCacheWriteFailed = zerr.New("failed to write to Nix cache")

	// ErrNixCacheMarshalFailed is returned when marshaling Nix cache data fails.
	ErrNixCacheMarshalFailed = zerr.New("failed to marshal Nix cache data")

	// ErrNixCacheUnmarshalFailed is returned when unmarshaling Nix cache data fails.
	ErrNixCacheUnmarshalFailed = zerr.New("failed to unmarshal Nix cache data")

	// ErrNixAPIRequestFailed is returned when a NixHub API request fails.
	ErrNixAPIRequestFailed = zerr.New("failed to make NixHub API request")

	// ErrNixAPIParseFailed is returned when parsing a NixHub API response fails.
	ErrNixAPIParseFailed = zerr.New("failed to parse NixHub API response")

	// ErrNixPackageNotFound is returned when a package version is not found in NixHub.
	ErrNixPackageNotFound = zerr.New("package version not found in NixHub")

	// ErrFixtureReadFailed is returned when a fixture catalog file cannot be read.
	ErrFixtureReadFailed = zerr.New("failed to read fixture catalog")

	// ErrFixtureParseFailed is returned when a fixture catalog file cannot be parsed.
	ErrFixtureParseFailed = zerr.New("failed to parse fixture catalog")

	// ErrUnknownCatalogBackend is returned when DEVSHELL_CATALOG names an unknown backend.
	ErrUnknownCatalogBackend = zerr.New("unknown catalog backend")

	// ErrCacheMiss is returned when a requested item is not found in the cache.
	ErrCacheMiss = zerr.New("cache miss")

	// ErrCacheReadFailed is returned when a cached environment cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read environment cache")

	// ErrCacheWriteFailed is returned when an environment cannot be written to the cache.
	ErrCacheWriteFailed = zerr.New("failed to write environment cache")

	// ErrLockfileReadFailed is returned when the lockfile cannot be read.
	ErrLockfileReadFailed = zerr.New("failed to read lockfile")

	// ErrLockfileWriteFailed is returned when the lockfile cannot be written.
	ErrLockfileWriteFailed = zerr.New("failed to write lockfile")

	// ErrLockIncomplete is returned when at least one platform fails during locking.
	ErrLockIncomplete = zerr.New("not every platform could be provisioned")

	// ErrUnknownFormat is returned when an environment render format is not recognized.
	ErrUnknownFormat = zerr.New("unknown output format, expected export, json or dotenv")

	// ErrNoCommand is returned when run is invoked without a command.
	ErrNoCommand = zerr.New("no command specified")

	// ErrCommandFailed is returned when a command run inside the environment exits non-zero.
	ErrCommandFailed = zerr.New("command failed")

	// ErrShellFailed is returned when the interactive shell cannot be started.
	ErrShellFailed = zerr.New("failed to start shell")

	// ErrWatchFailed is returned when the manifest watcher cannot be started.
	ErrWatchFailed = zerr.New("failed to watch manifest")
)

// ResolutionError reports a declared package that could not be resolved for a platform.
// It is the only error kind surfaced by provisioning.
type ResolutionError struct {
	Package  string
	Platform Platform
	Err      error
}

// NewResolutionError builds a ResolutionError for the given package and platform.
func NewResolutionError(pkg string, platform Platform, cause error) *ResolutionError {
	return &ResolutionError{Package: pkg, Platform: platform, Err: cause}
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("cannot resolve package %q for platform %s", e.Package, e.Platform)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Message returns the message without the cause chain, for hierarchical error output.
func (e *ResolutionError) Message() string {
	return fmt.Sprintf("cannot resolve package %q for platform %s", e.Package, e.Platform)
}

// Metadata exposes the package and platform to the error formatter.
func (e *ResolutionError) Metadata() map[string]any {
	return map[string]any{
		"package":  e.Package,
		"platform": e.Platform.String(),
	}
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrResolution) hold for every ResolutionError.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}
