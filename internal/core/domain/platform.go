package domain

import (
	"runtime"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Platform identifies a host as a Nix system string, e.g. "x86_64-linux".
type Platform string

// Default systems, matching the nix-systems/default enumeration.
const (
	X8664Linux    Platform = "x86_64-linux"
	Aarch64Linux  Platform = "aarch64-linux"
	X8664Darwin   Platform = "x86_64-darwin"
	Aarch64Darwin Platform = "aarch64-darwin"
)

// DefaultSystems returns the platforms a manifest supports when it does not list its own.
func DefaultSystems() []Platform {
	return []Platform{X8664Linux, Aarch64Linux, X8664Darwin, Aarch64Darwin}
}

// ParsePlatform validates the arch-os shape of s.
// It does not check that the platform is supported.
func ParsePlatform(s string) (Platform, error) {
	arch, osName, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || arch == "" || osName == "" || strings.Contains(osName, "-") {
		return "", zerr.With(zerr.Wrap(ErrInvalidPlatform, "parse platform"), "platform", s)
	}
	return Platform(arch + "-" + osName), nil
}

// PlatformFor maps a Go GOOS/GOARCH pair to a Nix system string.
// Unknown pairs map to "<goarch>-<goos>", which no default system matches.
func PlatformFor(goos, goarch string) Platform {
	var arch string
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	case "riscv64":
		arch = "riscv64"
	default:
		arch = goarch
	}
	return Platform(arch + "-" + goos)
}

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	return PlatformFor(runtime.GOOS, runtime.GOARCH)
}

// Arch returns the architecture part of the platform.
func (p Platform) Arch() string {
	arch, _, _ := strings.Cut(string(p), "-")
	return arch
}

// OS returns the operating system part of the platform.
func (p Platform) OS() string {
	_, osName, _ := strings.Cut(string(p), "-")
	return osName
}

func (p Platform) String() string {
	return string(p)
}

// IsSupported reports whether p is one of the given systems.
func (p Platform) IsSupported(systems []Platform) bool {
	return slices.Contains(systems, p)
}
