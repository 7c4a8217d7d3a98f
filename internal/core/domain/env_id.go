package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// GenerateEnvID creates a deterministic hash of a manifest and platform for environment caching.
// Declaration order contributes to the hash since it determines search path order.
func GenerateEnvID(m *Manifest, platform Platform) string {
	var builder strings.Builder

	builder.WriteString("platform:")
	builder.WriteString(platform.String())
	builder.WriteString(";catalog:")
	builder.WriteString(m.Catalog.Ref())
	builder.WriteString(";")

	for _, decl := range m.Packages {
		builder.WriteString(string(decl.Role))
		builder.WriteString(":")
		builder.WriteString(decl.Name)
		builder.WriteString(";")
	}
	for _, lib := range m.Libraries {
		builder.WriteString("lib:")
		builder.WriteString(lib)
		builder.WriteString(";")
	}
	for _, b := range m.Env {
		builder.WriteString("env:")
		builder.WriteString(b.Key)
		builder.WriteString("=")
		builder.WriteString(b.Package)
		builder.WriteString(".")
		builder.WriteString(b.OutputName())
		builder.WriteString("/")
		builder.WriteString(b.Subpath)
		builder.WriteString(";")
	}

	hash := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(hash[:])
}
