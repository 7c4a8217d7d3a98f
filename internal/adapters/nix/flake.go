package nix

import (
	"fmt"
	"strings"

	"go.trai.ch/devshell/internal/core/domain"
)

// RenderFlake renders the manifest as the equivalent flake.nix.
// Version suffixes are kept as comments since a flake selects packages by attribute only.
func RenderFlake(m *domain.Manifest) []byte {
	var b strings.Builder

	description := "development shell"
	if m.Name != "" {
		description = m.Name + " " + description
	}

	b.WriteString("{\n")
	fmt.Fprintf(&b, "  description = %q;\n\n", description)

	b.WriteString("  inputs = {\n")
	fmt.Fprintf(&b, "    nixpkgs.url = %q;\n", m.Catalog.Ref())
	pinned := len(m.Systems.Platforms) > 0
	if !pinned {
		systems := domain.CatalogPin{Source: m.Systems.Source, Revision: m.Systems.Revision}
		fmt.Fprintf(&b, "    systems.url = %q;\n", systems.Ref())
	}
	b.WriteString("  };\n\n")

	if pinned {
		b.WriteString("  outputs = { nixpkgs, ... }:\n")
	} else {
		b.WriteString("  outputs = { nixpkgs, systems, ... }:\n")
	}
	b.WriteString("    let\n")
	if pinned {
		quoted := make([]string, 0, len(m.Systems.Platforms))
		for _, p := range m.Systems.Platforms {
			quoted = append(quoted, fmt.Sprintf("%q", p.String()))
		}
		fmt.Fprintf(&b, "      supportedSystems = [ %s ];\n", strings.Join(quoted, " "))
	} else {
		b.WriteString("      supportedSystems = import systems;\n")
	}
	b.WriteString("      forEachSystem = f: nixpkgs.lib.genAttrs supportedSystems (system: f nixpkgs.legacyPackages.${system});\n")
	b.WriteString("    in\n")
	b.WriteString("    {\n")
	b.WriteString("      devShells = forEachSystem (pkgs: {\n")
	b.WriteString("        default = pkgs.mkShell {\n")
	b.WriteString("          packages = [\n")
	for _, decl := range m.Packages {
		name, version, _ := decl.Spec()
		line := "            pkgs." + nixAttr(name)
		if version != "" {
			line += " # " + version
		}
		fmt.Fprintf(&b, "%s\n", line)
	}
	b.WriteString("          ];\n")

	for _, binding := range m.Env {
		ref := "pkgs." + nixAttr(binding.Package)
		if binding.OutputName() != domain.DefaultOutput {
			ref += "." + binding.OutputName()
		}
		fmt.Fprintf(&b, "\n          %s = \"${%s}/%s\";\n", binding.Key, ref, binding.Subpath)
	}

	b.WriteString("        };\n")
	b.WriteString("      });\n")
	b.WriteString("    };\n")
	b.WriteString("}\n")

	return []byte(b.String())
}

// nixAttr quotes attribute names that are not valid bare Nix identifiers.
func nixAttr(name string) string {
	for i, r := range name {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isRest := r >= '0' && r <= '9' || r == '-' || r == '\''
		if !isAlpha && (i == 0 || !isRest) {
			return fmt.Sprintf("%q", name)
		}
	}
	return name
}
