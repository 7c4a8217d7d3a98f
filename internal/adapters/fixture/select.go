package fixture

import (
	"os"
	"strings"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/zerr"
)

// EnvCatalog names the environment variable selecting the catalog backend.
const EnvCatalog = "DEVSHELL_CATALOG"

// Select returns the catalog named by spec: "" or "nix" keeps the live catalog,
// "fixture:<path>" loads a snapshot.
func Select(spec string, live ports.Catalog) (ports.Catalog, error) {
	backend, arg, _ := strings.Cut(spec, ":")
	switch backend {
	case "", "nix":
		return live, nil
	case "fixture":
		if arg == "" {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownCatalogBackend, "fixture snapshot path is empty"), "env", EnvCatalog)
		}
		return Load(arg)
	default:
		err := zerr.With(zerr.Wrap(domain.ErrUnknownCatalogBackend, "select catalog"), "backend", backend)
		return nil, zerr.With(err, "env", EnvCatalog)
	}
}

// SelectFromEnv applies Select to the value of DEVSHELL_CATALOG.
func SelectFromEnv(live ports.Catalog) (ports.Catalog, error) {
	return Select(os.Getenv(EnvCatalog), live)
}
