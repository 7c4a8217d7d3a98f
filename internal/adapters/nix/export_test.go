package nix

import "net/http"

// NixHubResponse exposes the NixHub response schema to tests.
type NixHubResponse = nixHubResponse

// NewResolverWithClient exposes the http client injection point to tests.
func NewResolverWithClient(path string, client *http.Client) (*Resolver, error) {
	return newResolverWithClient(path, client)
}

// GetHash exposes the cache key derivation to tests.
func GetHash(name, version string) string {
	return getHash(name, version)
}

// NewCatalogWithFinder exposes the nix lookup injection point to tests.
func NewCatalogWithFinder(find func(name string) (string, error)) *Catalog {
	return &Catalog{find: find}
}
