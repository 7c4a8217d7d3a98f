package nix

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	nixHubAPIBase     = "https://search.devbox.sh/v2/resolve"
	httpClientTimeout = 30 * time.Second
)

// Resolver implements ports.DependencyResolver using the NixHub API with local caching.
type Resolver struct {
	cacheDir   string
	httpClient *http.Client
}

// NewResolver creates a Resolver caching under the default NixHub cache path.
func NewResolver() (*Resolver, error) {
	return NewResolverWithCache(domain.DefaultNixHubCachePath())
}

// NewResolverWithCache creates a Resolver caching under path.
func NewResolverWithCache(path string) (*Resolver, error) {
	return newResolverWithClient(path, &http.Client{Timeout: httpClientTimeout})
}

func newResolverWithClient(path string, client *http.Client) (*Resolver, error) {
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(cleanPath, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrNixCacheCreateFailed.Error()), "path", cleanPath)
	}

	return &Resolver{
		cacheDir:   cleanPath,
		httpClient: client,
	}, nil
}

// Resolve resolves name@version to a nixpkgs revision and attribute path for platform.
// It checks the cache first, then queries the NixHub API.
func (r *Resolver) Resolve(
	ctx context.Context,
	name, version string,
	platform domain.Platform,
) (revision, attrPath string, err error) {
	cachePath := r.getCachePath(name, version)
	revision, attrPath, err = r.loadFromCache(cachePath, platform)
	if err == nil {
		return revision, attrPath, nil
	}

	apiResponse, err := r.queryNixHub(ctx, name, version)
	if err != nil {
		return "", "", err
	}

	systemData, ok := apiResponse.Systems[platform]
	if !ok {
		unsupportedErr := zerr.With(zerr.Wrap(domain.ErrNixPackageNotFound, "lookup platform"), "package", name)
		unsupportedErr = zerr.With(unsupportedErr, "version", version)
		return "", "", zerr.With(unsupportedErr, "platform", platform.String())
	}

	// A failed cache write only costs a request next time.
	_ = r.saveToCache(cachePath, name, version, apiResponse)

	return systemData.FlakeInstallable.Ref.Rev, systemData.FlakeInstallable.AttrPath, nil
}

// getHash generates a SHA-256 hash of name@version for cache file names.
func getHash(name, version string) string {
	hash := sha256.Sum256([]byte(name + "@" + version))
	return hex.EncodeToString(hash[:])
}

func (r *Resolver) getCachePath(name, version string) string {
	return filepath.Join(r.cacheDir, getHash(name, version)+".json")
}

// loadFromCache attempts to load a cached resolution result for the given platform.
func (r *Resolver) loadFromCache(path string, platform domain.Platform) (revision, attrPath string, err error) {
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", domain.ErrCacheMiss
		}
		return "", "", zerr.Wrap(err, domain.ErrNixCacheReadFailed.Error())
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", "", zerr.Wrap(err, domain.ErrNixCacheUnmarshalFailed.Error())
	}

	systemCache, ok := entry.Systems[platform]
	if !ok {
		return "", "", domain.ErrCacheMiss
	}

	return systemCache.FlakeInstallable.Ref.Rev, systemCache.FlakeInstallable.AttrPath, nil
}

// saveToCache keeps the default systems of an API response.
func (r *Resolver) saveToCache(path, name, version string, apiResponse *nixHubResponse) error {
	systems := make(map[domain.Platform]SystemCache)
	for platform, sysData := range apiResponse.Systems {
		if !platform.IsSupported(domain.DefaultSystems()) {
			continue
		}
		systems[platform] = SystemCache{
			FlakeInstallable: sysData.FlakeInstallable,
			Outputs:          sysData.Outputs,
		}
	}

	entry := cacheEntry{
		Name:      name,
		Version:   version,
		Systems:   systems,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrNixCacheMarshalFailed.Error())
	}

	if err := atomicWriteFile(path, data); err != nil {
		return zerr.Wrap(err, domain.ErrNixCacheWriteFailed.Error())
	}

	return nil
}

// atomicWriteFile writes data to a temp file in the target directory and renames it into place.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "resolver-cache-*.json")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()

	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// queryNixHub queries the NixHub API to resolve a package version.
func (r *Resolver) queryNixHub(ctx context.Context, name, version string) (*nixHubResponse, error) {
	query := url.Values{"name": {name}, "version": {version}}
	endpoint := nixHubAPIBase + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrNixAPIRequestFailed.Error())
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrNixAPIRequestFailed.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		notFoundErr := zerr.With(zerr.Wrap(domain.ErrNixPackageNotFound, "query NixHub"), "package", name)
		return nil, zerr.With(notFoundErr, "version", version)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := zerr.With(zerr.Wrap(domain.ErrNixAPIRequestFailed, "query NixHub"), "status_code", resp.StatusCode)
		apiErr = zerr.With(apiErr, "package", name)
		return nil, zerr.With(apiErr, "version", version)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrNixAPIRequestFailed.Error())
	}

	var apiResp nixHubResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, zerr.Wrap(err, domain.ErrNixAPIParseFailed.Error())
	}

	if len(apiResp.Systems) == 0 {
		noSystemsErr := zerr.With(zerr.Wrap(domain.ErrNixPackageNotFound, "query NixHub"), "package", name)
		return nil, zerr.With(noSystemsErr, "version", version)
	}

	return &apiResp, nil
}
