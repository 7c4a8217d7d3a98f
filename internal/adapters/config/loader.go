// Package config provides the manifest loader for devshell.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ManifestLoader = (*Loader)(nil)

// Loader implements ports.ManifestLoader for devshell.yaml and devshell.toml.
type Loader struct {
	Logger ports.Logger
	FS     FileSystem
}

// NewLoader creates a new Loader reading from the OS filesystem.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, FS: NewOSFS()}
}

// Load reads the nearest manifest at or above cwd.
// Without a manifest file it returns the built-in manifest and an empty path.
func (l *Loader) Load(cwd string) (*domain.Manifest, string, error) {
	path, err := l.findManifest(cwd)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		l.Logger.Info("no manifest found, using the built-in bunqyy shell")
		return domain.DefaultManifest(), "", nil
	}

	m, err := l.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	return m, path, nil
}

// DiscoverRoot walks up from cwd to the directory holding a manifest.
// It returns cwd when there is none.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	path, err := l.findManifest(cwd)
	if err != nil {
		return "", err
	}
	if path == "" {
		return cwd, nil
	}
	return filepath.Dir(path), nil
}

// LoadFile parses and validates the manifest at path. The format follows the extension.
func (l *Loader) LoadFile(path string) (*domain.Manifest, error) {
	data, err := l.FS.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrManifestReadFailed.Error()), "path", path)
	}

	var file ManifestFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(data, &file)
	default:
		err = decodeYAML(data, &file)
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrManifestParseFailed.Error()), "path", path)
	}

	m, err := file.toDomain()
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	if err := m.Validate(); err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return m, nil
}

func (l *Loader) findManifest(cwd string) (string, error) {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to resolve working directory"), "cwd", cwd)
	}

	for currentDir := abs; ; {
		for _, name := range domain.ManifestFileNames() {
			candidate := filepath.Join(currentDir, name)
			info, statErr := l.FS.Stat(candidate)
			if statErr == nil && !info.IsDir() {
				return candidate, nil
			}
			if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
				return "", zerr.With(zerr.Wrap(statErr, domain.ErrManifestReadFailed.Error()), "path", candidate)
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", nil
		}
		currentDir = parentDir
	}
}

func decodeYAML(data []byte, target *ManifestFile) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil {
		// An empty document decodes to the zero manifest.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func decodeTOML(data []byte, target *ManifestFile) error {
	md, err := toml.Decode(string(data), target)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return zerr.With(zerr.New("unknown manifest keys"), "keys", strings.Join(keys, ", "))
	}
	return nil
}

// toDomain converts the file into a manifest, filling unset pins from the built-in manifest.
func (f *ManifestFile) toDomain() (*domain.Manifest, error) {
	if f.Version != "" && f.Version != ManifestVersion {
		err := zerr.Wrap(domain.ErrInvalidManifest, fmt.Sprintf("unsupported manifest version, expected %q", ManifestVersion))
		return nil, zerr.With(err, "version", f.Version)
	}

	defaults := domain.DefaultManifest()
	m := &domain.Manifest{
		Name:      f.Name,
		Catalog:   defaults.Catalog,
		Systems:   defaults.Systems,
		Libraries: f.Libraries,
	}

	if f.Catalog != nil && f.Catalog.Source != "" {
		m.Catalog = domain.CatalogPin{Source: f.Catalog.Source, Revision: f.Catalog.Revision}
	} else if f.Catalog != nil && f.Catalog.Revision != "" {
		m.Catalog.Revision = f.Catalog.Revision
	}

	if f.Systems != nil {
		if f.Systems.Source != "" {
			m.Systems.Source = f.Systems.Source
			m.Systems.Revision = f.Systems.Revision
		}
		for _, p := range f.Systems.Platforms {
			platform, err := domain.ParsePlatform(p)
			if err != nil {
				return nil, err
			}
			m.Systems.Platforms = append(m.Systems.Platforms, platform)
		}
	}

	m.Packages = make([]domain.PackageDecl, 0, len(f.Packages))
	for _, p := range f.Packages {
		m.Packages = append(m.Packages, domain.PackageDecl{
			Role: domain.Role(strings.TrimSpace(p.Role)),
			Name: strings.TrimSpace(p.Name),
		})
	}

	m.Env = make([]domain.EnvBinding, 0, len(f.Env))
	for _, b := range f.Env {
		m.Env = append(m.Env, domain.EnvBinding{
			Key:     b.Key,
			Package: b.Package,
			Output:  b.Output,
			Subpath: b.Subpath,
		})
	}

	return m, nil
}
