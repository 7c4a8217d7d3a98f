// Package lockfile reads and writes devshell.lock as YAML.
package lockfile

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.LockfileStore = (*Store)(nil)

const header = "# Generated by devshell lock. Do not edit.\n"

// Store implements ports.LockfileStore.
type Store struct{}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

// Read parses the lockfile at path. A missing file wraps fs.ErrNotExist.
func (s *Store) Read(path string) (*domain.Lockfile, error) {
	//nolint:gosec // path is the project lockfile
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrLockfileReadFailed.Error()), "path", path)
	}

	var lock domain.Lockfile
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrLockfileReadFailed.Error()), "path", path)
	}

	if lock.Version != domain.LockfileVersion {
		err := zerr.With(zerr.Wrap(domain.ErrLockfileReadFailed, "unsupported lockfile version"), "version", lock.Version)
		return nil, zerr.With(err, "path", path)
	}
	if lock.Packages == nil {
		lock.Packages = make(map[string]map[domain.Platform]domain.LockedPackage)
	}

	return &lock, nil
}

// Write encodes the lockfile and replaces path atomically.
func (s *Store) Write(path string, lock *domain.Lockfile) error {
	var buf bytes.Buffer
	buf.WriteString(header)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(lock); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error()), "path", path)
	}
	if err := enc.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error()), "path", path)
	}

	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrLockfileWriteFailed.Error()), "path", path)
	}
	return nil
}

// Exists reports whether a lockfile is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".devshell-lock-*")
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
