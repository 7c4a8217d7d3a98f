// Package cas implements the content-addressed environment cache.
// Entries are keyed by environment id, so a changed manifest never reads a stale entry.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.EnvironmentCache = (*Store)(nil)

// Store implements ports.EnvironmentCache with one JSON file per environment id.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: filepath.Clean(dir)}
}

// Dir returns the directory holding the cache entries.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(envID string) string {
	return filepath.Join(s.dir, envID+".json")
}

// Get retrieves the environment stored under envID.
func (s *Store) Get(envID string) (*domain.ShellEnvironment, error) {
	if envID == "" {
		return nil, domain.ErrCacheMiss
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	//nolint:gosec // Path is constructed from the cache directory and a hex id
	data, err := os.ReadFile(s.path(envID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrCacheMiss
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "env_id", envID)
	}

	var env domain.ShellEnvironment
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheReadFailed.Error()), "env_id", envID)
	}

	// An entry renamed by hand is not trusted.
	if env.ID != envID {
		return nil, domain.ErrCacheMiss
	}

	return &env, nil
}

// Put stores env under env.ID.
func (s *Store) Put(env *domain.ShellEnvironment) error {
	if env == nil || env.ID == "" {
		return zerr.Wrap(domain.ErrCacheWriteFailed, "environment has no id")
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path(env.ID), data); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCacheWriteFailed.Error()), "env_id", env.ID)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "env-cache-*.json")
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
