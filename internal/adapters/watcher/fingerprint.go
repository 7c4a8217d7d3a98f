package watcher

import (
	"path/filepath"
	"sync"

	"go.trai.ch/devshell/internal/adapters/fs"
	"go.trai.ch/devshell/internal/core/domain"
)

// ChangeDetector filters out events that leave the manifest content unchanged,
// such as an editor touching the file without modifying it.
type ChangeDetector struct {
	hasher *fs.Hasher
	paths  []string

	mu   sync.Mutex
	last string
}

// NewChangeDetector fingerprints the manifest files of dir.
func NewChangeDetector(hasher *fs.Hasher, dir string) *ChangeDetector {
	names := domain.ManifestFileNames()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(dir, name))
	}
	return &ChangeDetector{hasher: hasher, paths: paths}
}

// Prime records the current fingerprint without reporting a change.
func (c *ChangeDetector) Prime() error {
	_, err := c.Changed()
	return err
}

// Changed reports whether the manifest files differ from the last call.
func (c *ChangeDetector) Changed() (bool, error) {
	fp, err := c.hasher.Fingerprint(c.paths)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if fp == c.last {
		return false, nil
	}
	c.last = fp
	return true, nil
}
