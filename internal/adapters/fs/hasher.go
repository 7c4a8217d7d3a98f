package fs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// missingMarker stands in for the content of a path that does not exist.
var missingMarker = []byte{0xff, 0}

// Hasher fingerprints the files a manifest is read from.
type Hasher struct {
	walker *Walker
}

// NewHasher creates a new Hasher.
func NewHasher(walker *Walker) *Hasher {
	return &Hasher{walker: walker}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

// Fingerprint returns a single hash over the given paths and their contents.
// Order does not matter. A missing path hashes differently from an empty file,
// so deleting a manifest changes the fingerprint.
func (h *Hasher) Fingerprint(paths []string) (string, error) {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)

	digest := xxhash.New()
	for _, path := range sorted {
		if err := h.hashPath(path, digest); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

func (h *Hasher) hashPath(path string, digest io.Writer) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			_, _ = digest.Write([]byte(path))
			_, _ = digest.Write(missingMarker)
			return nil
		}
		return zerr.With(zerr.Wrap(err, "failed to stat path"), "path", path)
	}

	if !info.IsDir() {
		return h.hashFile(path, digest)
	}

	for filePath := range h.walker.WalkFiles(path, nil) {
		if err := h.hashFile(filePath, digest); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hasher) hashFile(path string, digest io.Writer) error {
	_, _ = digest.Write([]byte(path))
	_, _ = digest.Write([]byte{0})

	hash, err := h.ComputeFileHash(path)
	if err != nil {
		return err
	}

	if err := binary.Write(digest, binary.LittleEndian, hash); err != nil {
		return zerr.Wrap(err, "failed to write hash to digest")
	}
	return nil
}
