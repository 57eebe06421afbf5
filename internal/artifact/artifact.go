// Package artifact writes the plain-text files that downstream stages poll.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrWrite marks a failed artifact write.
var ErrWrite = errors.New("artifact write failed")

// Write replaces path with content atomically.
//
// Content is written to a temp file in the same directory, synced, and renamed over
// path, so readers observe either the previous or the new content, never a prefix.
func Write(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: create dir %q: %w", ErrWrite, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp for %q: %w", ErrWrite, path, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("%w: write %q: %w", ErrWrite, tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync %q: %w", ErrWrite, tmpPath, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("%w: chmod %q: %w", ErrWrite, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %q: %w", ErrWrite, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: rename into %q: %w", ErrWrite, path, err)
	}
	committed = true
	return nil
}
