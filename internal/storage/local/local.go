// Package local is a storage.Store backed by a directory on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sakif/learning-shelf/internal/storage"
)

var _ storage.Store = (*Dir)(nil)

// Dir stores each file directly under root.
type Dir struct {
	root string
}

// New creates root (and parents) if needed and returns a Dir over it.
func New(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local: creating upload dir %q: %w", root, err)
	}
	return &Dir{root: root}, nil
}

// Root is the directory files are written to.
func (d *Dir) Root() string {
	return d.root
}

// Put writes r to a temporary file and renames it into place, so a failed
// upload never leaves a half-written file under its final name.
func (d *Dir) Put(_ context.Context, name string, r io.Reader) error {
	if !storage.ValidName(name) {
		return storage.ErrInvalidName
	}

	tmp, err := os.CreateTemp(d.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("local: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("local: writing %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("local: closing %q: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(d.root, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("local: storing %q: %w", name, err)
	}
	return nil
}

// Open opens a stored file for reading.
func (d *Dir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !storage.ValidName(name) {
		return nil, storage.ErrInvalidName
	}
	f, err := os.Open(filepath.Join(d.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotExist
		}
		return nil, fmt.Errorf("local: opening %q: %w", name, err)
	}
	return f, nil
}

// Delete removes a stored file.
func (d *Dir) Delete(_ context.Context, name string) error {
	if !storage.ValidName(name) {
		return storage.ErrInvalidName
	}
	if err := os.Remove(filepath.Join(d.root, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotExist
		}
		return fmt.Errorf("local: deleting %q: %w", name, err)
	}
	return nil
}
