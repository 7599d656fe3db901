package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// File stores each document as DATA_DIR/<kind>/<key>.json.
type File struct {
	root string
}

// NewFile returns a file backend rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &File{root: dir}, nil
}

func (f *File) path(kind, key string) string {
	return filepath.Join(f.root, kind, url.PathEscape(key)+".json")
}

func (f *File) Read(_ context.Context, kind, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(kind, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Write writes to a temp file in the same directory and renames it over the target,
// so readers see either the old or the new document.
func (f *File) Write(_ context.Context, kind, key string, data []byte) error {
	target := f.path(kind, key)
	dir := filepath.Dir(target)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), target)
}

func (f *File) Remove(_ context.Context, kind, key string) error {
	err := os.Remove(f.path(kind, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f *File) Close() error { return nil }
