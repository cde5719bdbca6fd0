package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Filesystem stores objects below a local root directory. It backs
// development setups and tests.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory when missing.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, errors.New("platform/storage: filesystem root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("platform/storage: create root: %w", err)
	}
	return &Filesystem{root: root}, nil
}

// Put writes payload atomically under key.
func (s *Filesystem) Put(ctx context.Context, key string, payload []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("platform/storage: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("platform/storage: create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("platform/storage: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("platform/storage: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("platform/storage: rename %s: %w", key, err)
	}
	return "file://" + filepath.ToSlash(target), nil
}

// Open streams the stored file.
func (s *Filesystem) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("platform/storage: open %s: %w", key, err)
	}
	return f, nil
}

// Close is a no-op for the filesystem backend.
func (s *Filesystem) Close() error {
	return nil
}

func (s *Filesystem) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}
