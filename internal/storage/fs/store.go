// Package fs implements objectstore.ObjectStore against the local
// filesystem, for single-node deployments.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store uploads artifacts by copying them under a base directory.
type Store struct {
	baseDir string
}

// NewStore creates a filesystem-backed object store rooted at baseDir.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Upload copies localPath's contents to baseDir/storageKey, creating any
// intermediate directories storageKey implies.
func (s *Store) Upload(ctx context.Context, localPath, storageKey string) error {
	dest := filepath.Join(s.baseDir, filepath.FromSlash(storageKey))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copy artifact: %w", err)
	}
	return ctx.Err()
}

// Path returns the absolute path an uploaded storageKey resolves to, for
// serving artifacts back over the admin HTTP surface.
func (s *Store) Path(storageKey string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(storageKey))
}
