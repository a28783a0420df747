package storage

import (
	"bulkq/internal/ports"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var _ ports.ObjectStorage = (*File)(nil)

// File stores objects under a base directory on the local filesystem.
type File struct {
	basePath string
}

func NewFile(basePath string) *File {
	return &File{basePath: basePath}
}

// Save writes src to <base>/<subdir>/<filename> and returns the file path.
func (s *File) Save(_ context.Context, subdir, filename string, src io.Reader) (string, error) {
	dir := filepath.Join(s.basePath, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	dstPath := filepath.Join(dir, filepath.Base(filename))
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}
	return dstPath, nil
}
