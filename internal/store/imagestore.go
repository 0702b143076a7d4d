package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileImageStore writes uploaded images under a local directory and
// returns URLs rooted at baseURL. It backs local mode; remote
// deployments plug in their own ImageStore.
type FileImageStore struct {
	dir     string
	baseURL string
}

// NewFileImageStore creates the upload directory if needed.
func NewFileImageStore(dir, baseURL string) (*FileImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image dir: %w", err)
	}
	return &FileImageStore{dir: dir, baseURL: baseURL}, nil
}

// Upload stores the image under {owner}/{timestamp}.jpg.
func (s *FileImageStore) Upload(ctx context.Context, data []byte, ownerID string) (string, error) {
	name := filepath.Join(ownerID, fmt.Sprintf("%d.jpg", time.Now().UnixMilli()))
	path := filepath.Join(s.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create owner dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return s.baseURL + "/" + filepath.ToSlash(name), nil
}
