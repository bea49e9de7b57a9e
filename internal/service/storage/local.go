package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LocalStore writes evidence media to a directory. It keeps the local copy of
// confirmed frames and, when no bucket is configured, stands in for S3.
type LocalStore struct {
	dir     string
	baseURL string
	mu      sync.Mutex
}

// NewLocalStore creates a LocalStore rooted at dir; URLs are baseURL + key.
func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// SaveFrame writes a confirmed frame as violence_detected_<timestamp>.jpg and returns its path.
func (s *LocalStore) SaveFrame(data []byte, t time.Time) (string, error) {
	name := fmt.Sprintf("violence_detected_%s_%03d.jpg", t.Format("20060102_150405"), t.Nanosecond()/int(time.Millisecond))
	return s.save(name, data)
}

// Put implements ObjectStore on the local filesystem.
func (s *LocalStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.save(key, data); err != nil {
		return "", err
	}
	return s.baseURL + "/" + strings.TrimPrefix(filepath.ToSlash(key), "/"), nil
}

func (s *LocalStore) save(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object name %q", name)
	}

	fullpath := filepath.Join(s.dir, clean)
	if err := os.MkdirAll(filepath.Dir(fullpath), 0755); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}
	if err := os.WriteFile(fullpath, data, 0644); err != nil {
		return "", fmt.Errorf("error saving %s: %w", name, err)
	}
	return fullpath, nil
}
