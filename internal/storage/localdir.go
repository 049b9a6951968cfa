package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"shelfsync/internal/catalog"
)

// LocalDirStore resolves artifact references against a local directory,
// typically a mounted network share that mirrors the cloud folder. Links
// are built from a base URL so listings point at the share's web frontend
// rather than at local paths.
type LocalDirStore struct {
	dir     string
	baseURL string
}

// NewLocalDirStore creates a store over the given directory. baseURL is
// prefixed to the escaped filename when building links; with an empty
// baseURL a file URL is returned.
func NewLocalDirStore(dir, baseURL string) (*LocalDirStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("storage directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage path %s is not a directory", dir)
	}
	return &LocalDirStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// FindShareLink looks for a file with the exact artifact filename directly
// under the store directory. Missing files yield "" with no error.
func (s *LocalDirStore) FindShareLink(_ context.Context, ref catalog.ArtifactRef) (string, error) {
	path := filepath.Join(s.dir, ref.Filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat %s: %w", ref.Filename, err)
	}
	if s.baseURL == "" {
		return "file://" + path, nil
	}
	return s.baseURL + "/" + url.PathEscape(ref.Filename), nil
}
