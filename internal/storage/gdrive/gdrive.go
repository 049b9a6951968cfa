// Package gdrive implements artifact storage lookups against Google Drive.
// Files are located by exact filename; the shareable link is Drive's own
// webViewLink, so sharing semantics (expiry, audience) stay with Drive.
package gdrive

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"shelfsync/internal/catalog"
	"shelfsync/internal/config"
)

// Store looks up artifacts in a Google Drive corpus accessible to a
// service account.
type Store struct {
	svc    *drive.Service
	folder string

	mu       sync.Mutex
	folderID string // resolved lazily, cached for the process lifetime
}

// New authenticates with the configured service account. Credentials is
// either a path to a key file or the key JSON itself.
func New(ctx context.Context, cfg *config.GDriveConfig) (*Store, error) {
	var opts []option.ClientOption
	creds := strings.TrimSpace(cfg.Credentials)
	if strings.HasPrefix(creds, "{") && strings.HasSuffix(creds, "}") {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	opts = append(opts, option.WithScopes(drive.DriveReadonlyScope))

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Store{svc: svc, folder: cfg.Folder}, nil
}

// NewWithService wires an existing Drive service; used by tests.
func NewWithService(svc *drive.Service, folder string) *Store {
	return &Store{svc: svc, folder: folder}
}

// FindShareLink implements storage.Storage. Searches the service account's
// corpus first, then files shared with it; returns "" when nothing matches.
func (s *Store) FindShareLink(ctx context.Context, ref catalog.ArtifactRef) (string, error) {
	query := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(ref.Filename))

	if s.folder != "" {
		folderID, err := s.resolveFolder(ctx)
		if err != nil {
			return "", err
		}
		if folderID != "" {
			query = fmt.Sprintf("%s and '%s' in parents", query, folderID)
		}
	}

	link, err := s.firstLink(ctx, query)
	if err != nil {
		return "", err
	}
	if link == "" && s.folder == "" {
		// Fall back to files explicitly shared with the account.
		link, err = s.firstLink(ctx, query+" and sharedWithMe = true")
		if err != nil {
			return "", err
		}
	}
	return link, nil
}

func (s *Store) firstLink(ctx context.Context, query string) (string, error) {
	resp, err := s.svc.Files.List().
		Context(ctx).
		Q(query).
		Spaces("drive").
		Fields("files(id, name, webViewLink)").
		PageSize(1).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive file search: %w", err)
	}
	if len(resp.Files) == 0 {
		return "", nil
	}
	return resp.Files[0].WebViewLink, nil
}

func (s *Store) resolveFolder(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.folderID != "" {
		return s.folderID, nil
	}
	query := fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.folder' and trashed = false",
		escapeQuery(s.folder))
	resp, err := s.svc.Files.List().
		Context(ctx).
		Q(query).
		Spaces("drive").
		Fields("files(id, name)").
		PageSize(1).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive folder search: %w", err)
	}
	if len(resp.Files) > 0 {
		s.folderID = resp.Files[0].Id
	}
	return s.folderID, nil
}

func escapeQuery(name string) string {
	return strings.ReplaceAll(name, "'", `\'`)
}
