package gdrive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"shelfsync/internal/catalog"
)

// newFakeDrive serves a Files.List endpoint backed by a name -> link map.
// Queries for sharedWithMe files answer from the shared map instead.
func newFakeDrive(t *testing.T, owned, shared map[string]string) *drive.Service {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		source := owned
		if strings.Contains(q, "sharedWithMe = true") {
			source = shared
		}

		var files []*drive.File
		for name, link := range source {
			if strings.Contains(q, "name = '"+strings.ReplaceAll(name, "'", `\'`)+"'") {
				files = append(files, &drive.File{Id: "id-" + name, Name: name, WebViewLink: link})
			}
		}
		require.NoError(t, json.NewEncoder(w).Encode(&drive.FileList{Files: files}))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	return svc
}

func TestFindShareLink(t *testing.T) {
	svc := newFakeDrive(t, map[string]string{
		"Dune - Frank Herbert.epub": "https://drive.google.com/file/d/abc/view",
	}, nil)
	store := NewWithService(svc, "")

	link, err := store.FindShareLink(context.Background(), catalog.ArtifactRef{Filename: "Dune - Frank Herbert.epub"})
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/abc/view", link)
}

func TestFindShareLinkMissing(t *testing.T) {
	svc := newFakeDrive(t, nil, nil)
	store := NewWithService(svc, "")

	link, err := store.FindShareLink(context.Background(), catalog.ArtifactRef{Filename: "nope.pdf"})
	require.NoError(t, err)
	assert.Empty(t, link, "absence is not an error")
}

func TestFindShareLinkSharedWithMeFallback(t *testing.T) {
	svc := newFakeDrive(t, nil, map[string]string{
		"paper.pdf": "https://drive.google.com/file/d/shared/view",
	})
	store := NewWithService(svc, "")

	link, err := store.FindShareLink(context.Background(), catalog.ArtifactRef{Filename: "paper.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/shared/view", link)
}

func TestFindShareLinkEscapesQuotes(t *testing.T) {
	svc := newFakeDrive(t, map[string]string{
		"it's complicated.pdf": "https://drive.google.com/file/d/q/view",
	}, nil)
	store := NewWithService(svc, "")

	link, err := store.FindShareLink(context.Background(), catalog.ArtifactRef{Filename: "it's complicated.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/q/view", link)
}
