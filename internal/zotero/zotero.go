// Package zotero enumerates collections from a Zotero web library.
// Collections are addressed by their opaque collection key. Notes and
// attachments are excluded from enumeration; attachments surface only as
// artifact references on their parent entries.
package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"shelfsync/internal/catalog"
	"shelfsync/internal/config"
	"shelfsync/internal/liberr"
)

const (
	apiVersion = "3"
	pageLimit  = 100
	userAgent  = "shelfsync/1.0"
)

// Backend talks to the Zotero web API.
type Backend struct {
	baseURL     string
	libraryID   string
	libraryType string
	apiKey      string
	client      *http.Client
}

// New creates a Zotero backend from configuration.
func New(cfg *config.ZoteroConfig) *Backend {
	return &Backend{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		libraryID:   cfg.LibraryID,
		libraryType: cfg.LibraryType,
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements catalog.Backend.
func (b *Backend) Name() string { return "zotero" }

// item mirrors the subset of the Zotero item JSON the pipeline consumes.
type item struct {
	Key  string `json:"key"`
	Data struct {
		Title            string `json:"title"`
		ItemType         string `json:"itemType"`
		Date             string `json:"date"`
		Publisher        string `json:"publisher"`
		PublicationTitle string `json:"publicationTitle"`
		ISBN             string `json:"ISBN"`
		DOI              string `json:"DOI"`
		Extra            string `json:"extra"`
		Filename         string `json:"filename"`
		Creators         []struct {
			Name      string `json:"name"`
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		} `json:"creators"`
	} `json:"data"`
}

// Enumerate implements catalog.Backend. Order is the API's return order.
func (b *Backend) Enumerate(ctx context.Context, sel catalog.Selector) ([]catalog.Entry, error) {
	if sel.Kind != catalog.SelectByID {
		return nil, liberr.New(liberr.CategoryConfig, liberr.SeverityError,
			fmt.Sprintf("zotero collections are selected by id, got %s", sel))
	}

	// Existence check first: callers must be able to tell an empty
	// collection from a missing one.
	if err := b.checkCollection(ctx, sel.ID); err != nil {
		return nil, err
	}

	items, err := b.collectionItems(ctx, sel.ID)
	if err != nil {
		return nil, err
	}

	entries := []catalog.Entry{}
	for _, it := range items {
		if it.Data.ItemType == "note" || it.Data.ItemType == "attachment" {
			continue
		}
		entry := catalog.Entry{
			ID:       it.Key,
			Title:    it.Data.Title,
			PubDate:  it.Data.Date,
			ISBN:     it.Data.ISBN,
			DOI:      extractDOI(it),
			ItemType: it.Data.ItemType,
		}
		if it.Data.Publisher != "" {
			entry.Publisher = it.Data.Publisher
		} else {
			entry.Publisher = it.Data.PublicationTitle
		}
		for _, c := range it.Data.Creators {
			entry.Authors = append(entry.Authors, creatorName(c.Name, c.FirstName, c.LastName))
		}
		refs, err := b.attachmentRefs(ctx, it.Key)
		if err != nil {
			return nil, err
		}
		entry.Artifacts = refs
		entries = append(entries, entry)
	}
	return entries, nil
}

func (b *Backend) checkCollection(ctx context.Context, key string) error {
	status, _, err := b.get(ctx, fmt.Sprintf("/collections/%s", key))
	if err != nil {
		return liberr.BackendUnavailable("zotero", err)
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return liberr.CollectionNotFound("zotero", "id:"+key)
	default:
		return liberr.BackendUnavailable("zotero", fmt.Errorf("collection lookup returned %d", status))
	}
}

func (b *Backend) collectionItems(ctx context.Context, key string) ([]item, error) {
	var all []item
	for start := 0; ; start += pageLimit {
		path := fmt.Sprintf("/collections/%s/items/top?format=json&limit=%d&start=%d", key, pageLimit, start)
		status, body, err := b.get(ctx, path)
		if err != nil {
			return nil, liberr.BackendUnavailable("zotero", err)
		}
		if status != http.StatusOK {
			return nil, liberr.BackendUnavailable("zotero", fmt.Errorf("item listing returned %d", status))
		}
		var page []item
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, liberr.BackendUnavailable("zotero", fmt.Errorf("decode items: %w", err))
		}
		all = append(all, page...)
		if len(page) < pageLimit {
			return all, nil
		}
	}
}

// attachmentRefs lists the file attachments of an item as artifact references.
func (b *Backend) attachmentRefs(ctx context.Context, itemKey string) ([]catalog.ArtifactRef, error) {
	status, body, err := b.get(ctx, fmt.Sprintf("/items/%s/children?format=json", itemKey))
	if err != nil {
		return nil, liberr.BackendUnavailable("zotero", err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, liberr.BackendUnavailable("zotero", fmt.Errorf("children listing returned %d", status))
	}
	var children []item
	if err := json.Unmarshal(body, &children); err != nil {
		return nil, liberr.BackendUnavailable("zotero", fmt.Errorf("decode children: %w", err))
	}
	var refs []catalog.ArtifactRef
	for _, c := range children {
		if c.Data.ItemType != "attachment" || c.Data.Filename == "" {
			continue
		}
		refs = append(refs, catalog.ArtifactRef{
			Filename: c.Data.Filename,
			Format:   formatFromFilename(c.Data.Filename),
		})
	}
	return refs, nil
}

func (b *Backend) get(ctx context.Context, path string) (int, []byte, error) {
	url := fmt.Sprintf("%s/%ss/%s%s", b.baseURL, b.libraryType, b.libraryID, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Zotero-API-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
	if b.apiKey != "" {
		req.Header.Set("Zotero-API-Key", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

var doiPattern = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/[-._;()/:a-z0-9]+)\b`)

// extractDOI prefers the DOI field, falling back to a scan of the free-text
// extra field where imports often stash it.
func extractDOI(it item) string {
	if it.Data.DOI != "" {
		return it.Data.DOI
	}
	if m := doiPattern.FindString(it.Data.Extra); m != "" {
		return m
	}
	return ""
}

func creatorName(full, first, last string) string {
	if full != "" {
		return full
	}
	if first == "" {
		return last
	}
	if last == "" {
		return first
	}
	return first + " " + last
}

func formatFromFilename(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
		return strings.ToLower(name[i+1:])
	}
	return ""
}
