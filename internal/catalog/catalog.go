// Package catalog defines the data model shared by the collection backends
// and the sync/notify pipelines: entries, collection selectors, and the
// narrow read interface every backend implements.
package catalog

import (
	"context"
	"fmt"
)

// SelectorKind discriminates how a backend indexes its collections.
type SelectorKind string

const (
	// SelectByID addresses a collection by an opaque identifier (Zotero
	// collection keys).
	SelectByID SelectorKind = "id"
	// SelectByTag addresses a collection by a tag/label string (Calibre
	// tags).
	SelectByTag SelectorKind = "tag"
)

// Selector names one collection on a backend. Exactly one of ID or Tag is
// set, according to Kind.
type Selector struct {
	Kind SelectorKind
	ID   string
	Tag  string
}

// ByID builds a selector addressing a collection by opaque identifier.
func ByID(id string) Selector { return Selector{Kind: SelectByID, ID: id} }

// ByTag builds a selector addressing a collection by tag string.
func ByTag(tag string) Selector { return Selector{Kind: SelectByTag, Tag: tag} }

// String returns the selector value for logs and error messages.
func (s Selector) String() string {
	switch s.Kind {
	case SelectByID:
		return fmt.Sprintf("id:%s", s.ID)
	case SelectByTag:
		return fmt.Sprintf("tag:%s", s.Tag)
	default:
		return "invalid"
	}
}

// ArtifactRef points at an entry's underlying file in shared storage,
// identified by filename. Format is the lowercased file format (pdf, epub).
type ArtifactRef struct {
	Filename string
	Format   string
}

// Entry is one catalog item. Created by a backend's Enumerate and read-only
// for the rest of the pipeline's lifetime. Any metadata field except ID and
// Title may be empty.
type Entry struct {
	ID          string
	Title       string
	Authors     []string
	Series      string
	SeriesIndex float64
	Publisher   string
	PubDate     string
	ISBN        string
	DOI         string
	ItemType    string
	Artifacts   []ArtifactRef
}

// Key returns the entry's identity within a backend and collection, used by
// the sent log.
func (e Entry) Key(backend, collection string) string {
	return backend + "/" + collection + "/" + e.ID
}

// ArtifactLink is one artifact reference plus the shareable URL the storage
// backend produced for it. URL is empty when the artifact was not found in
// storage; that is a valid, renderable state.
type ArtifactLink struct {
	Ref ArtifactRef
	URL string
}

// ResolvedEntry is an Entry plus the outcome of artifact resolution.
type ResolvedEntry struct {
	Entry
	Links []ArtifactLink
}

// HasLink reports whether at least one artifact resolved to a URL.
func (r ResolvedEntry) HasLink() bool {
	for _, l := range r.Links {
		if l.URL != "" {
			return true
		}
	}
	return false
}

// Backend enumerates entries of a named collection. Implementations must
// return an empty slice (not an error) for an existing but empty collection,
// liberr.CollectionNotFound when the selector matches nothing, and
// liberr.BackendUnavailable when the backend cannot be reached.
type Backend interface {
	// Name identifies the backend in configuration, logs, and sent-log keys.
	Name() string
	// Enumerate returns the collection's entries in the backend's natural
	// order. The order is stable and preserved through the pipeline.
	Enumerate(ctx context.Context, sel Selector) ([]Entry, error)
}
