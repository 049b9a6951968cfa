// Package resolver turns enumerated entries into resolved entries by
// looking up each artifact reference in shared storage. Resolution failures
// are isolated per entry: a storage hiccup on one artifact must never abort
// the rest of the batch.
package resolver

import (
	"context"
	"log/slog"

	"shelfsync/internal/catalog"
	"shelfsync/internal/logfields"
	"shelfsync/internal/storage"
)

// Resolver resolves artifact references against a storage backend.
type Resolver struct {
	store storage.Storage
}

// New creates a resolver. store may be nil, in which case every entry
// resolves link-less (the pipeline still renders, just without links).
func New(store storage.Storage) *Resolver {
	return &Resolver{store: store}
}

// Resolve resolves a single entry. An entry with no artifact references
// yields a ResolvedEntry with no links; that is the normal case for
// entries without files, never an error.
func (r *Resolver) Resolve(ctx context.Context, entry catalog.Entry) catalog.ResolvedEntry {
	resolved := catalog.ResolvedEntry{Entry: entry}
	if len(entry.Artifacts) == 0 {
		return resolved
	}

	resolved.Links = make([]catalog.ArtifactLink, 0, len(entry.Artifacts))
	for _, ref := range entry.Artifacts {
		link := catalog.ArtifactLink{Ref: ref}
		if r.store != nil {
			url, err := r.store.FindShareLink(ctx, ref)
			if err != nil {
				// Lookup failure degrades to a link-less artifact; the
				// listing still renders the filename as plain text.
				slog.Warn("Artifact lookup failed",
					logfields.EntryID(entry.ID),
					logfields.Artifact(ref.Filename),
					logfields.Error(err))
			} else {
				link.URL = url
			}
		}
		resolved.Links = append(resolved.Links, link)
	}
	return resolved
}

// ResolveAll resolves entries independently, preserving input order.
func (r *Resolver) ResolveAll(ctx context.Context, entries []catalog.Entry) []catalog.ResolvedEntry {
	resolved := make([]catalog.ResolvedEntry, len(entries))
	for i, e := range entries {
		resolved[i] = r.Resolve(ctx, e)
	}
	return resolved
}
