// Package storage defines the narrow interface to the shared artifact
// storage backend: look up a file by its reference and hand back a
// shareable link, per the storage backend's own sharing semantics.
package storage

import (
	"context"

	"shelfsync/internal/catalog"
)

// Storage resolves artifact references to shareable links.
type Storage interface {
	// FindShareLink returns the shareable URL for the referenced artifact,
	// or "" when no matching file exists. Absence is not an error; only
	// backend failures are.
	FindShareLink(ctx context.Context, ref catalog.ArtifactRef) (string, error)
}
