// Package calibre enumerates collections from a Calibre library database
// (metadata.db). Collections are addressed by tag; matching is
// case-insensitive substring in either direction, mirroring how Calibre
// users tag loosely ("math" matches "mathematics" and vice versa).
package calibre

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"shelfsync/internal/catalog"
	"shelfsync/internal/config"
	"shelfsync/internal/liberr"
)

// Backend reads a Calibre metadata.db. The database is opened per
// enumeration; collection membership is never cached across runs.
type Backend struct {
	libraryPath string
}

// New creates a Calibre backend for the configured library directory.
func New(cfg *config.CalibreConfig) *Backend {
	return &Backend{libraryPath: expandHome(cfg.LibraryPath)}
}

// Name implements catalog.Backend.
func (b *Backend) Name() string { return "calibre" }

// Enumerate implements catalog.Backend. Entries come back ordered by
// added-time descending, the library's natural "most recent first" order.
func (b *Backend) Enumerate(ctx context.Context, sel catalog.Selector) ([]catalog.Entry, error) {
	if sel.Kind != catalog.SelectByTag {
		return nil, liberr.New(liberr.CategoryConfig, liberr.SeverityError,
			fmt.Sprintf("calibre collections are selected by tag, got %s", sel))
	}

	dbPath := filepath.Join(b.libraryPath, "metadata.db")
	if _, err := os.Stat(dbPath); err != nil {
		return nil, liberr.BackendUnavailable("calibre", fmt.Errorf("metadata.db not found at %s: %w", dbPath, err))
	}

	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return nil, liberr.BackendUnavailable("calibre", err)
	}
	defer db.Close()

	tagIDs, err := matchTags(ctx, db, sel.Tag)
	if err != nil {
		return nil, liberr.BackendUnavailable("calibre", err)
	}
	if len(tagIDs) == 0 {
		return nil, liberr.CollectionNotFound("calibre", sel.String())
	}

	return listBooks(ctx, db, tagIDs)
}

// matchTags returns the IDs of all tags matching the query, where either
// string may contain the other, case-insensitively.
func matchTags(ctx context.Context, db *sql.DB, query string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, name FROM tags")
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	q := strings.ToLower(strings.TrimSpace(query))
	var ids []int64
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		n := strings.ToLower(name)
		if strings.Contains(n, q) || strings.Contains(q, n) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func listBooks(ctx context.Context, db *sql.DB, tagIDs []int64) ([]catalog.Entry, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tagIDs)), ",")
	query := fmt.Sprintf(`
		SELECT DISTINCT
			books.id, books.title, books.pubdate, books.isbn,
			books.series_index,
			COALESCE(s.name, ''),
			COALESCE(p.name, ''),
			books.timestamp
		FROM books
		JOIN books_tags_link btl ON books.id = btl.book AND btl.tag IN (%s)
		LEFT JOIN books_series_link bsl ON books.id = bsl.book
		LEFT JOIN series s ON bsl.series = s.id
		LEFT JOIN books_publishers_link bpl ON books.id = bpl.book
		LEFT JOIN publishers p ON bpl.publisher = p.id
		ORDER BY books.timestamp DESC`, placeholders)

	args := make([]any, len(tagIDs))
	for i, id := range tagIDs {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, liberr.BackendUnavailable("calibre", fmt.Errorf("query books: %w", err))
	}
	defer rows.Close()

	entries := []catalog.Entry{}
	for rows.Next() {
		var (
			id          int64
			title       string
			pubdate     sql.NullString
			isbn        sql.NullString
			seriesIndex sql.NullFloat64
			series      string
			publisher   string
			timestamp   sql.NullString
		)
		if err := rows.Scan(&id, &title, &pubdate, &isbn, &seriesIndex, &series, &publisher, &timestamp); err != nil {
			return nil, liberr.BackendUnavailable("calibre", fmt.Errorf("scan book: %w", err))
		}
		entries = append(entries, catalog.Entry{
			ID:          strconv.FormatInt(id, 10),
			Title:       title,
			Series:      series,
			SeriesIndex: seriesIndex.Float64,
			Publisher:   publisher,
			PubDate:     datePart(pubdate.String),
			ISBN:        isbn.String,
			ItemType:    "book",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, liberr.BackendUnavailable("calibre", err)
	}

	for i := range entries {
		bookID, _ := strconv.ParseInt(entries[i].ID, 10, 64)
		authors, err := bookAuthors(ctx, db, bookID)
		if err != nil {
			return nil, liberr.BackendUnavailable("calibre", err)
		}
		entries[i].Authors = authors

		artifacts, err := bookArtifacts(ctx, db, bookID)
		if err != nil {
			return nil, liberr.BackendUnavailable("calibre", err)
		}
		entries[i].Artifacts = artifacts
	}

	return entries, nil
}

func bookAuthors(ctx context.Context, db *sql.DB, bookID int64) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT a.name FROM authors a
		JOIN books_authors_link l ON a.id = l.author
		WHERE l.book = ?
		ORDER BY l.id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		authors = append(authors, name)
	}
	return authors, rows.Err()
}

// bookArtifacts maps the formats of a book (the data table) to artifact
// references. Calibre stores the filename without extension.
func bookArtifacts(ctx context.Context, db *sql.DB, bookID int64) ([]catalog.ArtifactRef, error) {
	rows, err := db.QueryContext(ctx, "SELECT format, name FROM data WHERE book = ?", bookID)
	if err != nil {
		return nil, fmt.Errorf("query formats: %w", err)
	}
	defer rows.Close()

	var refs []catalog.ArtifactRef
	for rows.Next() {
		var format, name string
		if err := rows.Scan(&format, &name); err != nil {
			return nil, fmt.Errorf("scan format: %w", err)
		}
		ext := strings.ToLower(format)
		filename := name
		if !strings.HasSuffix(strings.ToLower(filename), "."+ext) {
			filename = filename + "." + ext
		}
		refs = append(refs, catalog.ArtifactRef{Filename: filename, Format: ext})
	}
	return refs, rows.Err()
}

// datePart truncates Calibre's timestamp strings to the date.
func datePart(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
