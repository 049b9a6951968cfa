package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfsync/internal/catalog"
	"shelfsync/internal/config"
	"shelfsync/internal/gitops"
	"shelfsync/internal/liberr"
	"shelfsync/internal/mailer"
	"shelfsync/internal/resolver"
	"shelfsync/internal/storage"
)

// fakeBackend serves canned entries or errors per selector value.
type fakeBackend struct {
	name    string
	entries map[string][]catalog.Entry
	errs    map[string]error
	calls   int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Enumerate(_ context.Context, sel catalog.Selector) ([]catalog.Entry, error) {
	f.calls++
	key := sel.Tag
	if sel.Kind == catalog.SelectByID {
		key = sel.ID
	}
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if entries, ok := f.entries[key]; ok {
		return entries, nil
	}
	return nil, liberr.CollectionNotFound(f.name, sel.String())
}

// fakeSender records sent messages and optionally fails.
type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Collections: []config.Collection{
			{Name: "science-fiction", Backend: "calibre", Tag: "sci-fi"},
			{Name: "papers", Backend: "zotero", ID: "COLL1"},
		},
		Output: config.OutputConfig{
			Repository: t.TempDir(),
			SentLog:    "sent.log",
			Committer:  config.Committer{Name: "Shelf Sync", Email: "sync@example.com"},
		},
		Retry: config.RetryConfig{Mode: "fixed", Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 1},
		Mail:  config.MailConfig{Recipients: []string{"reader@example.com"}},
	}
}

func bookEntries() []catalog.Entry {
	return []catalog.Entry{
		{ID: "1", Title: "Dune", Artifacts: []catalog.ArtifactRef{{Filename: "Dune.epub", Format: "epub"}}},
		{ID: "2", Title: "Hyperion"},
	}
}

func paperEntries() []catalog.Entry {
	return []catalog.Entry{
		{ID: "P1", Title: "A Paper", ItemType: "journalArticle"},
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, backends map[string]catalog.Backend, sender mailer.Sender) (*Pipeline, *gitops.Client) {
	t.Helper()
	gate := gitops.NewClient(cfg.Output)
	require.NoError(t, gate.EnsureRepository())

	store := storage.NewMapStore()
	store.Add("Dune.epub", "https://share.example.com/dune")

	return New(cfg, backends, resolver.New(store), sender, gate, nil), gate
}

func TestBuildRendersAndCommits(t *testing.T) {
	cfg := testConfig(t)
	backends := map[string]catalog.Backend{
		"calibre": &fakeBackend{name: "calibre", entries: map[string][]catalog.Entry{"sci-fi": bookEntries()}},
		"zotero":  &fakeBackend{name: "zotero", entries: map[string][]catalog.Entry{"COLL1": paperEntries()}},
	}
	p, gate := newTestPipeline(t, cfg, backends, &fakeSender{})

	report, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Collections, 2)
	assert.Equal(t, StatusRendered, report.Collections[0].Status)
	assert.Equal(t, 2, report.Collections[0].Entries)
	assert.Equal(t, StatusRendered, report.Collections[1].Status)
	assert.True(t, report.Commit.Committed)

	content, err := os.ReadFile(filepath.Join(gate.Path(), "science-fiction.html"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Dune")
	assert.Contains(t, string(content), "https://share.example.com/dune")
	assert.FileExists(t, filepath.Join(gate.Path(), "papers.html"))
}

func TestBuildIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	backends := map[string]catalog.Backend{
		"calibre": &fakeBackend{name: "calibre", entries: map[string][]catalog.Entry{"sci-fi": bookEntries()}},
		"zotero":  &fakeBackend{name: "zotero", entries: map[string][]catalog.Entry{"COLL1": paperEntries()}},
	}
	p, _ := newTestPipeline(t, cfg, backends, &fakeSender{})

	first, err := p.Build(context.Background())
	require.NoError(t, err)
	require.True(t, first.Commit.Committed)

	second, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, second.Commit.Committed, "unchanged catalogs must not produce a second commit")
}

func TestBuildPartialFailureKeepsStaleListing(t *testing.T) {
	cfg := testConfig(t)
	calibreFake := &fakeBackend{name: "calibre", entries: map[string][]catalog.Entry{"sci-fi": bookEntries()}}
	zoteroFake := &fakeBackend{name: "zotero", entries: map[string][]catalog.Entry{"COLL1": paperEntries()}}
	backends := map[string]catalog.Backend{"calibre": calibreFake, "zotero": zoteroFake}
	p, gate := newTestPipeline(t, cfg, backends, &fakeSender{})

	_, err := p.Build(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(gate.Path(), "papers.html"))
	require.NoError(t, err)

	// Zotero goes down; its listing must survive untouched.
	zoteroFake.errs = map[string]error{"COLL1": liberr.BackendUnavailable("zotero", errors.New("down"))}

	report, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusRendered, report.Collections[0].Status)
	assert.Equal(t, StatusFailed, report.Collections[1].Status)

	after, err := os.ReadFile(filepath.Join(gate.Path(), "papers.html"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed collection keeps its previous listing")
}

func TestBuildSkipsMissingCollection(t *testing.T) {
	cfg := testConfig(t)
	backends := map[string]catalog.Backend{
		"calibre": &fakeBackend{name: "calibre", entries: map[string][]catalog.Entry{"sci-fi": bookEntries()}},
		"zotero":  &fakeBackend{name: "zotero"}, // knows no collections
	}
	p, gate := newTestPipeline(t, cfg, backends, &fakeSender{})

	report, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusRendered, report.Collections[0].Status)
	assert.Equal(t, StatusSkipped, report.Collections[1].Status)

	// The surviving collection still gets its listing.
	assert.FileExists(t, filepath.Join(gate.Path(), "science-fiction.html"))
	assert.NoFileExists(t, filepath.Join(gate.Path(), "papers.html"))
}

func TestBuildAllFailedAborts(t *testing.T) {
	cfg := testConfig(t)
	backends := map[string]catalog.Backend{
		"calibre": &fakeBackend{name: "calibre"},
		"zotero":  &fakeBackend{name: "zotero"},
	}
	p, gate := newTestPipeline(t, cfg, backends, &fakeSender{})

	_, err := p.Build(context.Background())
	require.Error(t, err)

	// The tree stays untouched: no listing files, no commit.
	assert.NoFileExists(t, filepath.Join(gate.Path(), "science-fiction.html"))
}

func TestBuildRetriesTransientFailures(t *testing.T) {
	cfg := testConfig(t)
	cfg.Collections = cfg.Collections[:1]

	flaky := &flakyBackend{failures: 1, entries: bookEntries()}
	p, _ := newTestPipeline(t, cfg, map[string]catalog.Backend{"calibre": flaky}, &fakeSender{})

	report, err := p.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusRendered, report.Collections[0].Status)
	assert.Equal(t, 2, flaky.calls, "one failure plus one successful retry")
}

// flakyBackend fails the first N calls with a transient error.
type flakyBackend struct {
	failures int
	calls    int
	entries  []catalog.Entry
}

func (f *flakyBackend) Name() string { return "calibre" }

func (f *flakyBackend) Enumerate(context.Context, catalog.Selector) ([]catalog.Entry, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, liberr.BackendUnavailable("calibre", errors.New("transient"))
	}
	return f.entries, nil
}

func TestNotifySendsOnceAndRecords(t *testing.T) {
	cfg := testConfig(t)
	backends := map[string]catalog.Backend{
		"calibre": &fakeBackend{name: "calibre", entries: map[string][]catalog.Entry{"sci-fi": bookEntries()}},
		"zotero":  &fakeBackend{name: "zotero", entries: map[string][]catalog.Entry{"COLL1": paperEntries()}},
	}
	sender := &fakeSender{}
	p, gate := newTestPipeline(t, cfg, backends, sender)

	report, err := p.Notify(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Selected)
	assert.True(t, report.Delivered)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Subject, report.Selected.Title)
	assert.Equal(t, []string{"reader@example.com"}, sender.sent[0].Recipients)
	assert.True(t, report.Commit.Committed, "the sent log update is committed")

	data, err := os.ReadFile(filepath.Join(gate.Path(), "sent.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "/"+report.Selected.ID+"\n")
}

func TestNotifySkipsAlreadySent(t *testing.T) {
	cfg := testConfig(t)
	backends := map[string]catalog.Backend{
		"calibre": &fakeBackend{name: "calibre", entries: map[string][]catalog.Entry{"sci-fi": bookEntries()}},
		"zotero":  &fakeBackend{name: "zotero", entries: map[string][]catalog.Entry{"COLL1": paperEntries()}},
	}
	sender := &fakeSender{}
	p, _ := newTestPipeline(t, cfg, backends, sender)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		report, err := p.Notify(context.Background())
		require.NoError(t, err)
		require.NotNil(t, report.Selected)
		assert.False(t, seen[report.Selected.ID], "an entry must never be sent twice")
		seen[report.Selected.ID] = true
	}

	// All three entries are exhausted now.
	_, err := p.Notify(context.Background())
	require.Error(t, err)
	assert.True(t, liberr.IsCategory(err, liberr.CategorySelection))
}

func TestNotifyDeliveryFailureLeavesEntryEligible(t *testing.T) {
	cfg := testConfig(t)
	cfg.Collections = cfg.Collections[:1]
	backends := map[string]catalog.Backend{
		"calibre": &fakeBackend{name: "calibre", entries: map[string][]catalog.Entry{"sci-fi": bookEntries()[:1]}},
	}
	sender := &fakeSender{err: liberr.DeliveryFailed("reader@example.com", errors.New("smtp 421"))}
	p, gate := newTestPipeline(t, cfg, backends, sender)

	report, err := p.Notify(context.Background())
	require.NoError(t, err, "a delivery failure is not a run failure")
	assert.False(t, report.Delivered)
	assert.NoFileExists(t, filepath.Join(gate.Path(), "sent.log"), "failed delivery must not be recorded")

	// After the transport recovers the same entry is picked again.
	sender.err = nil
	report, err = p.Notify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Delivered)
	assert.Equal(t, "1", report.Selected.ID)
}

func TestNotifyEmptyPool(t *testing.T) {
	cfg := testConfig(t)
	backends := map[string]catalog.Backend{
		"calibre": &fakeBackend{name: "calibre", entries: map[string][]catalog.Entry{"sci-fi": {}}},
		"zotero":  &fakeBackend{name: "zotero", entries: map[string][]catalog.Entry{"COLL1": {}}},
	}
	p, _ := newTestPipeline(t, cfg, backends, &fakeSender{})

	_, err := p.Notify(context.Background())
	require.Error(t, err)
	assert.True(t, liberr.IsCategory(err, liberr.CategorySelection))
}

func TestNotifyToleratesPartialBackendFailure(t *testing.T) {
	cfg := testConfig(t)
	backends := map[string]catalog.Backend{
		"calibre": &fakeBackend{name: "calibre", errs: map[string]error{"sci-fi": liberr.BackendUnavailable("calibre", errors.New("down"))}},
		"zotero":  &fakeBackend{name: "zotero", entries: map[string][]catalog.Entry{"COLL1": paperEntries()}},
	}
	sender := &fakeSender{}
	p, _ := newTestPipeline(t, cfg, backends, sender)

	report, err := p.Notify(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Selected)
	assert.Equal(t, "P1", report.Selected.ID, "selection falls back to the reachable backend")
	assert.True(t, strings.HasPrefix(report.Collections[0].Err.Error(), "backend"))
}

func TestNotifyAllBackendsDownAborts(t *testing.T) {
	cfg := testConfig(t)
	backends := map[string]catalog.Backend{
		"calibre": &fakeBackend{name: "calibre", errs: map[string]error{"sci-fi": liberr.BackendUnavailable("calibre", errors.New("down"))}},
		"zotero":  &fakeBackend{name: "zotero", errs: map[string]error{"COLL1": liberr.BackendUnavailable("zotero", errors.New("down"))}},
	}
	p, _ := newTestPipeline(t, cfg, backends, &fakeSender{})

	_, err := p.Notify(context.Background())
	require.Error(t, err)
	assert.False(t, liberr.IsCategory(err, liberr.CategorySelection),
		"an all-backends-down run is a runtime failure, not an empty pool")
}
