package zotero

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfsync/internal/catalog"
	"shelfsync/internal/config"
	"shelfsync/internal/liberr"
)

const testCollection = "ABCD1234"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/users/12345/collections/"+testCollection, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.Header.Get("Zotero-API-Version"))
		fmt.Fprint(w, `{"key":"ABCD1234","data":{"name":"Papers"}}`)
	})

	mux.HandleFunc("/users/12345/collections/"+testCollection+"/items/top", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "0" {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `[
			{"key":"ITEM1","data":{"title":"A Study of Things","itemType":"journalArticle","date":"2021",
				"publicationTitle":"Journal of Things","DOI":"10.1000/182",
				"creators":[{"firstName":"Ada","lastName":"Lovelace"},{"name":"The Things Consortium"}]}},
			{"key":"NOTE1","data":{"itemType":"note"}},
			{"key":"ITEM2","data":{"title":"Things, Revisited","itemType":"book","publisher":"Things Press",
				"extra":"Citation Key: xyz\nDOI: 10.5555/rev.2",
				"creators":[{"lastName":"Curie"}]}}
		]`)
	})

	mux.HandleFunc("/users/12345/items/ITEM1/children", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"key":"ATT1","data":{"itemType":"attachment","filename":"study.pdf"}},
			{"key":"NOTE2","data":{"itemType":"note"}},
			{"key":"ATT2","data":{"itemType":"attachment","filename":""}}
		]`)
	})

	mux.HandleFunc("/users/12345/items/ITEM2/children", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestBackend(baseURL string) *Backend {
	return New(&config.ZoteroConfig{
		LibraryID:   "12345",
		LibraryType: "user",
		APIKey:      "secret",
		BaseURL:     baseURL,
	})
}

func TestEnumerateCollection(t *testing.T) {
	srv := newTestServer(t)
	b := newTestBackend(srv.URL)

	entries, err := b.Enumerate(context.Background(), catalog.ByID(testCollection))
	require.NoError(t, err)
	require.Len(t, entries, 2, "notes are excluded from enumeration")

	study := entries[0]
	assert.Equal(t, "ITEM1", study.ID)
	assert.Equal(t, "A Study of Things", study.Title)
	assert.Equal(t, "journalArticle", study.ItemType)
	assert.Equal(t, "Journal of Things", study.Publisher, "publicationTitle backfills publisher")
	assert.Equal(t, "10.1000/182", study.DOI)
	assert.Equal(t, []string{"Ada Lovelace", "The Things Consortium"}, study.Authors)
	require.Len(t, study.Artifacts, 1, "attachments without filename are skipped")
	assert.Equal(t, catalog.ArtifactRef{Filename: "study.pdf", Format: "pdf"}, study.Artifacts[0])

	revisited := entries[1]
	assert.Equal(t, "Things Press", revisited.Publisher)
	assert.Equal(t, "10.5555/rev.2", revisited.DOI, "DOI is recovered from the extra field")
	assert.Equal(t, []string{"Curie"}, revisited.Authors)
	assert.Empty(t, revisited.Artifacts)
}

func TestEnumerateUnknownCollection(t *testing.T) {
	srv := newTestServer(t)
	b := newTestBackend(srv.URL)

	_, err := b.Enumerate(context.Background(), catalog.ByID("NOPE9999"))
	require.Error(t, err)
	assert.True(t, liberr.IsCategory(err, liberr.CategoryConfig))
	assert.False(t, liberr.IsRetryable(err))
}

func TestEnumerateUnreachableServer(t *testing.T) {
	srv := newTestServer(t)
	srv.Close()
	b := newTestBackend(srv.URL)

	_, err := b.Enumerate(context.Background(), catalog.ByID(testCollection))
	require.Error(t, err)
	assert.True(t, liberr.IsRetryable(err), "connection failures are transient")
}

func TestEnumerateRejectsTagSelector(t *testing.T) {
	b := newTestBackend("http://unused.invalid")

	_, err := b.Enumerate(context.Background(), catalog.ByTag("sci-fi"))
	require.Error(t, err)
	assert.True(t, liberr.IsCategory(err, liberr.CategoryConfig))
}

func TestExtractDOIPrecedence(t *testing.T) {
	it := item{}
	it.Data.DOI = "10.1/a"
	it.Data.Extra = "DOI: 10.2/b"
	assert.Equal(t, "10.1/a", extractDOI(it))

	it.Data.DOI = ""
	assert.Equal(t, "10.2/b", extractDOI(it))

	it.Data.Extra = "no identifiers here"
	assert.Empty(t, extractDOI(it))
}
