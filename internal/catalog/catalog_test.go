package catalog

import "testing"

func TestEntryKey(t *testing.T) {
	e := Entry{ID: "12"}
	if got := e.Key("calibre", "science-fiction"); got != "calibre/science-fiction/12" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestSelectorString(t *testing.T) {
	cases := []struct {
		sel  Selector
		want string
	}{
		{ByID("ABC123"), "id:ABC123"},
		{ByTag("sci-fi"), "tag:sci-fi"},
		{Selector{}, "invalid"},
	}
	for _, c := range cases {
		if got := c.sel.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestHasLink(t *testing.T) {
	r := ResolvedEntry{Links: []ArtifactLink{{Ref: ArtifactRef{Filename: "a.pdf"}}}}
	if r.HasLink() {
		t.Fatal("link-less artifact must not count as linked")
	}
	r.Links = append(r.Links, ArtifactLink{Ref: ArtifactRef{Filename: "b.pdf"}, URL: "https://x"})
	if !r.HasLink() {
		t.Fatal("expected HasLink after adding a resolved link")
	}
}
