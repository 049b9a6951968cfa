// Package render produces listing documents from resolved entries.
//
// Rendering is a pure function of its inputs: identical inputs yield
// byte-identical output. That determinism is what lets the output
// gatekeeper detect "nothing changed" with a plain content comparison, so
// nothing time- or environment-dependent may enter the output.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shelfsync/internal/catalog"
	"shelfsync/internal/liberr"
)

// Format selects the output document format.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// Input is everything a listing is rendered from.
type Input struct {
	Collection  string // logical collection name, also names the output file
	Description string // optional Markdown shown under the title
	Notice      string // inserted verbatim; may contain markup, never escaped
	Format      Format
	Entries     []catalog.ResolvedEntry // rendered in this exact order
}

// ListingDocument is one rendered output page.
type ListingDocument struct {
	Collection string
	Format     Format
	Filename   string
	Content    []byte
}

var titleCaser = cases.Title(language.English)

// Listing renders the document for one collection.
func Listing(in Input) (ListingDocument, error) {
	doc := ListingDocument{Collection: in.Collection, Format: in.Format}
	switch in.Format {
	case FormatHTML, "":
		doc.Format = FormatHTML
		doc.Filename = in.Collection + ".html"
		content, err := renderHTML(in)
		if err != nil {
			return doc, err
		}
		doc.Content = content
	case FormatText:
		doc.Filename = in.Collection + ".txt"
		doc.Content = []byte(renderText(in))
	default:
		return doc, liberr.New(liberr.CategoryRender, liberr.SeverityError,
			fmt.Sprintf("unsupported listing format %q", in.Format))
	}
	return doc, nil
}

func renderHTML(in Input) ([]byte, error) {
	title := titleCaser.String(strings.ReplaceAll(in.Collection, "-", " "))

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>\n")
	b.WriteString(listingCSS)
	b.WriteString("</style>\n</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))

	if in.Notice != "" {
		// The notice is the caller's responsibility and goes in verbatim.
		fmt.Fprintf(&b, "<div class='notice'>%s</div>\n", in.Notice)
	}

	if in.Description != "" {
		var md bytes.Buffer
		if err := goldmark.Convert([]byte(in.Description), &md); err != nil {
			return nil, liberr.Wrap(err, liberr.CategoryRender, liberr.SeverityError, "render collection description")
		}
		fmt.Fprintf(&b, "<div class='description'>%s</div>\n", md.String())
	}

	b.WriteString(searchContainer)

	for i, entry := range in.Entries {
		writeEntryHTML(&b, i+1, entry)
	}

	b.WriteString(searchScript)
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String()), nil
}

func writeEntryHTML(b *strings.Builder, number int, e catalog.ResolvedEntry) {
	fmt.Fprintf(b, "<div class='item-number'>#%d</div>\n", number)
	b.WriteString("<div class='item'>\n")
	fmt.Fprintf(b, "<h2>%s</h2>\n", html.EscapeString(orUnknown(e.Title)))

	writeField(b, "Authors", strings.Join(e.Authors, "; "))
	if e.Series != "" {
		fmt.Fprintf(b, "<p><strong>Series:</strong> %s (%g)</p>\n", html.EscapeString(e.Series), e.SeriesIndex)
	}
	writeField(b, "Publisher", e.Publisher)
	writeField(b, "Date", e.PubDate)
	writeField(b, "ISBN", e.ISBN)
	if e.DOI != "" {
		fmt.Fprintf(b, "<p><strong>DOI:</strong> <a href='https://doi.org/%s' target='_blank'>%s</a></p>\n",
			html.EscapeString(e.DOI), html.EscapeString(e.DOI))
	}
	if e.ItemType != "" && e.ItemType != "book" {
		writeField(b, "Type", e.ItemType)
	}

	if len(e.Links) > 0 {
		b.WriteString("<p><strong>Files:</strong></p>\n<ul>\n")
		for _, link := range e.Links {
			name := html.EscapeString(link.Ref.Filename)
			if link.URL != "" {
				fmt.Fprintf(b, "<li>%s - <a href='%s' target='_blank'>View</a></li>\n", name, html.EscapeString(link.URL))
			} else {
				// No access link: render as plain text with no affordance.
				fmt.Fprintf(b, "<li>%s</li>\n", name)
			}
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</div>\n")
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<p><strong>%s:</strong> %s</p>\n", label, html.EscapeString(value))
}

func renderText(in Input) string {
	title := titleCaser.String(strings.ReplaceAll(in.Collection, "-", " "))
	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
	for i, entry := range in.Entries {
		fmt.Fprintf(&b, "#%d\n", i+1)
		b.WriteString(EntryText(entry))
		b.WriteString("---\n")
	}
	return b.String()
}

// EntryText renders one entry as plain text; also used as the notification
// email body.
func EntryText(e catalog.ResolvedEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", orUnknown(e.Title))
	if len(e.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(e.Authors, "; "))
	}
	if e.Series != "" {
		fmt.Fprintf(&b, "Series: %s (%g)\n", e.Series, e.SeriesIndex)
	}
	if e.Publisher != "" {
		fmt.Fprintf(&b, "Publisher: %s\n", e.Publisher)
	}
	if e.PubDate != "" {
		fmt.Fprintf(&b, "Date: %s\n", e.PubDate)
	}
	if e.ISBN != "" {
		fmt.Fprintf(&b, "ISBN: %s\n", e.ISBN)
	}
	if e.DOI != "" {
		fmt.Fprintf(&b, "DOI: %s\n", e.DOI)
	}
	if len(e.Links) > 0 {
		b.WriteString("Files:\n")
		for _, link := range e.Links {
			if link.URL != "" {
				fmt.Fprintf(&b, "  - %s (%s)\n", link.Ref.Filename, link.URL)
			} else {
				fmt.Fprintf(&b, "  - %s (no access link)\n", link.Ref.Filename)
			}
		}
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
