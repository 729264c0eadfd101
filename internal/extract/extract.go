// Package extract turns text pulled out of a document into page segments and checks it is
// usable before anything is billed.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNoText is returned when a document yields no usable text.
var ErrNoText = errors.New("no text extracted from file")

// Document is extracted text split into one segment per page.
type Document struct {
	Segments []string
	Pages    int
}

// SplitPages splits text on form feeds, the page separator PDF text extractors emit.
// Pages counts every separator-delimited page, blank ones included; Segments keeps only
// the pages that carry text.
func SplitPages(text string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	raw := strings.Split(text, "\f")

	// A trailing form feed closes the last page rather than opening a new one.
	if len(raw) > 1 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}

	doc := Document{Segments: make([]string, 0, len(raw)), Pages: len(raw)}
	for _, page := range raw {
		if p := strings.TrimSpace(page); p != "" {
			doc.Segments = append(doc.Segments, p)
		}
	}
	return doc
}

// FromSegments builds a document from segments that were already split by the caller.
// pages may be zero, meaning one page per segment.
func FromSegments(segments []string, pages int) Document {
	if pages <= 0 {
		pages = len(segments)
	}
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if p := strings.TrimSpace(s); p != "" {
			out = append(out, p)
		}
	}
	return Document{Segments: out, Pages: pages}
}

// Validate rejects documents with too little text or too many pages.
func Validate(doc Document, minChars, maxPages int) error {
	chars := 0
	for _, s := range doc.Segments {
		chars += utf8.RuneCountInString(s)
	}
	if chars == 0 {
		return ErrNoText
	}
	if minChars > 0 && chars < minChars {
		return fmt.Errorf("extracted text is too short: %d characters, need at least %d", chars, minChars)
	}
	if maxPages > 0 && doc.Pages > maxPages {
		return fmt.Errorf("document has %d pages, the maximum is %d", doc.Pages, maxPages)
	}
	return nil
}
