// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/papers/internal/backup"
	"github.com/pdiddy/papers/internal/openalex"
	"github.com/pdiddy/papers/internal/zotero"
)

// candidateLimit bounds each library search.
const candidateLimit = 25

// Library is the Zotero surface the pipeline reads from. The backup calls
// serve restore and best-effort upload in advanced mode.
type Library interface {
	backup.Library
	LocalPath(attachmentKey, filename string) string
}

// Match is a library record for a work together with its PDF attachment.
type Match struct {
	Parent     zotero.Item
	Attachment zotero.Item
}

// Key returns the parent item key, which is also the cache key.
func (m *Match) Key() string { return m.Parent.Key }

// FindInLibrary locates the work in the library: first by DOI, then by
// exact title. Only parents with a PDF attachment count. It returns nil
// without error when nothing matches or no library is configured.
func (p *Pipeline) FindInLibrary(ctx context.Context, w *openalex.Work) (*Match, error) {
	if p.Library == nil {
		return nil, nil
	}
	doi := strings.ToLower(w.BareDOI())
	title := strings.TrimSpace(w.DisplayTitle())

	if doi != "" {
		m, err := p.search(ctx, doi, func(d zotero.ItemData) bool {
			return strings.EqualFold(openalex.BareDOI(d.DOI), doi)
		})
		if m != nil || err != nil {
			return m, err
		}
	}
	if title == "" {
		return nil, nil
	}
	return p.search(ctx, title, func(d zotero.ItemData) bool {
		if doi != "" && d.DOI != "" && !strings.EqualFold(openalex.BareDOI(d.DOI), doi) {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(d.Title), title)
	})
}

func (p *Pipeline) search(ctx context.Context, q string, accept func(zotero.ItemData) bool) (*Match, error) {
	page, err := p.Library.ListItems(ctx, zotero.ItemListParams{
		Top:   true,
		Q:     q,
		QMode: "everything",
		Limit: candidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("searching library for %q: %w", q, err)
	}
	for _, it := range page.Items {
		if !accept(it.Data) || !zotero.LooksLikeKey(it.Key) {
			continue
		}
		att, ok, err := p.pdfAttachment(ctx, it.Key)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Match{Parent: it, Attachment: att}, nil
		}
	}
	return nil, nil
}

func (p *Pipeline) pdfAttachment(ctx context.Context, parent string) (zotero.Item, bool, error) {
	children, err := p.Library.ListChildren(ctx, parent)
	if err != nil {
		return zotero.Item{}, false, fmt.Errorf("listing attachments of %s: %w", parent, err)
	}
	for _, c := range children {
		if c.Data.IsPDFAttachment() {
			return c, true, nil
		}
	}
	return zotero.Item{}, false, nil
}
