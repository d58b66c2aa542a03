// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire produces the full text of a work by trying its PDF
// sources in order: the local Zotero storage, the Zotero web library, the
// open-access URLs in its metadata, then the OpenAlex content API. The first
// PDF that converts wins and is written to the extraction cache.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/backup"
	"github.com/pdiddy/papers/internal/cache"
	"github.com/pdiddy/papers/internal/convert"
	"github.com/pdiddy/papers/internal/openalex"
	"github.com/pdiddy/papers/internal/zotero"
	"github.com/pdiddy/papers/pkg/types"
)

// Works is the metadata provider.
type Works interface {
	GetWork(ctx context.Context, id string) (*openalex.Work, error)
	DownloadContent(ctx context.Context, w *openalex.Work) ([]byte, error)
}

// Fetcher downloads a URL that must answer with a PDF.
type Fetcher interface {
	FetchPDF(ctx context.Context, url, userAgent string) ([]byte, error)
}

// Pipeline acquires and caches work text. Library may be nil when Zotero is
// not configured; the two library sources are then skipped.
type Pipeline struct {
	Works     Works
	Library   Library
	UserID    string
	Fetcher   Fetcher
	UserAgent string
	Extractor convert.Extractor
	Store     *cache.Store
	Log       *zap.Logger

	// AllowedHosts limits direct URL downloads to these hosts and their
	// subdomains. Empty allows any host.
	AllowedHosts []string

	now func() time.Time
}

// attempt is one PDF source for a work.
type attempt struct {
	key    string
	source types.PDFSource
	load   func(ctx context.Context) ([]byte, error)
}

// request carries the per-call state shared by the attempts.
type request struct {
	id    string
	work  *openalex.Work
	match *Match
	mode  types.ProcessingMode
}

func (p *Pipeline) log() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// WorkText resolves workID and returns its text. Failures of individual
// sources are logged and skipped; when every source is exhausted the error
// is a *NoPDFError. A failed metadata lookup is returned as is.
func (p *Pipeline) WorkText(ctx context.Context, workID string, mode types.ProcessingMode) (*types.WorkTextResult, error) {
	w, err := p.Works.GetWork(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", workID, err)
	}
	return p.Acquire(ctx, workID, w, mode)
}

// Acquire runs the source chain for an already resolved work.
func (p *Pipeline) Acquire(ctx context.Context, workID string, w *openalex.Work, mode types.ProcessingMode) (*types.WorkTextResult, error) {
	req := &request{id: workID, work: w, mode: mode}

	match, err := p.FindInLibrary(ctx, w)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log().Info("library lookup failed", zap.String("work", workID), zap.Error(err))
	}
	req.match = match

	if res, ok, err := p.fromLibrary(ctx, req); ok || err != nil {
		return res, err
	}

	key := w.ShortID()
	if !cacheSafe(key) {
		return nil, &NoPDFError{WorkID: workID, Title: w.DisplayTitle(), DOI: w.BareDOI(), Work: w}
	}
	if res, ok := p.cached(req, key, nil); ok {
		return res, nil
	}
	var attempts []attempt
	for _, u := range w.PDFURLs() {
		if !p.hostAllowed(u) {
			p.log().Debug("skipping URL outside allowed hosts", zap.String("work", workID), zap.String("url", u))
			continue
		}
		attempts = append(attempts, attempt{
			key:    key,
			source: types.DirectURL{URL: u},
			load: func(ctx context.Context) ([]byte, error) {
				return p.Fetcher.FetchPDF(ctx, u, p.UserAgent)
			},
		})
	}
	attempts = append(attempts, attempt{
		key:    key,
		source: types.ContentAPI{},
		load: func(ctx context.Context) ([]byte, error) {
			return p.Works.DownloadContent(ctx, w)
		},
	})
	if res, ok, err := p.run(ctx, req, attempts); ok || err != nil {
		return res, err
	}
	return nil, &NoPDFError{WorkID: workID, Title: w.DisplayTitle(), DOI: w.BareDOI(), Work: w}
}

// FromLibrary looks the work up in the library and, on a match, returns its
// text. ok is false when the library has no usable PDF yet.
func (p *Pipeline) FromLibrary(ctx context.Context, workID string, w *openalex.Work, mode types.ProcessingMode) (*types.WorkTextResult, bool, error) {
	match, err := p.FindInLibrary(ctx, w)
	if err != nil || match == nil {
		return nil, false, err
	}
	return p.fromLibrary(ctx, &request{id: workID, work: w, match: match, mode: mode})
}

// FromURL fetches a single candidate URL and returns its text. It is used
// for URLs suggested outside the work metadata.
func (p *Pipeline) FromURL(ctx context.Context, workID string, w *openalex.Work, rawURL string, mode types.ProcessingMode) (*types.WorkTextResult, error) {
	key := w.ShortID()
	if !cacheSafe(key) {
		return nil, fmt.Errorf("work %s has no usable cache key", workID)
	}
	if !p.hostAllowed(rawURL) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, rawURL)
	}
	req := &request{id: workID, work: w, mode: mode}
	data, err := p.Fetcher.FetchPDF(ctx, rawURL, p.UserAgent)
	if err != nil {
		return nil, err
	}
	return p.extract(ctx, req, attempt{key: key, source: types.DirectURL{URL: rawURL}}, data)
}

func (p *Pipeline) fromLibrary(ctx context.Context, req *request) (*types.WorkTextResult, bool, error) {
	m := req.match
	if m == nil {
		return nil, false, nil
	}
	key := m.Key()
	remote := types.RemoteLibrary{ItemKey: m.Attachment.Key}
	if res, ok := p.cached(req, key, remote); ok {
		return res, true, nil
	}
	if req.mode != "" {
		if res, ok := p.restore(ctx, req, key, remote); ok {
			return res, true, nil
		}
	}

	var attempts []attempt
	if path := p.Library.LocalPath(m.Attachment.Key, m.Attachment.Data.Filename); path != "" {
		attempts = append(attempts, attempt{
			key:    key,
			source: types.LocalLibrary{Path: path},
			load: func(context.Context) ([]byte, error) {
				return os.ReadFile(path)
			},
		})
	}
	attempts = append(attempts, attempt{
		key:    key,
		source: remote,
		load: func(ctx context.Context) ([]byte, error) {
			return p.Library.DownloadFile(ctx, m.Attachment.Key)
		},
	})
	return p.run(ctx, req, attempts)
}

// run tries attempts in order. ok reports that one produced text; err is
// only set for cancellation.
func (p *Pipeline) run(ctx context.Context, req *request, attempts []attempt) (*types.WorkTextResult, bool, error) {
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		data, err := a.load(ctx)
		if err != nil {
			p.log().Debug("source unavailable",
				zap.String("work", req.id),
				zap.String("source", types.DescribeSource(a.source)),
				zap.Error(err))
			continue
		}
		res, err := p.extract(ctx, req, a, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			p.log().Info("extraction failed, trying next source",
				zap.String("work", req.id),
				zap.String("source", types.DescribeSource(a.source)),
				zap.Error(err))
			continue
		}
		return res, true, nil
	}
	return nil, false, nil
}

func (p *Pipeline) extract(ctx context.Context, req *request, a attempt, data []byte) (*types.WorkTextResult, error) {
	out, err := p.Extractor.Extract(ctx, data, a.key+".pdf", req.mode)
	if err != nil {
		return nil, err
	}
	meta := p.meta(req, a.source, out.Mode)
	if err := p.Store.Write(a.key, out.Markdown, out.JSON, meta); err != nil {
		return nil, fmt.Errorf("caching %s: %w", a.key, err)
	}
	p.log().Info("extracted work text",
		zap.String("work", req.id),
		zap.String("key", a.key),
		zap.String("source", types.DescribeSource(a.source)))

	if out.Mode != "" && req.match != nil && a.key == req.match.Key() {
		p.backupBestEffort(ctx, a.key)
	}
	return p.result(req, out.Markdown, a.source, meta.Title), nil
}

// cached returns an existing extraction for key. The recorded provenance
// wins over fallback, which is used for records written without one. An
// advanced request only accepts an entry that recorded a processing mode, so
// a local extraction is upgraded rather than served.
func (p *Pipeline) cached(req *request, key string, fallback types.PDFSource) (*types.WorkTextResult, bool) {
	md, ok := p.Store.ReadMarkdown(key)
	if !ok {
		return nil, false
	}
	if req.mode != "" {
		if meta, ok := p.Store.ReadMeta(key); !ok || meta.ProcessingMode == "" {
			p.log().Debug("cached extraction is not advanced",
				zap.String("work", req.id), zap.String("key", key), zap.String("mode", string(req.mode)))
			return nil, false
		}
	}
	return p.load(req, key, md, fallback), true
}

func (p *Pipeline) load(req *request, key, md string, fallback types.PDFSource) *types.WorkTextResult {
	src, title := fallback, ""
	if meta, ok := p.Store.ReadMeta(key); ok {
		if meta.PDFSource != nil {
			src = meta.PDFSource
		}
		title = meta.Title
	}
	p.log().Debug("cache hit", zap.String("work", req.id), zap.String("key", key))
	return p.result(req, md, src, title)
}

// restore unpacks a backup bundle from the library into the cache.
func (p *Pipeline) restore(ctx context.Context, req *request, key string, fallback types.PDFSource) (*types.WorkTextResult, bool) {
	attKey, ok, err := backup.FindBackup(ctx, p.Library, key)
	if err != nil || !ok {
		if err != nil {
			p.log().Debug("backup lookup failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if err := backup.Download(ctx, p.Library, p.Store, key, attKey); err != nil {
		p.log().Info("backup restore failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	p.log().Info("restored extraction from backup", zap.String("key", key), zap.String("attachment", attKey))
	md, ok := p.Store.ReadMarkdown(key)
	if !ok {
		return nil, false
	}
	// Backups only hold advanced extractions, whatever their meta records.
	return p.load(req, key, md, fallback), true
}

// backupBestEffort uploads a fresh advanced extraction unless a backup
// already exists. Missing write permission is not reported.
func (p *Pipeline) backupBestEffort(ctx context.Context, key string) {
	if _, ok, err := backup.FindBackup(ctx, p.Library, key); err != nil || ok {
		return
	}
	attKey, err := backup.Upload(ctx, p.Library, p.Store, key)
	switch {
	case err == nil:
		p.log().Info("backed up extraction", zap.String("key", key), zap.String("attachment", attKey))
	case zotero.IsWriteDenied(err):
	default:
		p.log().Warn("backup upload failed", zap.String("key", key), zap.Error(err))
	}
}

func (p *Pipeline) meta(req *request, src types.PDFSource, mode types.ProcessingMode) types.ExtractionMeta {
	w := req.work
	meta := types.ExtractionMeta{
		Title:            w.DisplayTitle(),
		Authors:          w.Authors(),
		ItemType:         w.Type,
		Date:             w.PublicationDate,
		DOI:              w.BareDOI(),
		URL:              openalex.LandingPage(w.BareDOI()),
		PublicationTitle: w.PublicationTitle(),
		ProcessingMode:   mode,
		PDFSource:        src,
	}
	if m := req.match; m != nil && isLibrarySource(src) {
		d := m.Parent.Data
		meta.ZoteroUserID = p.UserID
		meta.Title = firstNonEmpty(d.Title, meta.Title)
		if authors := d.Authors(); len(authors) > 0 {
			meta.Authors = authors
		}
		meta.ItemType = firstNonEmpty(d.ItemType, meta.ItemType)
		meta.Date = firstNonEmpty(d.Date, meta.Date)
		meta.DOI = firstNonEmpty(openalex.BareDOI(d.DOI), meta.DOI)
		meta.URL = firstNonEmpty(d.URL, meta.URL)
		meta.PublicationTitle = firstNonEmpty(d.PublicationTitle, meta.PublicationTitle)
	}
	meta.Stamp(p.clock())
	return meta
}

func (p *Pipeline) result(req *request, text string, src types.PDFSource, title string) *types.WorkTextResult {
	w := req.work
	id := w.ShortID()
	if id == "" {
		id = req.id
	}
	return &types.WorkTextResult{
		Text:   text,
		Source: src,
		WorkID: id,
		Title:  firstNonEmpty(title, w.DisplayTitle()),
		DOI:    w.BareDOI(),
	}
}

// ErrHostNotAllowed is returned by FromURL for a URL outside AllowedHosts.
var ErrHostNotAllowed = errors.New("host not allowed")

// hostAllowed matches the URL host against AllowedHosts, case-insensitively.
func (p *Pipeline) hostAllowed(raw string) bool {
	if len(p.AllowedHosts) == 0 {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range p.AllowedHosts {
		h = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "."))
		if h != "" && (host == h || strings.HasSuffix(host, "."+h)) {
			return true
		}
	}
	return false
}

// cacheSafe rejects keys that could escape the cache root.
func cacheSafe(key string) bool {
	return key != "" && !strings.ContainsAny(key, `/\.`)
}

func isLibrarySource(src types.PDFSource) bool {
	switch src.(type) {
	case types.LocalLibrary, types.RemoteLibrary:
		return true
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsNoPDF reports whether err means every source was exhausted.
func IsNoPDF(err error) bool {
	var np *NoPDFError
	return errors.As(err, &np)
}
