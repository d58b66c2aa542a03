// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns PDF bytes into markdown plus a structured JSON
// document. Local backends (pdftext, markitdown) run by default; the DataLab
// backend serves advanced processing modes.
package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/container"
	"github.com/pdiddy/papers/pkg/types"
)

// ErrExtractionFailed marks a conversion failure for one PDF. Callers treat
// it as non-fatal and move on to the next source.
var ErrExtractionFailed = errors.New("extraction failed")

// Output is one converted document.
type Output struct {
	Markdown string
	JSON     string
	// Mode is the processing mode actually used; empty for local backends.
	Mode types.ProcessingMode
}

// Extractor converts a PDF. filename names the document for backends that
// need one; mode is ignored by local backends.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte, filename string, mode types.ProcessingMode) (*Output, error)
}

// Document is the JSON shape written by the local backends.
type Document struct {
	Backend string `json:"backend"`
	Pages   []Page `json:"pages"`
}

// Page is the plain text of one page, numbered from 1.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

func (d Document) encode() (string, error) {
	if d.Pages == nil {
		d.Pages = []Page{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding %s document: %w", d.Backend, err)
	}
	return string(b), nil
}

// markdown joins non-empty pages with blank lines.
func (d Document) markdown() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Router sends advanced modes to Advanced and everything else to Local.
type Router struct {
	Local    Extractor
	Advanced Extractor
	Log      *zap.Logger
}

// Extract implements Extractor. A requested mode with no advanced backend
// configured degrades to local extraction.
func (r *Router) Extract(ctx context.Context, pdf []byte, filename string, mode types.ProcessingMode) (*Output, error) {
	if mode != "" {
		if r.Advanced != nil {
			return r.Advanced.Extract(ctx, pdf, filename, mode)
		}
		if r.Log != nil {
			r.Log.Warn("advanced mode requested without DataLab credentials, using local extraction",
				zap.String("mode", string(mode)))
		}
	}
	if r.Local == nil {
		return nil, fmt.Errorf("%w: no local extractor configured", ErrExtractionFailed)
	}
	return r.Local.Extract(ctx, pdf, filename, "")
}

// NewLocal builds the local backend named by cfg. The default is pdftext.
func NewLocal(ctx context.Context, cfg types.ExtractionConfig, detect func(context.Context) (container.Runtime, error)) (Extractor, error) {
	switch cfg.Backend {
	case "", types.BackendPDFText:
		return PDFText{}, nil
	case types.BackendMarkitdown:
		rt, err := detect(ctx)
		if err != nil {
			return nil, err
		}
		return NewMarkitdown(ctx, rt)
	default:
		return nil, fmt.Errorf("unknown extraction backend %q (want pdftext or markitdown)", cfg.Backend)
	}
}
