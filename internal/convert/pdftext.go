// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/papers/pkg/types"
)

const backendPDFText = "pdftext"

// PDFText extracts the plain text layer in process, page by page.
type PDFText struct{}

// Extract implements Extractor.
func (PDFText) Extract(ctx context.Context, data []byte, filename string, _ types.ProcessingMode) (out *Output, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: parsing %s: %v", ErrExtractionFailed, filename, r)
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrExtractionFailed, filename, err)
	}

	doc := Document{Backend: backendPDFText}
	for i := 1; i <= rdr.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pg := rdr.Page(i)
		if pg.V.IsNull() {
			continue
		}
		txt, err := pg.GetPlainText(nil)
		if err != nil {
			// Image-only or unreadable page.
			continue
		}
		if s := strings.TrimSpace(txt); s != "" {
			doc.Pages = append(doc.Pages, Page{Number: i, Text: s})
		}
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: %s has no extractable text", ErrExtractionFailed, filename)
	}

	js, err := doc.encode()
	if err != nil {
		return nil, err
	}
	return &Output{Markdown: doc.markdown(), JSON: js}, nil
}
