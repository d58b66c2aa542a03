// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/papers/internal/container"
	"github.com/pdiddy/papers/pkg/types"
)

const (
	imageMarkitdown   = "markitdown:latest"
	backendMarkitdown = "markitdown"
)

// Markitdown converts PDFs by piping them through the markitdown container
// image on a docker or podman runtime.
type Markitdown struct {
	runtime container.Runtime
}

// NewMarkitdown verifies the markitdown image exists locally before
// returning a converter bound to rt.
func NewMarkitdown(ctx context.Context, rt container.Runtime) (*Markitdown, error) {
	if err := rt.ImageExists(ctx, imageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &Markitdown{runtime: rt}, nil
}

// Extract implements Extractor. Form feeds in the output delimit pages.
func (m *Markitdown) Extract(ctx context.Context, data []byte, filename string, _ types.ProcessingMode) (*Output, error) {
	var out bytes.Buffer
	if err := m.runtime.Run(ctx, imageMarkitdown, bytes.NewReader(data), &out); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: converting %s with markitdown: %v", ErrExtractionFailed, filename, err)
	}

	doc := Document{Backend: backendMarkitdown}
	for i, chunk := range strings.Split(out.String(), "\f") {
		if s := strings.TrimSpace(chunk); s != "" {
			doc.Pages = append(doc.Pages, Page{Number: i + 1, Text: s})
		}
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: markitdown produced empty output for %s", ErrExtractionFailed, filename)
	}
	js, err := doc.encode()
	if err != nil {
		return nil, err
	}
	return &Output{Markdown: doc.markdown(), JSON: js}, nil
}
