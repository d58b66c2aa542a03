// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/papers/internal/datalab"
	"github.com/pdiddy/papers/pkg/types"
)

// marker is the slice of datalab.Client used here.
type marker interface {
	Convert(ctx context.Context, pdf []byte, filename string, mode types.ProcessingMode) (*datalab.Result, error)
}

// Datalab runs advanced extraction through the DataLab Marker API.
type Datalab struct {
	client marker
}

// NewDatalab wraps a DataLab client.
func NewDatalab(c *datalab.Client) *Datalab {
	return &Datalab{client: c}
}

// Extract implements Extractor. An empty mode means balanced.
func (d *Datalab) Extract(ctx context.Context, data []byte, filename string, mode types.ProcessingMode) (*Output, error) {
	if mode == "" {
		mode = types.ModeBalanced
	}
	res, err := d.client.Convert(ctx, data, filename, mode)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: datalab %s: %v", ErrExtractionFailed, filename, err)
	}
	if res.Markdown == "" {
		return nil, fmt.Errorf("%w: datalab returned no markdown for %s", ErrExtractionFailed, filename)
	}
	js := string(res.JSON)
	if js == "" || js == "null" {
		js = "{}"
	}
	return &Output{Markdown: res.Markdown, JSON: js, Mode: mode}, nil
}
