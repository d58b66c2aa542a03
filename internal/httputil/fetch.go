// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// ErrNotPDF is returned by FetchPDF when the server answers with a non-PDF
// content type.
var ErrNotPDF = errors.New("response is not a PDF")

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Status)
}

// IsPDFContentType reports whether a Content-Type header names application/pdf.
func IsPDFContentType(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(header)), "application/pdf")
	}
	return mediaType == "application/pdf"
}

// FetchPDF downloads url and returns the body only when the response is a
// 2xx with a PDF content type.
func (r *Retrier) FetchPDF(ctx context.Context, url, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := r.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}
	if !IsPDFContentType(resp.Header.Get("Content-Type")) {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetching %s: %w (got %q)", url, ErrNotPDF, resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}
