// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package openalex fetches work metadata and content-API PDFs from OpenAlex.
package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/httputil"
	"github.com/pdiddy/papers/pkg/types"
)

// apiBase and contentBase are the OpenAlex endpoints. Declared as vars so
// tests can substitute an httptest server.
var (
	apiBase     = "https://api.openalex.org"
	contentBase = "https://content.openalex.org"
)

const (
	idPrefix  = "https://openalex.org/"
	doiPrefix = "https://doi.org/"
)

// ErrNoContent is returned by DownloadContent when the content API cannot
// serve the work: no API key, no PDF flagged, or an empty response.
var ErrNoContent = errors.New("content API has no PDF for this work")

// ErrNotFound is returned by GetWork when OpenAlex has no such work.
var ErrNotFound = errors.New("work not found")

// Work captures the fields of an OpenAlex work record used here.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	DisplayName     string       `json:"display_name"`
	Type            string       `json:"type"`
	PublicationDate string       `json:"publication_date"`
	Authorships     []Authorship `json:"authorships"`
	BestOALocation  *Location    `json:"best_oa_location"`
	PrimaryLocation *Location    `json:"primary_location"`
	Locations       []Location   `json:"locations"`
	HasContent      *HasContent  `json:"has_content"`
}

// Authorship links a work to one author.
type Authorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

// Location is one place a work is hosted.
type Location struct {
	PDFURL     string  `json:"pdf_url"`
	LandingURL string  `json:"landing_page_url"`
	Source     *Source `json:"source"`
}

// Source is the venue of a location.
type Source struct {
	DisplayName string `json:"display_name"`
}

// HasContent flags which content-API formats exist for the work.
type HasContent struct {
	PDF bool `json:"pdf"`
}

// ShortID returns the ID without the https://openalex.org/ prefix, e.g.
// "W2741809807".
func (w *Work) ShortID() string {
	return strings.TrimPrefix(w.ID, idPrefix)
}

// BareDOI returns the DOI without the https://doi.org/ prefix, or "".
func (w *Work) BareDOI() string {
	return BareDOI(w.DOI)
}

// DisplayTitle prefers title and falls back to display_name.
func (w *Work) DisplayTitle() string {
	if w.Title != "" {
		return w.Title
	}
	return w.DisplayName
}

// Authors returns the author display names in byline order.
func (w *Work) Authors() []string {
	var out []string
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			out = append(out, a.Author.DisplayName)
		}
	}
	return out
}

// PublicationTitle returns the venue name of the primary location.
func (w *Work) PublicationTitle() string {
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		return w.PrimaryLocation.Source.DisplayName
	}
	return ""
}

// PDFURLs collects pdf_url values from best_oa_location, primary_location,
// and locations, in that order, without duplicates.
func (w *Work) PDFURLs() []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(loc *Location) {
		if loc == nil || loc.PDFURL == "" || seen[loc.PDFURL] {
			return
		}
		seen[loc.PDFURL] = true
		urls = append(urls, loc.PDFURL)
	}
	add(w.BestOALocation)
	add(w.PrimaryLocation)
	for i := range w.Locations {
		add(&w.Locations[i])
	}
	return urls
}

// HasContentPDF reports whether the content API advertises a PDF.
func (w *Work) HasContentPDF() bool {
	return w.HasContent != nil && w.HasContent.PDF
}

// BareDOI strips a https://doi.org/ or doi: prefix.
func BareDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	return strings.TrimPrefix(strings.TrimPrefix(doi, "doi:"), "DOI:")
}

// LandingPage returns the doi.org URL for a bare DOI.
func LandingPage(doi string) string {
	if doi == "" {
		return ""
	}
	return doiPrefix + BareDOI(doi)
}

// Client calls the OpenAlex API.
type Client struct {
	apiKey  string
	mailto  string
	ua      string
	retrier *httputil.Retrier
}

// New builds a client. The API key is only needed for DownloadContent.
func New(cfg types.OpenAlexConfig, httpCfg types.HTTPConfig, log *zap.Logger) *Client {
	return &Client{
		apiKey: cfg.APIKey,
		mailto: cfg.Mailto,
		ua:     httpCfg.UserAgent,
		retrier: &httputil.Retrier{
			Client:     &http.Client{Timeout: httpCfg.Timeout},
			MaxRetries: httpCfg.MaxRetries,
			Log:        log,
		},
	}
}

// GetWork fetches a single work by OpenAlex ID or DOI.
func (c *Client) GetWork(ctx context.Context, id string) (*Work, error) {
	params := url.Values{}
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	reqURL := apiBase + "/works/" + WorkPath(id)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAlex request: %w", err)
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	resp, err := c.retrier.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var w Work
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	return &w, nil
}

// DownloadContent fetches the work's PDF from the content API. It returns
// ErrNoContent without a request when no API key is configured or the work
// does not advertise a PDF.
func (c *Client) DownloadContent(ctx context.Context, w *Work) ([]byte, error) {
	if c.apiKey == "" || !w.HasContentPDF() {
		return nil, ErrNoContent
	}
	reqURL := contentBase + "/works/" + url.PathEscape(w.ShortID()) + ".pdf?api_key=" + url.QueryEscape(c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating content request: %w", err)
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}
	resp, err := c.retrier.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("content API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("content API returned HTTP %d: %w", resp.StatusCode, ErrNoContent)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading content API response: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoContent
	}
	return data, nil
}
