// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package datalab submits PDFs to the DataLab Marker API and polls for the
// converted markdown and JSON.
package datalab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/httputil"
	"github.com/pdiddy/papers/pkg/types"
)

// apiBase is the DataLab API root. Declared as a var so tests can
// substitute an httptest server.
var apiBase = "https://www.datalab.to"

const defaultPollInterval = 2 * time.Second

// Job statuses reported by the poll endpoint.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// APIError is a non-2xx reply from DataLab.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("datalab API error (status %d): %s", e.Status, e.Message)
}

// ErrProcessing wraps a job that finished with status "failed".
var ErrProcessing = errors.New("datalab processing failed")

// Result is a completed conversion.
type Result struct {
	Markdown  string
	JSON      json.RawMessage
	PageCount int
}

type submitResponse struct {
	Success         bool   `json:"success"`
	Error           string `json:"error"`
	RequestID       string `json:"request_id"`
	RequestCheckURL string `json:"request_check_url"`
}

type pollResponse struct {
	Success   bool            `json:"success"`
	Status    string          `json:"status"`
	Markdown  string          `json:"markdown"`
	JSON      json.RawMessage `json:"json"`
	Error     string          `json:"error"`
	PageCount int             `json:"page_count"`
}

// Client talks to the Marker endpoint.
type Client struct {
	apiKey   string
	interval time.Duration
	retrier  *httputil.Retrier
	log      *zap.Logger

	// sleep waits between polls; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a client, or an error when no API key is configured.
func New(cfg types.DatalabConfig, httpCfg types.HTTPConfig, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("datalab API key is required for advanced extraction")
	}
	if log == nil {
		log = zap.NewNop()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Client{
		apiKey:   cfg.APIKey,
		interval: interval,
		retrier: &httputil.Retrier{
			Client:     &http.Client{Timeout: httpCfg.Timeout},
			MaxRetries: httpCfg.MaxRetries,
			Log:        log,
		},
		log:   log,
		sleep: sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Convert submits pdf and polls until the job completes or fails.
func (c *Client) Convert(ctx context.Context, pdf []byte, filename string, mode types.ProcessingMode) (*Result, error) {
	id, err := c.Submit(ctx, pdf, filename, mode)
	if err != nil {
		return nil, err
	}
	for {
		if err := c.sleep(ctx, c.interval); err != nil {
			return nil, err
		}
		poll, err := c.poll(ctx, id)
		if err != nil {
			return nil, err
		}
		switch poll.Status {
		case StatusComplete:
			return &Result{Markdown: poll.Markdown, JSON: poll.JSON, PageCount: poll.PageCount}, nil
		case StatusFailed:
			msg := poll.Error
			if msg == "" {
				msg = "unknown processing error"
			}
			return nil, fmt.Errorf("%w: %s", ErrProcessing, msg)
		default:
			c.log.Debug("datalab job pending", zap.String("request_id", id), zap.String("status", poll.Status))
		}
	}
}

// Submit uploads pdf as a multipart form and returns the request ID.
func (c *Client) Submit(ctx context.Context, pdf []byte, filename string, mode types.ProcessingMode) (string, error) {
	if mode == "" {
		mode = types.ModeBalanced
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("building datalab form: %w", err)
	}
	if _, err := fw.Write(pdf); err != nil {
		return "", fmt.Errorf("building datalab form: %w", err)
	}
	fields := [][2]string{
		{"output_format", "markdown,json"},
		{"mode", string(mode)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("building datalab form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("building datalab form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/api/v1/marker", bytes.NewReader(body.Bytes()))
	if err != nil {
		return "", fmt.Errorf("creating datalab request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var sr submitResponse
	if err := c.doJSON(ctx, req, &sr); err != nil {
		return "", err
	}
	if sr.RequestID == "" {
		return "", &APIError{Status: 0, Message: "submit response missing request_id: " + sr.Error}
	}
	return sr.RequestID, nil
}

func (c *Client) poll(ctx context.Context, id string) (*pollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/api/v1/marker/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("creating datalab poll request: %w", err)
	}
	var pr pollResponse
	if err := c.doJSON(ctx, req, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, out any) error {
	req.Header.Set("X-API-Key", c.apiKey)
	resp, err := c.retrier.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("datalab request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing datalab response: %w", err)
	}
	return nil
}
