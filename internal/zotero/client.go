// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package zotero is a minimal client for the Zotero web API covering the
// calls the extraction cache and acquisition pipeline need: item listing,
// batch lookup, children, attachment creation, and file transfer.
package zotero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/papers/internal/httputil"
	"github.com/pdiddy/papers/pkg/types"
)

// apiBase is the Zotero web API root. Declared as a var so tests can
// substitute an httptest server.
var apiBase = "https://api.zotero.org"

const apiVersion = "3"

// APIError is returned when the Zotero API answers with a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zotero API error (status %d): %s", e.Status, e.Message)
}

// IsWriteDenied reports whether err is a 403 from a write call, which means
// the API key lacks write access to the library.
func IsWriteDenied(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// LooksLikeKey reports whether s has the shape of a Zotero item key: eight
// characters drawn from uppercase letters and digits.
func LooksLikeKey(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, c := range s {
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// Client talks to one user library.
type Client struct {
	userID  string
	apiKey  string
	baseURL string
	dataDir string
	ua      string
	retrier *httputil.Retrier
	log     *zap.Logger
}

// New builds a client from the Zotero and HTTP settings. It fails when the
// user ID or API key is missing.
func New(cfg types.ZoteroConfig, httpCfg types.HTTPConfig, log *zap.Logger) (*Client, error) {
	if !cfg.Configured() {
		return nil, errors.New("zotero user ID and API key are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	base := cfg.BaseURL
	if base == "" {
		base = apiBase
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataDir = filepath.Join(home, "Zotero")
		}
	}
	return &Client{
		userID:  cfg.UserID,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		dataDir: dataDir,
		ua:      httpCfg.UserAgent,
		retrier: &httputil.Retrier{
			Client:     &http.Client{Timeout: httpCfg.Timeout},
			MaxRetries: httpCfg.MaxRetries,
			Log:        log,
		},
		log: log,
	}, nil
}

// UserID returns the library owner ID.
func (c *Client) UserID() string { return c.userID }

// LocalPath returns where the desktop client stores an attachment file,
// <data_dir>/storage/<attachment key>/<filename>. It returns "" when no data
// directory is known.
func (c *Client) LocalPath(attachmentKey, filename string) string {
	if c.dataDir == "" || filename == "" {
		return ""
	}
	return filepath.Join(c.dataDir, "storage", attachmentKey, filename)
}

func (c *Client) userPath(parts ...string) string {
	return c.baseURL + "/users/" + url.PathEscape(c.userID) + "/" + strings.Join(parts, "/")
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating zotero request: %w", err)
	}
	req.Header.Set("Zotero-API-Version", apiVersion)
	req.Header.Set("Zotero-API-Key", c.apiKey)
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}
	return req, nil
}

// do sends req and returns the response when it is 2xx. Other statuses are
// drained into an *APIError.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.retrier.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("zotero %s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) (http.Header, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("parsing zotero response: %w", err)
	}
	return resp.Header, nil
}

// ListItems returns one page of items matching params along with the
// Total-Results count reported by the server.
func (c *Client) ListItems(ctx context.Context, params ItemListParams) (ItemPage, error) {
	path := "items"
	if params.Top {
		path = "items/top"
	}
	var items []Item
	header, err := c.getJSON(ctx, c.userPath(path)+params.encode(), &items)
	if err != nil {
		return ItemPage{}, err
	}
	total, _ := strconv.Atoi(header.Get("Total-Results"))
	if total < len(items) {
		total = len(items)
	}
	return ItemPage{Items: items, Total: total}, nil
}

// GetItem fetches a single item by key.
func (c *Client) GetItem(ctx context.Context, key string) (Item, error) {
	var item Item
	if _, err := c.getJSON(ctx, c.userPath("items", url.PathEscape(key)), &item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// ListChildren returns the child items (attachments and notes) of key.
func (c *Client) ListChildren(ctx context.Context, key string) ([]Item, error) {
	var items []Item
	if _, err := c.getJSON(ctx, c.userPath("items", url.PathEscape(key), "children"), &items); err != nil {
		return nil, err
	}
	return items, nil
}
