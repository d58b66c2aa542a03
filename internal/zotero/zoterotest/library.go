// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package zoterotest provides an in-memory Zotero library for tests.
package zoterotest

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/papers/internal/zotero"
)

// Library is a fake Zotero library. It honours the listing filters the
// real API supports for the fields this module sends and counts every
// call by method name.
type Library struct {
	mu    sync.Mutex
	items map[string]zotero.Item
	files map[string][]byte
	order []string
	next  int
	calls map[string]int

	// WriteDenied makes CreateAttachment and UploadFile fail with 403.
	WriteDenied bool
	// FailList makes ListItems fail with a 500.
	FailList bool
	// FailDownload lists attachment keys whose download fails with a 500.
	FailDownload map[string]bool
	// ContentExists makes UploadFile report that content is already stored.
	ContentExists bool
	// DataDir, when set, is the desktop storage root used by LocalPath.
	DataDir string
}

// New returns an empty library.
func New() *Library {
	return &Library{
		items:        make(map[string]zotero.Item),
		files:        make(map[string][]byte),
		calls:        make(map[string]int),
		FailDownload: make(map[string]bool),
	}
}

// AddItem stores a top-level item.
func (l *Library) AddItem(key string, data zotero.ItemData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.put(key, data)
}

// AddAttachment stores a child attachment with optional file content.
func (l *Library) AddAttachment(key, parent string, data zotero.ItemData, content []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data.ItemType = "attachment"
	data.ParentItem = parent
	l.put(key, data)
	if content != nil {
		l.files[key] = content
	}
}

// AddParents stores bare top-level items for each key, titled "Title <key>".
func (l *Library) AddParents(keys ...string) {
	for _, k := range keys {
		l.AddItem(k, zotero.ItemData{ItemType: "journalArticle", Title: "Title " + k})
	}
}

func (l *Library) put(key string, data zotero.ItemData) {
	data.Key = key
	if _, ok := l.items[key]; !ok {
		l.order = append(l.order, key)
	}
	l.items[key] = zotero.Item{Key: key, Data: data}
}

// Calls returns how many times method was invoked.
func (l *Library) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

// Mutations returns the number of write calls issued.
func (l *Library) Mutations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls["CreateAttachment"] + l.calls["UploadFile"]
}

// File returns stored attachment content.
func (l *Library) File(key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.files[key]
	return b, ok
}

// Children returns the keys of attachments under parent, sorted.
func (l *Library) Children(parent string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for k, it := range l.items {
		if it.Data.ParentItem == parent {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// LocalPath mirrors zotero.Client.LocalPath under DataDir.
func (l *Library) LocalPath(attachmentKey, filename string) string {
	if l.DataDir == "" || filename == "" {
		return ""
	}
	return filepath.Join(l.DataDir, "storage", attachmentKey, filename)
}

func (l *Library) ListItems(_ context.Context, p zotero.ItemListParams) (zotero.ItemPage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["ListItems"]++
	if l.FailList {
		return zotero.ItemPage{}, &zotero.APIError{Status: http.StatusInternalServerError, Message: "listing failed"}
	}

	want := make(map[string]bool, len(p.ItemKeys))
	for _, k := range p.ItemKeys {
		want[k] = true
	}
	q := strings.ToLower(p.Q)

	var matched []zotero.Item
	for _, k := range l.order {
		it := l.items[k]
		if p.Top && it.Data.ParentItem != "" {
			continue
		}
		if p.ItemType != "" && it.Data.ItemType != p.ItemType {
			continue
		}
		if len(want) > 0 && !want[k] {
			continue
		}
		if q != "" && !matches(it.Data, q) {
			continue
		}
		matched = append(matched, it)
	}

	total := len(matched)
	start := p.Start
	if start > total {
		start = total
	}
	end := total
	if p.Limit > 0 && start+p.Limit < end {
		end = start + p.Limit
	}
	return zotero.ItemPage{Items: matched[start:end], Total: total}, nil
}

func matches(d zotero.ItemData, q string) bool {
	for _, f := range []string{d.Title, d.Filename, d.DOI} {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func (l *Library) ListChildren(_ context.Context, key string) ([]zotero.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["ListChildren"]++
	var out []zotero.Item
	for _, k := range l.order {
		if it := l.items[k]; it.Data.ParentItem == key {
			out = append(out, it)
		}
	}
	return out, nil
}

func (l *Library) CreateAttachment(_ context.Context, parentKey, filename, contentType string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["CreateAttachment"]++
	if l.WriteDenied {
		return "", &zotero.APIError{Status: http.StatusForbidden, Message: "Write access denied"}
	}
	if _, ok := l.items[parentKey]; !ok {
		return "", &zotero.APIError{Status: http.StatusBadRequest, Message: "Parent item " + parentKey + " not found"}
	}
	l.next++
	key := fmt.Sprintf("NEW%05d", l.next)
	l.put(key, zotero.ItemData{
		ItemType:    "attachment",
		ParentItem:  parentKey,
		LinkMode:    zotero.LinkModeImportedFile,
		Title:       filename,
		Filename:    filename,
		ContentType: contentType,
	})
	return key, nil
}

func (l *Library) UploadFile(_ context.Context, attachmentKey, _ string, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["UploadFile"]++
	if l.WriteDenied {
		return &zotero.APIError{Status: http.StatusForbidden, Message: "Write access denied"}
	}
	if _, ok := l.items[attachmentKey]; !ok {
		return &zotero.APIError{Status: http.StatusNotFound, Message: "Not found"}
	}
	if l.ContentExists {
		return nil
	}
	l.files[attachmentKey] = append([]byte(nil), data...)
	return nil
}

func (l *Library) DownloadFile(_ context.Context, attachmentKey string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["DownloadFile"]++
	if l.FailDownload[attachmentKey] {
		return nil, &zotero.APIError{Status: http.StatusInternalServerError, Message: "download failed"}
	}
	b, ok := l.files[attachmentKey]
	if !ok {
		return nil, &zotero.APIError{Status: http.StatusNotFound, Message: "Not found"}
	}
	return b, nil
}
