// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backup answers which cached extractions have a backup bundle in
// the Zotero library, and moves bundles between the library and the local
// cache.
package backup

import (
	"context"
	"fmt"

	"github.com/pdiddy/papers/internal/bundle"
	"github.com/pdiddy/papers/internal/zotero"
)

// listQuery matches the backup naming convention in attachment searches.
const listQuery = "papers_extract"

const pageSize = 100

// Library is the subset of the Zotero client used for backups.
type Library interface {
	ListItems(ctx context.Context, params zotero.ItemListParams) (zotero.ItemPage, error)
	ListChildren(ctx context.Context, key string) ([]zotero.Item, error)
	CreateAttachment(ctx context.Context, parentKey, filename, contentType string) (string, error)
	UploadFile(ctx context.Context, attachmentKey, filename string, data []byte) error
	DownloadFile(ctx context.Context, attachmentKey string) ([]byte, error)
}

// Backups maps an item key to the attachment key of its backup bundle.
type Backups map[string]string

// Keys returns the set of backed-up item keys.
func (b Backups) Keys() map[string]struct{} {
	out := make(map[string]struct{}, len(b))
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// BackedUpKeys lists every backup attachment in the library with one
// filtered listing (paged by the server limit). Attachments whose filename
// does not follow the bundle naming convention, or does not carry a Zotero
// item key, are ignored.
func BackedUpKeys(ctx context.Context, lib Library) (Backups, error) {
	out := make(Backups)
	for start := 0; ; {
		page, err := lib.ListItems(ctx, zotero.ItemListParams{
			ItemType: "attachment",
			Q:        listQuery,
			Limit:    pageSize,
			Start:    start,
		})
		if err != nil {
			return nil, fmt.Errorf("listing backup attachments: %w", err)
		}
		for _, it := range page.Items {
			key, ok := bundle.KeyFromFilename(it.Data.Filename)
			if !ok || !zotero.LooksLikeKey(key) {
				continue
			}
			if _, seen := out[key]; !seen {
				out[key] = it.Key
			}
		}
		start += len(page.Items)
		if len(page.Items) == 0 || start >= page.Total {
			return out, nil
		}
	}
}

// TitleMap fetches the bibliographic records for keys and returns their
// titles. A key absent from the result has no parent record in the
// library; a present key may map to "".
func TitleMap(ctx context.Context, lib Library, keys []string) (map[string]string, error) {
	items, err := lookup(ctx, lib, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(items))
	for _, it := range items {
		out[it.Key] = it.Data.Title
	}
	return out, nil
}

// ItemExists returns the subset of keys that have a parent record.
func ItemExists(ctx context.Context, lib Library, keys []string) (map[string]struct{}, error) {
	items, err := lookup(ctx, lib, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it.Key] = struct{}{}
	}
	return out, nil
}

// lookup batch-fetches items by key. The API caps itemKey lists, so more
// than MaxKeysPerRequest keys take several calls.
func lookup(ctx context.Context, lib Library, keys []string) ([]zotero.Item, error) {
	var out []zotero.Item
	for i := 0; i < len(keys); i += zotero.MaxKeysPerRequest {
		end := min(i+zotero.MaxKeysPerRequest, len(keys))
		page, err := lib.ListItems(ctx, zotero.ItemListParams{
			ItemKeys: keys[i:end],
			Limit:    zotero.MaxKeysPerRequest,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching items by key: %w", err)
		}
		for _, it := range page.Items {
			if it.Data.ParentItem == "" {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

// FindBackup looks for key's backup attachment among its children.
func FindBackup(ctx context.Context, lib Library, key string) (string, bool, error) {
	children, err := lib.ListChildren(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("listing children of %s: %w", key, err)
	}
	want := bundle.Filename(key)
	for _, c := range children {
		if c.Data.Filename == want && c.Data.LinkMode == zotero.LinkModeImportedFile {
			return c.Key, true, nil
		}
	}
	return "", false, nil
}
