// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backup

import (
	"context"
	"fmt"

	"github.com/pdiddy/papers/internal/bundle"
	"github.com/pdiddy/papers/internal/cache"
)

// Upload packs key's cached artifacts and stores them as a new attachment
// under the parent record key. It returns the new attachment key. The
// parent record must already exist; it is never created here.
func Upload(ctx context.Context, lib Library, store *cache.Store, key string) (string, error) {
	data, err := bundle.Pack(store, key)
	if err != nil {
		return "", err
	}
	name := bundle.Filename(key)
	attKey, err := lib.CreateAttachment(ctx, key, name, bundle.ContentType)
	if err != nil {
		return "", fmt.Errorf("creating backup attachment for %s: %w", key, err)
	}
	if err := lib.UploadFile(ctx, attKey, name, data); err != nil {
		return attKey, fmt.Errorf("uploading backup for %s: %w", key, err)
	}
	return attKey, nil
}

// Download fetches the bundle stored on attachmentKey and restores it into
// the cache under key.
func Download(ctx context.Context, lib Library, store *cache.Store, key, attachmentKey string) error {
	data, err := lib.DownloadFile(ctx, attachmentKey)
	if err != nil {
		return fmt.Errorf("downloading backup for %s: %w", key, err)
	}
	return bundle.Unpack(store, data, key)
}
