// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backup

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/papers/internal/bundle"
	"github.com/pdiddy/papers/internal/cache"
	"github.com/pdiddy/papers/internal/zotero"
	"github.com/pdiddy/papers/internal/zotero/zoterotest"
	"github.com/pdiddy/papers/pkg/types"
)

func addBackup(lib *zoterotest.Library, attKey, key string) {
	lib.AddAttachment(attKey, key, zotero.ItemData{
		Filename:    bundle.Filename(key),
		LinkMode:    zotero.LinkModeImportedFile,
		ContentType: bundle.ContentType,
	}, nil)
}

func TestBackedUpKeys(t *testing.T) {
	lib := zoterotest.New()
	lib.AddParents("EXT00201", "EXT00202", "EXT00203")
	addBackup(lib, "ATT00201", "EXT00201")
	addBackup(lib, "ATT00202", "EXT00202")
	lib.AddAttachment("ATT00203", "EXT00203", zotero.ItemData{Filename: "papers_extract_notes.txt"}, nil)
	lib.AddAttachment("ATT00204", "EXT00203", zotero.ItemData{Filename: "paper.pdf", ContentType: "application/pdf"}, nil)

	got, err := BackedUpKeys(context.Background(), lib)
	require.NoError(t, err)
	assert.Equal(t, Backups{"EXT00201": "ATT00201", "EXT00202": "ATT00202"}, got)
	assert.Equal(t, 1, lib.Calls("ListItems"), "one listing call, not one per key")
}

func TestBackedUpKeys_IgnoresNonItemKeys(t *testing.T) {
	lib := zoterotest.New()
	lib.AddParents("EXT00301")
	addBackup(lib, "ATT00301", "EXT00301")
	for i, name := range []string{"papers_extract_../escaped.zip", "papers_extract_lower123.zip", "papers_extract_SHORT.zip"} {
		lib.AddAttachment(fmt.Sprintf("ATTBAD0%d", i), "EXT00301", zotero.ItemData{Filename: name, ContentType: bundle.ContentType}, nil)
	}

	got, err := BackedUpKeys(context.Background(), lib)
	require.NoError(t, err)
	assert.Equal(t, Backups{"EXT00301": "ATT00301"}, got)
}

func TestBackedUpKeys_Paginates(t *testing.T) {
	lib := zoterotest.New()
	for i := 0; i < 230; i++ {
		key := fmt.Sprintf("K%07d", i)
		lib.AddParents(key)
		addBackup(lib, fmt.Sprintf("A%07d", i), key)
	}

	got, err := BackedUpKeys(context.Background(), lib)
	require.NoError(t, err)
	assert.Len(t, got, 230)
	assert.Equal(t, 3, lib.Calls("ListItems"))
}

func TestBackedUpKeys_ListFailureAborts(t *testing.T) {
	lib := zoterotest.New()
	lib.FailList = true

	got, err := BackedUpKeys(context.Background(), lib)
	require.Error(t, err)
	assert.Nil(t, got)
	var apiErr *zotero.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestTitleMapAndItemExists(t *testing.T) {
	lib := zoterotest.New()
	lib.AddItem("EXT00301", zotero.ItemData{ItemType: "journalArticle", Title: "Present"})
	lib.AddItem("EXT00302", zotero.ItemData{ItemType: "journalArticle"})

	keys := []string{"EXT00301", "EXT00302", "EXT00303"}
	titles, err := TitleMap(context.Background(), lib, keys)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"EXT00301": "Present", "EXT00302": ""}, titles)

	exists, err := ItemExists(context.Background(), lib, keys)
	require.NoError(t, err)
	assert.Len(t, exists, 2)
	assert.NotContains(t, exists, "EXT00303")
	assert.Equal(t, 2, lib.Calls("ListItems"), "one batch call each")
}

func TestTitleMap_Chunked(t *testing.T) {
	lib := zoterotest.New()
	keys := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		k := fmt.Sprintf("T%07d", i)
		lib.AddParents(k)
		keys = append(keys, k)
	}

	titles, err := TitleMap(context.Background(), lib, keys)
	require.NoError(t, err)
	assert.Len(t, titles, 120)
	assert.Equal(t, 3, lib.Calls("ListItems"))
}

func TestTitleMap_NoKeysNoCall(t *testing.T) {
	lib := zoterotest.New()
	titles, err := TitleMap(context.Background(), lib, nil)
	require.NoError(t, err)
	assert.Empty(t, titles)
	assert.Zero(t, lib.Calls("ListItems"))
}

func TestFindBackup(t *testing.T) {
	lib := zoterotest.New()
	lib.AddParents("EXT00401")
	addBackup(lib, "ATT00401", "EXT00401")

	att, ok, err := FindBackup(context.Background(), lib, "EXT00401")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ATT00401", att)

	lib.AddParents("EXT00402")
	_, ok, err = FindBackup(context.Background(), lib, "EXT00402")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUploadThenDownload(t *testing.T) {
	lib := zoterotest.New()
	lib.AddParents("EXT00501")

	src := cache.NewStore(t.TempDir())
	require.NoError(t, src.Write("EXT00501", "# Backed up", `{"pages":[]}`, types.ExtractionMeta{Title: "Backed up"}))

	attKey, err := Upload(context.Background(), lib, src, "EXT00501")
	require.NoError(t, err)
	assert.Equal(t, []string{attKey}, lib.Children("EXT00501"))

	backups, err := BackedUpKeys(context.Background(), lib)
	require.NoError(t, err)
	assert.Equal(t, attKey, backups["EXT00501"])

	dst := cache.NewStore(t.TempDir())
	require.NoError(t, Download(context.Background(), lib, dst, "EXT00501", attKey))
	md, ok := dst.ReadMarkdown("EXT00501")
	require.True(t, ok)
	assert.Equal(t, "# Backed up", md)
}

func TestUpload_ContentAlreadyStored(t *testing.T) {
	lib := zoterotest.New()
	lib.AddParents("EXT00502")
	lib.ContentExists = true

	store := cache.NewStore(t.TempDir())
	require.NoError(t, store.Write("EXT00502", "# x", "{}", types.ExtractionMeta{}))

	_, err := Upload(context.Background(), lib, store, "EXT00502")
	require.NoError(t, err)
}

func TestUpload_NotCached(t *testing.T) {
	lib := zoterotest.New()
	lib.AddParents("EXT00503")

	_, err := Upload(context.Background(), lib, cache.NewStore(t.TempDir()), "EXT00503")
	assert.True(t, errors.Is(err, bundle.ErrNotCached))
	assert.Zero(t, lib.Mutations())
}

func TestUpload_WriteDenied(t *testing.T) {
	lib := zoterotest.New()
	lib.AddParents("EXT00504")
	lib.WriteDenied = true

	store := cache.NewStore(t.TempDir())
	require.NoError(t, store.Write("EXT00504", "# x", "{}", types.ExtractionMeta{}))

	_, err := Upload(context.Background(), lib, store, "EXT00504")
	assert.True(t, zotero.IsWriteDenied(err))
}

func TestDownload_BadBundleLeavesStoreUntouched(t *testing.T) {
	lib := zoterotest.New()
	lib.AddParents("EXT00505")
	lib.AddAttachment("ATT00505", "EXT00505", zotero.ItemData{Filename: bundle.Filename("EXT00505")}, []byte("not a zip"))

	store := cache.NewStore(t.TempDir())
	err := Download(context.Background(), lib, store, "EXT00505", "ATT00505")
	var fe *bundle.FormatError
	require.True(t, errors.As(err, &fe))
	assert.False(t, store.Has("EXT00505"))
}
