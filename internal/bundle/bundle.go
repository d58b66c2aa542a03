// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bundle packs a cached extraction into a flat zip archive and
// restores it. The archive holds {key}.md, {key}.json and meta.json at the
// top level; nothing else is read back.
package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/pdiddy/papers/internal/cache"
)

const (
	filenamePrefix = "papers_extract_"
	filenameSuffix = ".zip"

	// ContentType is the MIME type recorded on backup attachments.
	ContentType = "application/zip"
)

// ErrNotCached is returned by Pack when the key has no local markdown.
var ErrNotCached = errors.New("extraction not cached locally")

// FormatError reports an archive that cannot be restored. The local store is
// not modified when it is returned.
type FormatError struct {
	Key     string
	Missing string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bundle for %s is not a valid archive: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("bundle for %s is missing %s", e.Key, e.Missing)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Filename returns the attachment filename for key's backup bundle.
func Filename(key string) string {
	return filenamePrefix + key + filenameSuffix
}

// KeyFromFilename recovers the item key from a backup filename. It reports
// false for any name that does not follow the papers_extract_<key>.zip
// convention or whose key is not a valid cache key.
func KeyFromFilename(name string) (string, bool) {
	if !strings.HasPrefix(name, filenamePrefix) || !strings.HasSuffix(name, filenameSuffix) {
		return "", false
	}
	key := strings.TrimSuffix(strings.TrimPrefix(name, filenamePrefix), filenameSuffix)
	if !cache.ValidKey(key) {
		return "", false
	}
	return key, true
}

type member struct {
	name string
	data []byte
}

// Pack builds the archive for key from the store.
func Pack(store *cache.Store, key string) ([]byte, error) {
	md, ok := store.ReadFile(key, cache.MarkdownName(key))
	if !ok {
		return nil, fmt.Errorf("packing %s: %w", key, ErrNotCached)
	}

	members := []member{{cache.MarkdownName(key), md}}
	if js, ok := store.ReadFile(key, cache.JSONName(key)); ok {
		members = append(members, member{cache.JSONName(key), js})
	}
	if meta, ok := store.ReadFile(key, cache.MetaName); ok {
		members = append(members, member{cache.MetaName, meta})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: m.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("adding %s to bundle: %w", m.name, err)
		}
		if _, err := w.Write(m.data); err != nil {
			return nil, fmt.Errorf("writing %s to bundle: %w", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finishing bundle for %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// Unpack restores key's artifacts from data into the store. Members other
// than the three artifact names are ignored. An archive without {key}.md
// yields a *FormatError and leaves the store untouched.
func Unpack(store *cache.Store, data []byte, key string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &FormatError{Key: key, Err: err}
	}

	wanted := map[string]bool{
		cache.MarkdownName(key): true,
		cache.JSONName(key):     true,
		cache.MetaName:          true,
	}
	files := make(map[string][]byte, len(wanted))
	for _, f := range zr.File {
		if !wanted[f.Name] {
			continue
		}
		content, err := readMember(f)
		if err != nil {
			return &FormatError{Key: key, Err: err}
		}
		files[f.Name] = content
	}
	if _, ok := files[cache.MarkdownName(key)]; !ok {
		return &FormatError{Key: key, Missing: cache.MarkdownName(key)}
	}

	if err := store.WriteFiles(key, files); err != nil {
		return fmt.Errorf("unpacking %s: %w", key, err)
	}
	return nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return data, nil
}
