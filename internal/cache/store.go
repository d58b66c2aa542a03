// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores extraction artifacts on the local filesystem, one
// directory per item key holding {key}.md, {key}.json, and meta.json.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/papers/pkg/types"
)

const (
	metaFile = "meta.json"
	appDir   = "papers"
	extDir   = "extractions"
)

// DefaultRoot returns the platform cache directory for extractions,
// e.g. ~/.cache/papers/extractions on Linux.
func DefaultRoot() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating user cache directory: %w", err)
	}
	return filepath.Join(base, appDir, extDir), nil
}

// Store is a filesystem-backed extraction cache rooted at a single directory.
// Operations on different keys touch disjoint directories; concurrent writes
// to the same key are last-writer-wins.
type Store struct {
	root string
}

// NewStore returns a store rooted at root. The directory is created lazily
// on the first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// ErrInvalidKey is returned for keys that could name a path outside the root.
var ErrInvalidKey = errors.New("invalid cache key")

// ValidKey reports whether key names a single directory under the root:
// non-empty, without path separators, and not a dot segment.
func ValidKey(key string) bool {
	return key != "" && key != "." && !strings.Contains(key, "..") && !strings.ContainsAny(key, `/\`)
}

// Dir returns the cache directory for key.
func (s *Store) Dir(key string) string {
	return filepath.Join(s.root, key)
}

// MarkdownName returns the markdown artifact filename for key.
func MarkdownName(key string) string { return key + ".md" }

// JSONName returns the structured artifact filename for key.
func JSONName(key string) string { return key + ".json" }

// MetaName is the metadata artifact filename.
const MetaName = metaFile

// ListKeys scans the root and returns every subdirectory that holds a
// {key}.md file. A missing root yields an empty set.
func (s *Store) ListKeys() (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return keys, nil
		}
		return nil, fmt.Errorf("reading cache root %s: %w", s.root, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		key := e.Name()
		if _, err := os.Stat(filepath.Join(s.root, key, MarkdownName(key))); err == nil {
			keys[key] = struct{}{}
		}
	}
	return keys, nil
}

// Has reports whether key is locally cached.
func (s *Store) Has(key string) bool {
	if !ValidKey(key) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.Dir(key), MarkdownName(key)))
	return err == nil
}

// ReadMarkdown returns the cached markdown for key.
func (s *Store) ReadMarkdown(key string) (string, bool) {
	return s.readText(key, MarkdownName(key))
}

// ReadJSON returns the cached structured extraction for key.
func (s *Store) ReadJSON(key string) (string, bool) {
	return s.readText(key, JSONName(key))
}

// ReadMeta returns the parsed meta.json for key. A missing or malformed file
// reports absence.
func (s *Store) ReadMeta(key string) (*types.ExtractionMeta, bool) {
	if !ValidKey(key) {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(key), metaFile))
	if err != nil {
		return nil, false
	}
	var meta types.ExtractionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, false
	}
	return &meta, true
}

// ReadFile returns the raw bytes of one artifact.
func (s *Store) ReadFile(key, name string) ([]byte, bool) {
	if !ValidKey(key) || filepath.Base(name) != name {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(key), name))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *Store) readText(key, name string) (string, bool) {
	data, ok := s.ReadFile(key, name)
	if !ok {
		return "", false
	}
	return string(data), true
}

// Write stores all three artifacts for key, overwriting any existing entry.
// meta.ItemKey is forced to key. Each file goes through a temp file and
// rename; the markdown file lands last so a reader never sees {key}.md
// without its siblings.
func (s *Store) Write(key, markdown, jsonDoc string, meta types.ExtractionMeta) error {
	meta.ItemKey = key
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta for %s: %w", key, err)
	}
	return s.WriteFiles(key, map[string][]byte{
		JSONName(key):     []byte(jsonDoc),
		metaFile:          metaBytes,
		MarkdownName(key): []byte(markdown),
	})
}

// WriteFiles writes the named artifacts into the key directory, creating it
// if needed. Only the three artifact names are accepted.
func (s *Store) WriteFiles(key string, files map[string][]byte) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	dir := s.Dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	order := []string{JSONName(key), metaFile, MarkdownName(key)}
	for name := range files {
		if name != order[0] && name != order[1] && name != order[2] {
			return fmt.Errorf("unexpected cache artifact %q for %s", name, key)
		}
	}
	for _, name := range order {
		data, ok := files[name]
		if !ok {
			continue
		}
		if err := writeAtomic(filepath.Join(dir, name), data); err != nil {
			return fmt.Errorf("writing %s for %s: %w", name, key, err)
		}
	}
	return nil
}

// writeAtomic writes data to a temp file beside path, then renames it.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
