// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/papers/pkg/types"
)

func writeRaw(t *testing.T, root, key, name, content string) {
	t.Helper()
	dir := filepath.Join(root, key)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestListKeys(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "EXT00101", "EXT00101.md", "# A")
	writeRaw(t, root, "EXT00102", "EXT00102.md", "# B")
	writeRaw(t, root, "EXT00103", "EXT00103.json", "{}") // no markdown
	writeRaw(t, root, "EXT00104", "other.md", "# wrong name")
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.md"), nil, 0o644))

	keys, err := NewStore(root).ListKeys()
	require.NoError(t, err)

	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "EXT00101")
	assert.Contains(t, keys, "EXT00102")
	assert.NotContains(t, keys, "EXT00103")
	assert.NotContains(t, keys, "EXT00104")
}

func TestListKeys_MissingRoot(t *testing.T) {
	keys, err := NewStore(filepath.Join(t.TempDir(), "absent")).ListKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestListKeys_NotMemoized(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	keys, err := s.ListKeys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	writeRaw(t, root, "EXT00105", "EXT00105.md", "# later")
	keys, err = s.ListKeys()
	require.NoError(t, err)
	assert.Contains(t, keys, "EXT00105")
}

func TestReads_AbsenceNotError(t *testing.T) {
	s := NewStore(t.TempDir())

	assert.False(t, s.Has("EXT01102"))
	_, ok := s.ReadMarkdown("EXT01102")
	assert.False(t, ok)
	_, ok = s.ReadJSON("EXT01102")
	assert.False(t, ok)
	_, ok = s.ReadMeta("EXT01102")
	assert.False(t, ok)
}

func TestReadMeta_MalformedIsAbsent(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, "EXT03102", "meta.json", "{not json")

	_, ok := NewStore(root).ReadMeta("EXT03102")
	assert.False(t, ok)
}

func TestWriteAndRead(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nested", "root"))
	meta := types.ExtractionMeta{
		ItemKey:        "ignored",
		Title:          "Attention Is All You Need",
		Authors:        []string{"Vaswani", "Shazeer"},
		DOI:            "10.48550/arXiv.1706.03762",
		ProcessingMode: types.ModeBalanced,
		PDFSource:      types.RemoteLibrary{ItemKey: "ATT00001"},
	}

	require.NoError(t, s.Write("EXT03401", "# Paper\n", `{"pages":[]}`, meta))

	assert.True(t, s.Has("EXT03401"))
	md, ok := s.ReadMarkdown("EXT03401")
	require.True(t, ok)
	assert.Equal(t, "# Paper\n", md)

	js, ok := s.ReadJSON("EXT03401")
	require.True(t, ok)
	assert.Equal(t, `{"pages":[]}`, js)

	got, ok := s.ReadMeta("EXT03401")
	require.True(t, ok)
	assert.Equal(t, "EXT03401", got.ItemKey, "item key must match directory name")
	assert.Equal(t, "Attention Is All You Need", got.Title)
	assert.Equal(t, []string{"Vaswani", "Shazeer"}, got.Authors)
	assert.Equal(t, types.ModeBalanced, got.ProcessingMode)
	assert.Equal(t, types.RemoteLibrary{ItemKey: "ATT00001"}, got.PDFSource)
}

func TestWrite_Overwrites(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Write("EXT01101", "old", "{}", types.ExtractionMeta{}))
	require.NoError(t, s.Write("EXT01101", "new", "{}", types.ExtractionMeta{}))

	md, ok := s.ReadMarkdown("EXT01101")
	require.True(t, ok)
	assert.Equal(t, "new", md)
}

func TestWriteFiles_RejectsUnknownArtifact(t *testing.T) {
	s := NewStore(t.TempDir())
	err := s.WriteFiles("EXT01201", map[string][]byte{"../escape.md": []byte("x")})
	assert.Error(t, err)
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Write("EXT01202", "# x", "{}", types.ExtractionMeta{}))

	entries, err := os.ReadDir(s.Dir("EXT01202"))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"EXT01202.md", "EXT01202.json", "meta.json"}, names)
}

func TestInvalidKeys(t *testing.T) {
	root := filepath.Join(t.TempDir(), "extractions")
	s := NewStore(root)
	for _, key := range []string{"", ".", "..", "../escaped", "a/b", `a\b`, "x..y"} {
		t.Run(key, func(t *testing.T) {
			assert.False(t, ValidKey(key))
			err := s.WriteFiles(key, map[string][]byte{MarkdownName(key): []byte("x")})
			assert.ErrorIs(t, err, ErrInvalidKey)
			assert.False(t, s.Has(key))
			_, ok := s.ReadFile(key, MetaName)
			assert.False(t, ok)
		})
	}
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "escaped.md"))
	assert.True(t, ValidKey("ABCD1234"))
	assert.True(t, ValidKey("W2741809807"))
}
