package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestIsSpreadsheet(t *testing.T) {
	assert.True(t, IsSpreadsheet("revenue.csv"))
	assert.True(t, IsSpreadsheet("REVENUE.CSV"))
	assert.True(t, IsSpreadsheet("book.xlsx"))
	assert.True(t, IsSpreadsheet("events.parquet"))
	assert.False(t, IsSpreadsheet("notes.txt"))
	assert.False(t, IsSpreadsheet("script.py"))
	assert.False(t, IsSpreadsheet("csv"))
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.csv", "col\n1\n")

	h1, err := HashFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h1, HashVersion+":"), "hash must carry the version prefix")

	// Deterministic for identical content.
	h2, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// Different content, different hash.
	writeFile(t, dir, "a.csv", "col\n2\n")
	h3, err := HashFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "revenue.csv", "a\n")
	writeFile(t, dir, "raw/events.parquet", "b\n")
	writeFile(t, dir, "notes.txt", "not a spreadsheet")
	writeFile(t, dir, ".hidden.csv", "skipped")
	writeFile(t, dir, ".cache/cached.csv", "skipped")

	hashes, err := ScanDir(dir)
	require.NoError(t, err)

	assert.Len(t, hashes, 2)
	assert.Contains(t, hashes, "revenue.csv")
	assert.Contains(t, hashes, "raw/events.parquet", "nested paths use forward slashes")
}

func TestFindChangedFiles(t *testing.T) {
	last := map[string]string{
		"a.csv": "v1:1",
		"b.csv": "v1:2",
	}
	current := map[string]string{
		"a.csv": "v1:1", // unchanged
		"b.csv": "v1:9", // modified
		"c.csv": "v1:3", // new
	}

	assert.Equal(t, []string{"b.csv", "c.csv"}, FindChangedFiles(current, last))
	assert.Empty(t, FindChangedFiles(last, last))
}

func TestFindRemovedFiles(t *testing.T) {
	last := map[string]string{
		"a.csv": "v1:1",
		"b.csv": "v1:2",
	}
	current := map[string]string{
		"a.csv": "v1:1",
	}

	assert.Equal(t, []string{"b.csv"}, FindRemovedFiles(current, last))
	assert.Empty(t, FindRemovedFiles(last, last))
}
