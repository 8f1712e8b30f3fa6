package watchlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWatchlist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryLoadsEntries(t *testing.T) {
	path := writeWatchlist(t, `
watchlist:
  - symbol: "600519"
    type: stock
    name: 贵州茅台
  - symbol: BTCUSDT
    type: crypto
`)
	reg, err := NewRegistry(path)
	require.NoError(t, err)

	entries := reg.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "600519", entries[0].Symbol)
	assert.Equal(t, "stock", entries[0].Type)
	assert.Equal(t, "贵州茅台", entries[0].Name)
	assert.Equal(t, "crypto", entries[1].Type)
}

func TestRegistryDefaultsTypeToStock(t *testing.T) {
	path := writeWatchlist(t, `
watchlist:
  - symbol: "000001"
`)
	reg, err := NewRegistry(path)
	require.NoError(t, err)
	entries := reg.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "stock", entries[0].Type)
}

func TestRegistrySkipsInvalidEntries(t *testing.T) {
	path := writeWatchlist(t, `
watchlist:
  - symbol: ""
  - symbol: "600519"
    type: bond
  - symbol: "000001"
    type: stock
`)
	reg, err := NewRegistry(path)
	require.NoError(t, err)
	entries := reg.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "000001", entries[0].Symbol)
}

func TestRegistryDeduplicatesSymbols(t *testing.T) {
	path := writeWatchlist(t, `
watchlist:
  - symbol: "600519"
  - symbol: "600519"
    type: fund
`)
	reg, err := NewRegistry(path)
	require.NoError(t, err)
	entries := reg.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "stock", entries[0].Type, "first occurrence wins")
}

func TestRegistryRejectsUnknownYAMLFields(t *testing.T) {
	path := writeWatchlist(t, `
watchlist:
  - symbol: "600519"
wacthlist_typo: true
`)
	_, err := NewRegistry(path)
	require.Error(t, err)
}

func TestRegistryMissingFile(t *testing.T) {
	_, err := NewRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
