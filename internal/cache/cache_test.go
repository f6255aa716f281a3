// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dataset-fetcher/internal/handle"
	"github.com/pdiddy/dataset-fetcher/pkg/types"
)

var olist = handle.Handle{Owner: "olistbr", Dataset: "brazilian-ecommerce"}

// materialize creates a complete cached version of h with one file.
func materialize(t *testing.T, c *Cache, h handle.Handle) {
	t.Helper()
	require.NoError(t, os.MkdirAll(c.DatasetPath(h), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(c.DatasetPath(h), "orders.csv"), []byte("id\n1\n"), 0o644))
	require.NoError(t, c.MarkComplete(h, types.DatasetVersion{
		Handle:  h.Base(),
		Version: h.Version,
		Path:    c.DatasetPath(h),
		Files:   []string{"orders.csv"},
	}))
}

func TestLayout(t *testing.T) {
	c := New("/cache")
	h := olist.WithVersion(2)
	base := filepath.Join("/cache", "datasets", "olistbr", "brazilian-ecommerce", "versions", "2")

	assert.Equal(t, base, c.DatasetPath(h))
	assert.Equal(t, base+".complete", c.MarkerPath(h))
	assert.Equal(t, base+".archive.incomplete", c.IncompletePath(h))
	assert.Equal(t, base+".lock", c.LockPath(h))
}

func TestDefaultRoot(t *testing.T) {
	root, err := DefaultRoot(func(k string) string {
		if k == EnvCacheDir {
			return "/custom/cache"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, "/custom/cache", root)

	root, err = DefaultRoot(func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(".cache", "kagglehub"), filepath.Join(filepath.Base(filepath.Dir(root)), filepath.Base(root)))
}

func TestMarkCompleteAndRead(t *testing.T) {
	c := New(t.TempDir())
	h := olist.WithVersion(2)

	assert.False(t, c.IsComplete(h))
	materialize(t, c, h)
	assert.True(t, c.IsComplete(h))

	rec, err := c.ReadMarker(h)
	require.NoError(t, err)
	assert.Equal(t, "olistbr/brazilian-ecommerce", rec.Handle)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, []string{"orders.csv"}, rec.Files)
}

func TestIsCompleteRequiresDirectory(t *testing.T) {
	c := New(t.TempDir())
	h := olist.WithVersion(1)
	materialize(t, c, h)

	require.NoError(t, os.RemoveAll(c.DatasetPath(h)))
	assert.False(t, c.IsComplete(h), "marker without directory is not complete")
}

func TestLatestCached(t *testing.T) {
	c := New(t.TempDir())

	v, err := c.LatestCached(olist)
	require.NoError(t, err)
	assert.Equal(t, 0, v, "empty cache")

	materialize(t, c, olist.WithVersion(1))
	materialize(t, c, olist.WithVersion(10))
	materialize(t, c, olist.WithVersion(2))

	// An in-flight version without a marker is ignored.
	require.NoError(t, os.MkdirAll(c.DatasetPath(olist.WithVersion(11)), 0o755))
	require.NoError(t, os.WriteFile(c.IncompletePath(olist.WithVersion(11)), []byte("partial"), 0o644))

	v, err = c.LatestCached(olist)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}

func TestRemove(t *testing.T) {
	c := New(t.TempDir())
	h := olist.WithVersion(3)
	materialize(t, c, h)
	require.NoError(t, os.WriteFile(c.IncompletePath(h), []byte("partial"), 0o644))

	require.NoError(t, c.Remove(h))
	assert.False(t, c.IsComplete(h))
	assert.NoFileExists(t, c.MarkerPath(h))
	assert.NoFileExists(t, c.IncompletePath(h))
	assert.NoDirExists(t, c.DatasetPath(h))

	// Removing again is a no-op.
	require.NoError(t, c.Remove(h))
}

func TestList(t *testing.T) {
	c := New(t.TempDir())

	entries, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	other := handle.Handle{Owner: "zynicide", Dataset: "wine-reviews", Version: 4}
	materialize(t, c, olist.WithVersion(2))
	materialize(t, c, other)

	entries, err = c.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "olistbr/brazilian-ecommerce/versions/2", entries[0].Handle.String())
	assert.Equal(t, "zynicide/wine-reviews/versions/4", entries[1].Handle.String())
	require.NotNil(t, entries[1].Record)
	assert.Equal(t, 4, entries[1].Record.Version)
}

func TestLock(t *testing.T) {
	old := LockRetryDelay
	LockRetryDelay = 5 * time.Millisecond
	defer func() { LockRetryDelay = old }()

	c := New(t.TempDir())
	h := olist.WithVersion(1)

	unlock, err := c.Lock(context.Background(), h)
	require.NoError(t, err)
	assert.FileExists(t, c.LockPath(h))

	// A second locker times out while the first holds the lock.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Lock(ctx, h)
	require.Error(t, err)

	require.NoError(t, unlock())

	unlock2, err := c.Lock(context.Background(), h)
	require.NoError(t, err)
	require.NoError(t, unlock2())
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "1.archive.incomplete")
	writeZip(t, archive, map[string]string{
		"olist_orders_dataset.csv":    "order_id\nabc\n",
		"olist_products_dataset.csv":  "product_id\nxyz\n",
		"nested/product_category.csv": "name\nbeleza_saude\n",
	})

	dest := filepath.Join(dir, "1")
	files, err := Extract(context.Background(), archive, dest, "brazilian-ecommerce.zip")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"nested/product_category.csv",
		"olist_orders_dataset.csv",
		"olist_products_dataset.csv",
	}, files)

	data, err := os.ReadFile(filepath.Join(dest, "nested", "product_category.csv"))
	require.NoError(t, err)
	assert.Equal(t, "name\nbeleza_saude\n", string(data))
	assert.NoDirExists(t, dest+stagingSuffix)
}

func TestExtractReplacesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "1")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "stale.csv"), []byte("old"), 0o644))

	archive := filepath.Join(dir, "archive.zip")
	writeZip(t, archive, map[string]string{"fresh.csv": "new"})

	_, err := Extract(context.Background(), archive, dest, "")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dest, "stale.csv"))
	assert.FileExists(t, filepath.Join(dest, "fresh.csv"))
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../../escape.txt": "pwned"})

	dest := filepath.Join(dir, "out", "1")
	_, err := Extract(context.Background(), archive, dest, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the destination")
	assert.NoDirExists(t, dest)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestExtractNonZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "1.archive.incomplete")
	require.NoError(t, os.WriteFile(archive, []byte("a,b\n1,2\n"), 0o644))

	dest := filepath.Join(dir, "1")
	files, err := Extract(context.Background(), archive, dest, "sales.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"sales.csv"}, files)
	assert.FileExists(t, filepath.Join(dest, "sales.csv"))
	assert.NoFileExists(t, archive)
}

func TestSafeJoin(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		wantErr bool
	}{
		{"plain", "a.csv", false},
		{"nested", "dir/a.csv", false},
		{"dot segments inside", "dir/../a.csv", false},
		{"parent", "../a.csv", true},
		{"deep parent", "dir/../../a.csv", true},
		{"absolute", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := safeJoin("/dest", tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
