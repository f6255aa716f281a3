// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dataset-fetcher/internal/cache"
	"github.com/pdiddy/dataset-fetcher/internal/handle"
	"github.com/pdiddy/dataset-fetcher/pkg/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, ".secrets/", cfg.SecretsDir)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, types.LogConsole, cfg.Format)
	assert.Zero(t, cfg.Timeout)
	assert.False(t, cfg.Offline)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("DATASET_FETCHER_CACHE_DIR", "/data/kaggle")
	t.Setenv("DATASET_FETCHER_TIMEOUT", "90s")
	t.Setenv("DATASET_FETCHER_OFFLINE", "true")
	t.Setenv("DATASET_FETCHER_LOG_FORMAT", "json")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/data/kaggle", cfg.CacheDir)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.True(t, cfg.Offline)
	assert.Equal(t, types.LogJSON, cfg.Format)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset-fetcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpoint: http://localhost:9000/api/v1\nmax_retries: 2\nforce_download: true\n"), 0o644))

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/api/v1", cfg.Endpoint)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.True(t, cfg.ForceDownload)
}

func TestFormatHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, formatHistory(&buf, nil, false))
	assert.Equal(t, "No fetches recorded.\n", buf.String())

	buf.Reset()
	require.NoError(t, formatHistory(&buf, nil, true))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	recs := []types.FetchRecord{
		{Handle: "olistbr/brazilian-ecommerce", Version: 2, Bytes: 100, CacheHit: true, FetchedAt: time.Now()},
		{Handle: "olistbr/brazilian-ecommerce", Version: 2, Bytes: 100, FetchedAt: time.Now().Add(-time.Hour)},
	}
	require.NoError(t, formatHistory(&buf, recs, false))
	out := buf.String()
	assert.Contains(t, out, "cache")
	assert.Contains(t, out, "host")
	assert.Contains(t, out, "2 entries")
}

func TestFormatCacheList(t *testing.T) {
	h := handle.Handle{Owner: "olistbr", Dataset: "brazilian-ecommerce", Version: 2}
	entries := []cache.Entry{{
		Handle: h,
		Path:   "/cache/datasets/olistbr/brazilian-ecommerce/versions/2",
		Record: &types.DatasetVersion{Files: []string{"a.csv", "b.csv"}, ArchiveBytes: 42},
	}}

	var buf bytes.Buffer
	require.NoError(t, formatCacheList(&buf, entries, true))
	assert.Contains(t, buf.String(), `"handle": "olistbr/brazilian-ecommerce"`)
	assert.Contains(t, buf.String(), `"files": 2`)

	buf.Reset()
	require.NoError(t, formatCacheList(&buf, nil, false))
	assert.Equal(t, "Cache is empty.\n", buf.String())
}

// TestRootCommand runs the whole command against a fake host twice: once
// downloading, once from the cache.
func TestRootCommand(t *testing.T) {
	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	w, err := zw.Create("olist_orders_dataset.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("order_id\nabc\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var downloads atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/datasets/view/olistbr/brazilian-ecommerce":
			fmt.Fprint(w, `{"ref":"olistbr/brazilian-ecommerce","currentVersionNumber":2}`)
		case "/api/v1/datasets/download/olistbr/brazilian-ecommerce":
			downloads.Add(1)
			http.ServeContent(w, r, "archive.zip", time.Time{}, bytes.NewReader(archive.Bytes()))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	root := t.TempDir()
	t.Setenv("DATASET_FETCHER_CACHE_DIR", root)
	t.Setenv("DATASET_FETCHER_SECRETS_DIR", t.TempDir())
	t.Setenv("DATASET_FETCHER_LOG_LEVEL", "error")
	t.Setenv("KAGGLE_API_ENDPOINT", ts.URL+"/api/v1")
	t.Setenv("KAGGLE_USERNAME", "tester")
	t.Setenv("KAGGLE_KEY", "secret")

	want := "Path to dataset files: " + filepath.Join(root, "datasets", "olistbr", "brazilian-ecommerce", "versions", "2") + "\n"
	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs([]string{})
		require.NoError(t, rootCmd.ExecuteContext(context.Background()))
		assert.Equal(t, want, out.String())
	}
	assert.Equal(t, int32(1), downloads.Load())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", "--json"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Equal(t, 2, strings.Count(out.String(), `"handle": "olistbr/brazilian-ecommerce"`))
}

func TestRootCommandRejectsArgs(t *testing.T) {
	rootCmd.SetArgs([]string{"zynicide/wine-reviews"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	defer rootCmd.SetErr(nil)
	assert.Error(t, rootCmd.ExecuteContext(context.Background()))
}
