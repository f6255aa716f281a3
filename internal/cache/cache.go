// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache owns the on-disk dataset layout:
//
//	<root>/datasets/<owner>/<dataset>/versions/<N>/               extracted files
//	<root>/datasets/<owner>/<dataset>/versions/<N>.complete       completion marker (YAML)
//	<root>/datasets/<owner>/<dataset>/versions/<N>.archive.incomplete  partial download
//	<root>/datasets/<owner>/<dataset>/versions/<N>.lock           per-version lock
//
// A version directory is only served once its completion marker exists.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dataset-fetcher/internal/handle"
	"github.com/pdiddy/dataset-fetcher/pkg/types"
)

// EnvCacheDir overrides the default cache root.
const EnvCacheDir = "KAGGLEHUB_CACHE"

const (
	datasetsDir      = "datasets"
	versionsDir      = "versions"
	markerSuffix     = ".complete"
	incompleteSuffix = ".archive.incomplete"
	lockSuffix       = ".lock"
)

// Cache is a dataset cache rooted at a directory.
type Cache struct {
	Root string
}

// DefaultRoot returns $KAGGLEHUB_CACHE, or ~/.cache/kagglehub.
func DefaultRoot(getenv func(string) string) (string, error) {
	if dir := getenv(EnvCacheDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache directory: %w", err)
	}
	return filepath.Join(home, ".cache", "kagglehub"), nil
}

// New returns a Cache rooted at root.
func New(root string) *Cache {
	return &Cache{Root: root}
}

func (c *Cache) versionsPath(h handle.Handle) string {
	return filepath.Join(c.Root, datasetsDir, h.Owner, h.Dataset, versionsDir)
}

func (c *Cache) versionBase(h handle.Handle) string {
	return filepath.Join(c.versionsPath(h), strconv.Itoa(h.Version))
}

// DatasetPath is the directory holding the extracted files of a pinned handle.
func (c *Cache) DatasetPath(h handle.Handle) string {
	return c.versionBase(h)
}

// MarkerPath is the completion marker of a pinned handle.
func (c *Cache) MarkerPath(h handle.Handle) string {
	return c.versionBase(h) + markerSuffix
}

// IncompletePath is where the archive of a pinned handle is downloaded.
func (c *Cache) IncompletePath(h handle.Handle) string {
	return c.versionBase(h) + incompleteSuffix
}

// LockPath is the lock file guarding a pinned handle.
func (c *Cache) LockPath(h handle.Handle) string {
	return c.versionBase(h) + lockSuffix
}

// EnsureVersionsDir creates the versions directory for h.
func (c *Cache) EnsureVersionsDir(h handle.Handle) error {
	dir := c.versionsPath(h)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// IsComplete reports whether the pinned handle has a completion marker and
// its directory still exists.
func (c *Cache) IsComplete(h handle.Handle) bool {
	if _, err := os.Stat(c.MarkerPath(h)); err != nil {
		return false
	}
	info, err := os.Stat(c.DatasetPath(h))
	return err == nil && info.IsDir()
}

// MarkComplete writes the completion marker for the pinned handle.
func (c *Cache) MarkComplete(h handle.Handle, rec types.DatasetVersion) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling marker: %w", err)
	}

	path := c.MarkerPath(h)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".marker-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing marker %s: %w", path, errors.Join(writeErr, closeErr))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming marker: %w", err)
	}
	return nil
}

// ReadMarker reads the completion marker for the pinned handle.
func (c *Cache) ReadMarker(h handle.Handle) (*types.DatasetVersion, error) {
	data, err := os.ReadFile(c.MarkerPath(h))
	if err != nil {
		return nil, err
	}
	var rec types.DatasetVersion
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing marker %s: %w", c.MarkerPath(h), err)
	}
	return &rec, nil
}

// completeVersions returns the version numbers of h with a marker, ascending.
func (c *Cache) completeVersions(h handle.Handle) ([]int, error) {
	entries, err := os.ReadDir(c.versionsPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}

	var versions []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), markerSuffix)
		if !ok || e.IsDir() {
			continue
		}
		v, err := strconv.Atoi(name)
		if err != nil || v < 1 {
			continue
		}
		if c.IsComplete(h.WithVersion(v)) {
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)
	return versions, nil
}

// LatestCached returns the highest complete cached version of h, or 0 when
// none is cached.
func (c *Cache) LatestCached(h handle.Handle) (int, error) {
	versions, err := c.completeVersions(h)
	if err != nil || len(versions) == 0 {
		return 0, err
	}
	return versions[len(versions)-1], nil
}

// Remove deletes the extracted files, marker, and partial archive of the
// pinned handle. The lock file is left in place.
func (c *Cache) Remove(h handle.Handle) error {
	if err := os.Remove(c.MarkerPath(h)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing marker: %w", err)
	}
	if err := os.RemoveAll(c.DatasetPath(h)); err != nil {
		return fmt.Errorf("removing dataset files: %w", err)
	}
	if err := os.Remove(c.IncompletePath(h)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing partial download: %w", err)
	}
	return nil
}

// Entry is one complete cached version.
type Entry struct {
	Handle handle.Handle
	Path   string
	Record *types.DatasetVersion
}

// List walks the cache and returns every complete version, sorted by handle
// then version.
func (c *Cache) List() ([]Entry, error) {
	root := filepath.Join(c.Root, datasetsDir)
	owners, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}

	var out []Entry
	for _, o := range owners {
		if !o.IsDir() {
			continue
		}
		datasets, err := os.ReadDir(filepath.Join(root, o.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading cache directory: %w", err)
		}
		for _, d := range datasets {
			if !d.IsDir() {
				continue
			}
			h := handle.Handle{Owner: o.Name(), Dataset: d.Name()}
			versions, err := c.completeVersions(h)
			if err != nil {
				return nil, err
			}
			for _, v := range versions {
				pinned := h.WithVersion(v)
				rec, _ := c.ReadMarker(pinned)
				out = append(out, Entry{Handle: pinned, Path: c.DatasetPath(pinned), Record: rec})
			}
		}
	}
	return out, nil
}
