// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch obtains a dataset version in the local cache, downloading
// and extracting it when needed, and reports where its files live.
package fetch

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/dataset-fetcher/internal/cache"
	"github.com/pdiddy/dataset-fetcher/internal/handle"
	"github.com/pdiddy/dataset-fetcher/internal/kaggle"
	"github.com/pdiddy/dataset-fetcher/internal/metrics"
	"github.com/pdiddy/dataset-fetcher/pkg/types"
)

const (
	// DefaultDataset is the dataset the command line fetches.
	DefaultDataset = "olistbr/brazilian-ecommerce"

	// PathLabel prefixes the success line.
	PathLabel = "Path to dataset files:"
)

var (
	// ErrNotCached is returned when no network lookup is possible and the
	// cache holds no complete version of the dataset.
	ErrNotCached = errors.New("dataset not available in cache")

	// ErrIntegrity is returned when a downloaded archive does not match the
	// size or digest advertised by the host.
	ErrIntegrity = errors.New("download integrity check failed")

	// ErrForceOffline is returned when a forced download is asked for in
	// offline mode.
	ErrForceOffline = errors.New("force download is not possible offline")
)

// Options adjusts a single fetch.
type Options struct {
	ForceDownload bool
	Offline       bool
}

// Recorder stores fetch history.
type Recorder interface {
	Record(ctx context.Context, rec types.FetchRecord) (types.FetchRecord, error)
}

// Fetcher downloads datasets into a cache.
type Fetcher struct {
	Client *kaggle.Client
	Cache  *cache.Cache

	// Ledger and Metrics are optional.
	Ledger  Recorder
	Metrics *metrics.Metrics

	// Progress receives the download progress bar; nil disables it.
	Progress io.Writer

	Log zerolog.Logger

	now func() time.Time
}

// New returns a Fetcher for client and c that logs to log.
func New(client *kaggle.Client, c *cache.Cache, log zerolog.Logger) *Fetcher {
	return &Fetcher{Client: client, Cache: c, Log: log, now: time.Now}
}

// DatasetDownload makes the dataset identified by id available locally and
// returns the directory holding its files. An unpinned id resolves to the
// host's current version, or to the newest cached version when the host is
// unreachable or opts.Offline is set. A complete cached version is returned
// without touching the network unless opts.ForceDownload is set.
func (f *Fetcher) DatasetDownload(ctx context.Context, id string, opts Options) (path string, err error) {
	defer func() {
		if err != nil && f.Metrics != nil {
			f.Metrics.ObserveFailure()
		}
	}()

	if opts.Offline && opts.ForceDownload {
		return "", ErrForceOffline
	}

	h, err := handle.Parse(id)
	if err != nil {
		return "", err
	}

	h, err = f.resolveVersion(ctx, h, opts)
	if err != nil {
		return "", err
	}
	log := f.Log.With().Str("handle", h.String()).Logger()

	unlock, err := f.Cache.Lock(ctx, h)
	if err != nil {
		return "", err
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			log.Warn().Err(uerr).Msg("releasing cache lock")
		}
	}()

	path = f.Cache.DatasetPath(h)

	if f.Cache.IsComplete(h) && !opts.ForceDownload {
		log.Debug().Str("path", path).Msg("cache hit")
		var size int64
		if rec, err := f.Cache.ReadMarker(h); err == nil {
			size = rec.ArchiveBytes
		}
		if f.Metrics != nil {
			f.Metrics.ObserveCacheHit()
		}
		f.record(ctx, log, types.FetchRecord{Handle: h.Base(), Version: h.Version, Path: path, Bytes: size, CacheHit: true})
		return path, nil
	}

	if opts.ForceDownload {
		log.Info().Msg("force download, discarding cached copy")
		if err := f.Cache.Remove(h); err != nil {
			return "", err
		}
	}

	info, err := f.download(ctx, log, h)
	if err != nil {
		return "", err
	}

	archive := f.Cache.IncompletePath(h)
	files, err := cache.Extract(ctx, archive, path, info.FileName)
	if err != nil {
		return "", fmt.Errorf("extracting %s: %w", h, err)
	}
	if err := os.Remove(archive); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("removing downloaded archive")
	}

	rec := types.DatasetVersion{
		Handle:       h.Base(),
		Version:      h.Version,
		Path:         path,
		SourceURL:    info.URL,
		ArchiveBytes: info.Written,
		Files:        files,
		CompletedAt:  f.clock().UTC(),
	}
	if info.MD5 != nil {
		rec.MD5 = hex.EncodeToString(info.MD5)
	}
	if err := f.Cache.MarkComplete(h, rec); err != nil {
		return "", err
	}
	log.Info().
		Int("files", len(files)).
		Int64("bytes", info.Written).
		Int64("transferred", info.Transferred).
		Bool("resumed", info.Resumed).
		Str("path", path).
		Msg("dataset ready")

	if f.Metrics != nil {
		f.Metrics.ObserveDownload(info.Transferred)
	}
	f.record(ctx, log, types.FetchRecord{Handle: h.Base(), Version: h.Version, Path: path, Bytes: info.Written})
	return path, nil
}

// resolveVersion pins h to a concrete version.
func (f *Fetcher) resolveVersion(ctx context.Context, h handle.Handle, opts Options) (handle.Handle, error) {
	if h.IsVersioned() {
		if opts.Offline && !f.Cache.IsComplete(h) {
			return h, fmt.Errorf("%s: %w", h, ErrNotCached)
		}
		return h, nil
	}

	if !opts.Offline {
		v, err := f.Client.LatestVersion(ctx, h)
		if err == nil {
			f.Log.Debug().Str("handle", h.String()).Int("version", v).Msg("resolved latest version")
			return h.WithVersion(v), nil
		}
		if !kaggle.IsOffline(err) {
			return h, fmt.Errorf("resolving latest version of %s: %w", h, err)
		}
		f.Log.Warn().Err(err).Str("handle", h.String()).Msg("dataset host unreachable, using cached version")
	}

	v, err := f.Cache.LatestCached(h)
	if err != nil {
		return h, err
	}
	if v == 0 {
		return h, fmt.Errorf("%s: %w", h, ErrNotCached)
	}
	return h.WithVersion(v), nil
}

// download fetches the archive of the pinned handle into its partial path,
// resuming from whatever is already there, and verifies it.
func (f *Fetcher) download(ctx context.Context, log zerolog.Logger, h handle.Handle) (kaggle.DownloadInfo, error) {
	if err := f.Cache.EnsureVersionsDir(h); err != nil {
		return kaggle.DownloadInfo{}, err
	}
	partial := f.Cache.IncompletePath(h)
	file, err := os.OpenFile(partial, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return kaggle.DownloadInfo{}, fmt.Errorf("opening partial download: %w", err)
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return kaggle.DownloadInfo{}, fmt.Errorf("reading partial download: %w", err)
	}
	offset := st.Size()
	if offset > 0 {
		log.Info().Int64("offset", offset).Msg("resuming download")
	} else {
		log.Info().Msg("downloading")
	}

	var progress kaggle.Progress
	var bar *barProgress
	if f.Progress != nil {
		bar = newBarProgress(f.Progress, h.Base())
		progress = bar
	}

	info, err := f.Client.Download(ctx, h, h.Version, file, offset, progress)
	if bar != nil {
		bar.Finish()
	}
	closeErr := file.Close()
	if err != nil {
		// An empty file left by a failed first attempt is dropped; a
		// resumable prefix is kept for the next run.
		if offset == 0 && info.Written == 0 {
			os.Remove(partial)
		}
		return info, fmt.Errorf("downloading %s: %w", h, err)
	}
	if closeErr != nil {
		return info, fmt.Errorf("closing partial download: %w", closeErr)
	}

	if err := verify(partial, info); err != nil {
		os.Remove(partial)
		return info, fmt.Errorf("%s: %w", h, err)
	}
	return info, nil
}

// verify checks the archive at path against the size and MD5 advertised by
// the host. Checks the host did not advertise are skipped.
func verify(path string, info kaggle.DownloadInfo) error {
	if info.Total >= 0 && info.Written != info.Total {
		return fmt.Errorf("%w: received %d bytes, expected %d", ErrIntegrity, info.Written, info.Total)
	}
	if info.MD5 == nil {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive for verification: %w", err)
	}
	defer file.Close()

	h := md5.New()
	if _, err := io.Copy(h, file); err != nil {
		return fmt.Errorf("hashing archive: %w", err)
	}
	if sum := h.Sum(nil); !bytes.Equal(sum, info.MD5) {
		return fmt.Errorf("%w: md5 %s, expected %s", ErrIntegrity, hex.EncodeToString(sum), hex.EncodeToString(info.MD5))
	}
	return nil
}

// record writes rec to the ledger. Failures are logged, not returned.
func (f *Fetcher) record(ctx context.Context, log zerolog.Logger, rec types.FetchRecord) {
	if f.Ledger == nil {
		return
	}
	rec.FetchedAt = f.clock()
	if _, err := f.Ledger.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("recording fetch history")
	}
}

func (f *Fetcher) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

// FetchAndReport fetches id with opts and, on success only, writes the
// path line to w.
func (f *Fetcher) FetchAndReport(ctx context.Context, w io.Writer, id string, opts Options) error {
	path, err := f.DatasetDownload(ctx, id, opts)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s %s\n", PathLabel, path); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}
