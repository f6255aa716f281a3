// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the fetch counters and writes them in the
// node-exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "dataset_fetcher"

	LabelResult = "result"

	ResultDownloaded = "downloaded"
	ResultCached     = "cached"
	ResultFailed     = "failed"
)

// Metrics is a registry with the fetch counters registered on it.
type Metrics struct {
	Registry *prometheus.Registry

	Downloads     *prometheus.CounterVec
	DownloadBytes prometheus.Counter
	CacheHits     prometheus.Counter
}

// New returns a fresh registry with every counter registered.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "downloads_total",
			Namespace: Namespace,
			Help:      "number of dataset fetches by result",
		}, []string{LabelResult}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "download_bytes_total",
			Namespace: Namespace,
			Help:      "archive bytes transferred from the dataset host",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "cache_hits_total",
			Namespace: Namespace,
			Help:      "number of fetches served from the local cache",
		}),
	}
	m.Registry.MustRegister(m.Downloads, m.DownloadBytes, m.CacheHits)
	return m
}

// ObserveDownload counts a completed fetch that received n bytes from the host.
func (m *Metrics) ObserveDownload(n int64) {
	m.Downloads.WithLabelValues(ResultDownloaded).Inc()
	if n > 0 {
		m.DownloadBytes.Add(float64(n))
	}
}

// ObserveCacheHit counts a fetch answered from the cache.
func (m *Metrics) ObserveCacheHit() {
	m.Downloads.WithLabelValues(ResultCached).Inc()
	m.CacheHits.Inc()
}

// ObserveFailure counts a failed fetch.
func (m *Metrics) ObserveFailure() {
	m.Downloads.WithLabelValues(ResultFailed).Inc()
}

// WriteTextfile writes the registry to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
