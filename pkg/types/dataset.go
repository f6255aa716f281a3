// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DatasetVersion describes one fully materialized dataset version in the
// cache. It is stored as the YAML body of the version's completion marker.
type DatasetVersion struct {
	// Handle is the canonical dataset handle without version suffix
	// (e.g. "olistbr/brazilian-ecommerce").
	Handle string `json:"handle" yaml:"handle"`

	// Version is the dataset version number on the host.
	Version int `json:"version" yaml:"version"`

	// Path is the local directory holding the extracted files.
	Path string `json:"path" yaml:"path"`

	// SourceURL is the URL the archive was downloaded from.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// ArchiveBytes is the size of the downloaded archive.
	ArchiveBytes int64 `json:"archive_bytes" yaml:"archive_bytes"`

	// MD5 is the hex digest of the archive when the host advertised one.
	MD5 string `json:"md5,omitempty" yaml:"md5,omitempty"`

	// Files lists the extracted files relative to Path.
	Files []string `json:"files" yaml:"files"`

	// CompletedAt is when extraction finished.
	CompletedAt time.Time `json:"completed_at" yaml:"completed_at"`
}

// FetchRecord is one row of the fetch history ledger.
type FetchRecord struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Version   int       `json:"version"`
	Path      string    `json:"path"`
	Bytes     int64     `json:"bytes"`
	CacheHit  bool      `json:"cache_hit"`
	FetchedAt time.Time `json:"fetched_at"`
}
