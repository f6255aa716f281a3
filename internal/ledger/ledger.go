// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a SQLite history of dataset fetches under the cache
// root at index/fetches.db.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/dataset-fetcher/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "fetches.db"

	defaultLimit = 20

	// timeFormat is fixed width so fetched_at sorts lexically.
	timeFormat = "2006-01-02T15:04:05.000000000Z"
)

// Ledger is the fetch history database.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger under cacheRoot/index/ and creates the
// schema if it does not exist.
func Open(cacheRoot string) (*Ledger, error) {
	dir := filepath.Join(cacheRoot, indexDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	l := &Ledger{db: db, now: time.Now}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS fetches (
			id TEXT PRIMARY KEY,
			handle TEXT NOT NULL,
			version INTEGER NOT NULL,
			path TEXT NOT NULL,
			bytes INTEGER NOT NULL DEFAULT 0,
			cache_hit INTEGER NOT NULL DEFAULT 0,
			fetched_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetches_handle ON fetches(handle)`,
		`CREATE INDEX IF NOT EXISTS idx_fetches_fetched_at ON fetches(fetched_at)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores one fetch. Empty ID and zero FetchedAt are filled in; the
// stored record is returned.
func (l *Ledger) Record(ctx context.Context, rec types.FetchRecord) (types.FetchRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = l.now()
	}
	rec.FetchedAt = rec.FetchedAt.UTC()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO fetches (id, handle, version, path, bytes, cache_hit, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Handle, rec.Version, rec.Path, rec.Bytes, rec.CacheHit,
		rec.FetchedAt.Format(timeFormat),
	)
	if err != nil {
		return rec, fmt.Errorf("inserting fetch record: %w", err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. A limit of 0 or less uses
// the default (20).
func (l *Ledger) List(ctx context.Context, limit int) ([]types.FetchRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, handle, version, path, bytes, cache_hit, fetched_at
		 FROM fetches ORDER BY fetched_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fetches: %w", err)
	}
	defer rows.Close()

	var out []types.FetchRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fetches: %w", err)
	}
	return out, nil
}

// ErrNotFound is returned by Latest when the handle was never fetched.
var ErrNotFound = errors.New("no fetch recorded")

// Latest returns the most recent record for handle.
func (l *Ledger) Latest(ctx context.Context, handle string) (types.FetchRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, handle, version, path, bytes, cache_hit, fetched_at
		 FROM fetches WHERE handle = ? ORDER BY fetched_at DESC, rowid DESC LIMIT 1`, handle)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.FetchRecord{}, fmt.Errorf("%s: %w", handle, ErrNotFound)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (types.FetchRecord, error) {
	var (
		rec       types.FetchRecord
		fetchedAt string
	)
	if err := s.Scan(&rec.ID, &rec.Handle, &rec.Version, &rec.Path, &rec.Bytes, &rec.CacheHit, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scanning fetch record: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return rec, fmt.Errorf("parsing fetched_at %q: %w", fetchedAt, err)
	}
	rec.FetchedAt = t
	return rec, nil
}
