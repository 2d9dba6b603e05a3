package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tsundoku/internal/catalog"
)

// SaveCacheSnapshot replaces the persisted cache snapshot with the given
// records. The whole replacement runs inside one transaction under the
// cross-process snapshot lock, so another process never reads a half-written
// snapshot.
func (s *Store) SaveCacheSnapshot(ctx context.Context, records []catalog.CacheRecord) error {
	ctx = ensureContext(ctx)
	if err := s.snapshotLock.Lock(); err != nil {
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}
	defer func() { _ = s.snapshotLock.Unlock() }()

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin snapshot tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM cache_snapshot"); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
		for _, rec := range records {
			entriesJSON, err := json.Marshal(rec.Entries)
			if err != nil {
				return fmt.Errorf("marshal entries for %q: %w", rec.Key, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO cache_snapshot (key, entries_json, fetched_at) VALUES (?, ?, ?)",
				rec.Key, string(entriesJSON), rec.FetchedAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("insert snapshot record %q: %w", rec.Key, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit snapshot: %w", err)
		}
		return nil
	})
}

// LoadCacheSnapshot reads every persisted cache record.
func (s *Store) LoadCacheSnapshot(ctx context.Context) ([]catalog.CacheRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, entries_json, fetched_at FROM cache_snapshot ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var records []catalog.CacheRecord
	for rows.Next() {
		var (
			rec         catalog.CacheRecord
			entriesJSON string
			fetchedAt   string
		)
		if err := rows.Scan(&rec.Key, &entriesJSON, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if err := json.Unmarshal([]byte(entriesJSON), &rec.Entries); err != nil {
			return nil, fmt.Errorf("unmarshal entries for %q: %w", rec.Key, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("parse fetched_at for %q: %w", rec.Key, err)
		}
		rec.FetchedAt = ts
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return records, nil
}
