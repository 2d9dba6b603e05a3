package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tsundoku/internal/catalog"
)

// SaveMatchResults upserts the given results keyed by source entry id.
// Results are never deleted, only re-disposed, so an absent id is left alone.
func (s *Store) SaveMatchResults(ctx context.Context, results []catalog.MatchResult) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, result := range results {
		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result for entry %d: %w", result.SourceEntry.ID, err)
		}
		if err := s.execWithRetry(ctx,
			`INSERT INTO match_results (source_id, result_json, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(source_id) DO UPDATE SET result_json = excluded.result_json, updated_at = excluded.updated_at`,
			result.SourceEntry.ID, string(payload), now,
		); err != nil {
			return fmt.Errorf("upsert result for entry %d: %w", result.SourceEntry.ID, err)
		}
	}
	return nil
}

// LoadMatchResults reads every persisted match result ordered by source id.
func (s *Store) LoadMatchResults(ctx context.Context) ([]catalog.MatchResult, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT result_json FROM match_results ORDER BY source_id")
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []catalog.MatchResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		var result catalog.MatchResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}
	return results, nil
}

// SavePendingEntries replaces the persisted pending queue.
func (s *Store) SavePendingEntries(ctx context.Context, entries []catalog.SourceEntry) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin pending tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM pending_entries"); err != nil {
			return fmt.Errorf("clear pending entries: %w", err)
		}
		for _, entry := range entries {
			payload, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshal pending entry %d: %w", entry.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO pending_entries (source_id, entry_json, updated_at) VALUES (?, ?, ?)",
				entry.ID, string(payload), now,
			); err != nil {
				return fmt.Errorf("insert pending entry %d: %w", entry.ID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit pending entries: %w", err)
		}
		return nil
	})
}

// LoadPendingEntries reads the persisted pending queue ordered by source id.
func (s *Store) LoadPendingEntries(ctx context.Context) ([]catalog.SourceEntry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT entry_json FROM pending_entries ORDER BY source_id")
	if err != nil {
		return nil, fmt.Errorf("query pending entries: %w", err)
	}
	defer rows.Close()

	var entries []catalog.SourceEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		var entry catalog.SourceEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal pending entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending rows: %w", err)
	}
	return entries, nil
}
