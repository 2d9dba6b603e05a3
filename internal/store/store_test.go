package store

import (
	"context"
	"testing"
	"time"

	"tsundoku/internal/catalog"
	"tsundoku/internal/config"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCacheSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []catalog.CacheRecord{
		{
			Key: "berserk",
			Entries: []catalog.CatalogEntry{
				{ID: 1, Title: catalog.Title{English: "Berserk"}, Format: catalog.FormatManga},
			},
			FetchedAt: time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
		},
		{
			Key:       "vinland saga",
			Entries:   nil,
			FetchedAt: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		},
	}
	if err := s.SaveCacheSnapshot(ctx, records); err != nil {
		t.Fatalf("SaveCacheSnapshot failed: %v", err)
	}

	loaded, err := s.LoadCacheSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadCacheSnapshot failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("record count = %d, want 2", len(loaded))
	}
	if loaded[0].Key != "berserk" || len(loaded[0].Entries) != 1 || loaded[0].Entries[0].ID != 1 {
		t.Errorf("first record wrong: %+v", loaded[0])
	}
	if !loaded[0].FetchedAt.Equal(records[0].FetchedAt) {
		t.Errorf("timestamp lost precision: %v vs %v", loaded[0].FetchedAt, records[0].FetchedAt)
	}

	// A second save replaces, not appends.
	if err := s.SaveCacheSnapshot(ctx, records[:1]); err != nil {
		t.Fatalf("second SaveCacheSnapshot failed: %v", err)
	}
	loaded, err = s.LoadCacheSnapshot(ctx)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("snapshot not replaced: %d records", len(loaded))
	}
}

func TestMatchResultsUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := catalog.SourceEntry{ID: 7, Title: "Berserk", Status: catalog.StatusReading}
	result := catalog.MatchResult{
		SourceEntry: entry,
		Candidates: []catalog.MatchCandidate{
			{Entry: catalog.CatalogEntry{ID: 1, Title: catalog.Title{English: "Berserk"}}, Confidence: 99},
		},
		Disposition: catalog.DispositionPending,
		MatchedAt:   time.Now().UTC(),
	}
	if err := s.SaveMatchResults(ctx, []catalog.MatchResult{result}); err != nil {
		t.Fatalf("SaveMatchResults failed: %v", err)
	}

	// Re-dispose and save again: same row, new state.
	selected := result.Candidates[0].Entry
	result.Disposition = catalog.DispositionMatched
	result.SelectedMatch = &selected
	if err := s.SaveMatchResults(ctx, []catalog.MatchResult{result}); err != nil {
		t.Fatalf("second SaveMatchResults failed: %v", err)
	}

	loaded, err := s.LoadMatchResults(ctx)
	if err != nil {
		t.Fatalf("LoadMatchResults failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("result count = %d, want 1", len(loaded))
	}
	if loaded[0].Disposition != catalog.DispositionMatched {
		t.Errorf("disposition = %s, want matched", loaded[0].Disposition)
	}
	if loaded[0].SelectedMatch == nil || loaded[0].SelectedMatch.ID != 1 {
		t.Errorf("selected match lost: %+v", loaded[0].SelectedMatch)
	}
	if !loaded[0].Valid() {
		t.Error("loaded result violates disposition invariant")
	}
}

func TestPendingEntriesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries := []catalog.SourceEntry{
		{ID: 2, Title: "Vinland Saga", Status: catalog.StatusCompleted, ChaptersRead: 200},
		{ID: 1, Title: "Berserk", Status: catalog.StatusReading},
	}
	if err := s.SavePendingEntries(ctx, entries); err != nil {
		t.Fatalf("SavePendingEntries failed: %v", err)
	}

	loaded, err := s.LoadPendingEntries(ctx)
	if err != nil {
		t.Fatalf("LoadPendingEntries failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("entry count = %d, want 2", len(loaded))
	}
	// Ordered by source id on read.
	if loaded[0].ID != 1 || loaded[1].ID != 2 {
		t.Errorf("entries not ordered by id: %+v", loaded)
	}
	if loaded[1].ChaptersRead != 200 {
		t.Errorf("progress lost: %+v", loaded[1])
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.execWithRetry(context.Background(),
		"UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := Open(cfg); err == nil {
		t.Fatal("expected schema mismatch error")
	}
}
