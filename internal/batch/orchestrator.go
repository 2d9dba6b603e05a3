// Package batch drives matching for an entire reading list: categorization
// into cached/known-id/uncached entries, grouped remote dispatch, per-miss
// fallback searches, and compilation of results in input order with
// cooperative cancellation.
package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tsundoku/internal/anilist"
	"tsundoku/internal/catalog"
	"tsundoku/internal/config"
	"tsundoku/internal/filtering"
	"tsundoku/internal/logging"
	"tsundoku/internal/matchcache"
	"tsundoku/internal/search"
	"tsundoku/internal/services"
)

const component = "batch"

// Progress is one progress event. Events are deduplicated by Index: every
// index is reported at most once per run, regardless of which phase resolved
// it.
type Progress struct {
	RunID     string
	Index     int
	Total     int
	Completed int
	Title     string
}

// ProgressFunc receives progress events. Called synchronously from the run.
type ProgressFunc func(Progress)

// Options controls one batch run.
type Options struct {
	// Bypass marks every entry uncached and forces fresh remote searches.
	Bypass bool
	// Progress, when set, receives one event per resolved entry.
	Progress ProgressFunc
	// ShouldCancel is an optional cancellation predicate consulted alongside
	// the context at every suspension point.
	ShouldCancel func() bool
}

// Orchestrator runs batch matching. One batch run is sequential; the fallback
// searches within it are deliberately one-at-a-time to respect the remote
// rate policy, while batched multi-alias queries cost one request regardless
// of group size.
type Orchestrator struct {
	cfg      *config.Config
	client   anilist.Searcher
	cache    *matchcache.Cache
	searcher *search.Orchestrator
	logger   *slog.Logger

	// sleep is replaceable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a batch orchestrator.
func New(cfg *config.Config, client anilist.Searcher, cache *matchcache.Cache, searcher *search.Orchestrator, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		client:   client,
		cache:    cache,
		searcher: searcher,
		logger:   logging.NewComponentLogger(logger, component),
		sleep:    sleepCtx,
	}
}

// runState is the working state of one batch run, discarded on completion.
type runState struct {
	runID     string
	total     int
	entries   map[int][]catalog.CatalogEntry
	prov      map[int]map[int64]string
	resolved  map[int]bool
	reported  map[int]bool
	uncached  []int
	knownID   []int
	canceled  bool
	completed int
}

// MatchBatch matches every source entry and returns one MatchResult per
// entry in input order. Cancellation yields the results derivable from
// entries resolved so far; it never surfaces as an error from this call.
func (o *Orchestrator) MatchBatch(ctx context.Context, entries []catalog.SourceEntry, opts Options) ([]catalog.MatchResult, error) {
	state := &runState{
		runID:    uuid.NewString(),
		total:    len(entries),
		entries:  make(map[int][]catalog.CatalogEntry),
		prov:     make(map[int]map[int64]string),
		resolved: make(map[int]bool),
		reported: make(map[int]bool),
	}
	ctx = services.WithRunID(ctx, state.runID)
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("batch run starting",
		logging.Int("entry_count", len(entries)),
		logging.Bool("bypass", opts.Bypass))

	o.categorize(entries, opts, state)
	if !state.canceled {
		o.knownIDPhase(ctx, entries, opts, state)
	}
	if !state.canceled {
		o.uncachedPhase(ctx, entries, opts, state)
	}

	results := o.compile(entries, state)
	logger.Info("batch run finished",
		logging.Int("result_count", len(results)),
		logging.Int("unresolved_count", unresolvedCount(results)),
		logging.Bool("canceled", state.canceled))
	return results, nil
}

// categorize splits entries into cache-resolved, known-id, and uncached.
// Cache hits resolve immediately with progress reported synchronously.
func (o *Orchestrator) categorize(entries []catalog.SourceEntry, opts Options, state *runState) {
	for i, entry := range entries {
		if opts.Bypass {
			state.uncached = append(state.uncached, i)
			continue
		}
		if entry.CatalogID != 0 {
			state.knownID = append(state.knownID, i)
			continue
		}
		if rec, ok := o.cache.Get(matchcache.Key(entry.Title)); ok {
			state.entries[i] = rec.Entries
			o.resolve(i, entry, opts, state)
			continue
		}
		state.uncached = append(state.uncached, i)
	}
}

// knownIDPhase fetches entries with a known catalog id in API-cap-sized
// groups. Unmatched ids are rerouted into the uncached queue for title
// search; a failing group is rerouted whole.
func (o *Orchestrator) knownIDPhase(ctx context.Context, entries []catalog.SourceEntry, opts Options, state *runState) {
	limit := o.cfg.AniList.IDBatchLimit
	if limit <= 0 || limit > anilist.IDBatchLimit {
		limit = anilist.IDBatchLimit
	}

	for start := 0; start < len(state.knownID); start += limit {
		if o.cancelRequested(ctx, opts) {
			state.canceled = true
			return
		}
		group := state.knownID[start:min(start+limit, len(state.knownID))]
		ids := make([]int64, 0, len(group))
		for _, idx := range group {
			ids = append(ids, entries[idx].CatalogID)
		}

		hits, err := o.client.FetchByIDs(ctx, ids)
		if err != nil {
			if services.IsCancellation(err) {
				state.canceled = true
				return
			}
			o.logger.Warn("id fetch failed, rerouting group to title search",
				logging.String("run_id", state.runID),
				logging.Int("group_size", len(group)),
				logging.Error(err))
			state.uncached = append(state.uncached, group...)
			continue
		}

		byID := make(map[int64]catalog.CatalogEntry, len(hits))
		for _, hit := range hits {
			byID[hit.ID] = hit
		}
		for _, idx := range group {
			entry := entries[idx]
			hit, ok := byID[entry.CatalogID]
			if !ok {
				state.uncached = append(state.uncached, idx)
				continue
			}
			state.entries[idx] = []catalog.CatalogEntry{hit}
			o.cache.Set(matchcache.Key(entry.Title), []catalog.CatalogEntry{hit})
			o.resolve(idx, entry, opts, state)
		}
	}
}

// uncachedPhase partitions the remaining entries into groups, issues one
// batched multi-alias query per group, and funnels misses into a sequential
// per-entry fallback search. Group errors other than cancellation are
// absorbed: affected entries resolve empty and the run proceeds. The adaptive
// inter-group delay is skipped after the final group.
func (o *Orchestrator) uncachedPhase(ctx context.Context, entries []catalog.SourceEntry, opts Options, state *runState) {
	groupSize := o.cfg.AniList.SearchGroupSize
	if groupSize <= 0 {
		groupSize = 28
	}

	for start := 0; start < len(state.uncached); start += groupSize {
		if o.cancelRequested(ctx, opts) {
			state.canceled = true
			return
		}
		group := state.uncached[start:min(start+groupSize, len(state.uncached))]

		titles := make([]string, 0, len(group))
		for _, idx := range group {
			titles = append(titles, entries[idx].Title)
		}

		batched, err := o.client.SearchBatched(ctx, titles)
		if err != nil {
			if services.IsCancellation(err) {
				state.canceled = true
				return
			}
			o.logger.Warn("batched search failed, group resolves empty",
				logging.String("run_id", state.runID),
				logging.Int("group_size", len(group)),
				logging.Error(err))
			for _, idx := range group {
				o.resolve(idx, entries[idx], opts, state)
			}
			continue
		}

		var misses []int
		for _, idx := range group {
			entry := entries[idx]
			processed := o.searcher.ProcessRaw(batched[entry.Title], entry.Title, &entry)
			if len(processed) == 0 {
				misses = append(misses, idx)
				continue
			}
			state.entries[idx] = processed
			o.cache.Set(matchcache.Key(entry.Title), processed)
			o.resolve(idx, entry, opts, state)
		}

		if o.fallbackMisses(ctx, entries, misses, opts, state); state.canceled {
			return
		}

		if start+groupSize < len(state.uncached) {
			hint := o.client.BudgetHint()
			delay := adaptiveDelay(o.cfg, len(group), hint)
			o.logger.Debug("inter-group delay",
				logging.String("run_id", state.runID),
				logging.Duration("delay", delay),
				logging.Int("budget_hint", hint))
			if err := o.sleep(ctx, delay); err != nil {
				state.canceled = true
				return
			}
		}
	}
}

// fallbackMisses runs the one-at-a-time fallback search for group members the
// batched query could not resolve. Search failures other than cancellation
// resolve the entry empty.
func (o *Orchestrator) fallbackMisses(ctx context.Context, entries []catalog.SourceEntry, misses []int, opts Options, state *runState) {
	for _, idx := range misses {
		if o.cancelRequested(ctx, opts) {
			state.canceled = true
			return
		}
		entry := entries[idx]
		entryCtx := services.WithEntryID(ctx, entry.ID)
		// Bypass carries through so a miss never resolves from a stale record.
		candidates, err := o.searcher.Search(entryCtx, entry.Title, search.Options{
			Bypass: opts.Bypass,
			Source: &entry,
		})
		if err != nil {
			if services.IsCancellation(err) {
				state.canceled = true
				return
			}
			logging.WithContext(entryCtx, o.logger).Warn("fallback search failed, entry resolves empty",
				logging.String("title", entry.Title),
				logging.Error(err))
			o.resolve(idx, entry, opts, state)
			continue
		}
		resolved := make([]catalog.CatalogEntry, 0, len(candidates))
		prov := make(map[int64]string)
		for _, c := range candidates {
			resolved = append(resolved, c.Entry)
			if c.Source != "" {
				prov[c.Entry.ID] = c.Source
			}
		}
		state.entries[idx] = resolved
		state.prov[idx] = prov
		o.resolve(idx, entry, opts, state)
	}
}

// compile builds one MatchResult per source entry in input order. After a
// canceled run only entries resolved before cancellation are compiled.
func (o *Orchestrator) compile(entries []catalog.SourceEntry, state *runState) []catalog.MatchResult {
	now := time.Now().UTC()
	results := make([]catalog.MatchResult, 0, len(entries))
	for i, entry := range entries {
		if state.canceled && !state.resolved[i] {
			continue
		}
		filtered := filtering.ApplySystemFilters(state.entries[i], o.cfg.Filters, &entry)
		results = append(results, catalog.MatchResult{
			SourceEntry: entry,
			Candidates:  o.searcher.Compile(filtered, state.prov[i], entry.Title, &entry),
			Disposition: catalog.DispositionPending,
			MatchedAt:   now,
		})
	}
	return results
}

// resolve marks an index done and reports progress exactly once for it.
func (o *Orchestrator) resolve(idx int, entry catalog.SourceEntry, opts Options, state *runState) {
	if state.resolved[idx] {
		return
	}
	state.resolved[idx] = true
	state.completed++
	if opts.Progress == nil || state.reported[idx] {
		return
	}
	state.reported[idx] = true
	opts.Progress(Progress{
		RunID:     state.runID,
		Index:     idx,
		Total:     state.total,
		Completed: state.completed,
		Title:     entry.Title,
	})
}

func (o *Orchestrator) cancelRequested(ctx context.Context, opts Options) bool {
	if ctx.Err() != nil {
		return true
	}
	return opts.ShouldCancel != nil && opts.ShouldCancel()
}

func unresolvedCount(results []catalog.MatchResult) int {
	n := 0
	for _, r := range results {
		if len(r.Candidates) == 0 {
			n++
		}
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
