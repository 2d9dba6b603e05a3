// Package search executes single-title searches: cache consultation, the
// paginated primary-catalog query, ranking and filtering, and the fallback
// cascade to alternative catalogs when the primary yields nothing.
package search

import (
	"context"
	"log/slog"
	"time"

	"tsundoku/internal/anilist"
	"tsundoku/internal/catalog"
	"tsundoku/internal/config"
	"tsundoku/internal/fallback"
	"tsundoku/internal/filtering"
	"tsundoku/internal/logging"
	"tsundoku/internal/matchcache"
	"tsundoku/internal/services"
)

const component = "search"

// Options controls one search invocation.
type Options struct {
	// Bypass forces a fresh remote fetch. The cached record for the title is
	// deleted, not just ignored, so a stale record cannot leak into a later
	// automatic read.
	Bypass bool
	// Page, when positive, requests exactly that result page with no
	// pagination loop.
	Page int
	// Source supplies reading-list context: with it, user skip rules apply
	// and accept-rule candidates get their confidence floor.
	Source *catalog.SourceEntry
}

// Orchestrator runs single-title searches against the primary catalog with
// the fallback cascade behind it. Safe for concurrent use; the rate permit
// pool lives inside the catalog client, so every page fetch from any caller
// draws from the same budget.
type Orchestrator struct {
	cfg       *config.Config
	client    anilist.Searcher
	cache     *matchcache.Cache
	fallbacks []fallback.Source
	logger    *slog.Logger
}

// New creates a search orchestrator.
func New(cfg *config.Config, client anilist.Searcher, cache *matchcache.Cache, fallbacks []fallback.Source, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		client:    client,
		cache:     cache,
		fallbacks: fallbacks,
		logger:    logging.NewComponentLogger(logger, component),
	}
}

// Search runs the full single-title state machine and returns ranked
// candidates, best first. An empty result is not an error. Network and
// response-shape errors propagate; there is no silent partial-page return.
func (o *Orchestrator) Search(ctx context.Context, title string, opts Options) ([]catalog.MatchCandidate, error) {
	key := matchcache.Key(title)
	if key == "" {
		return nil, services.Wrap(services.ErrValidation, component, "search", "title must not be empty", nil)
	}

	if opts.Bypass {
		o.cache.Delete(key)
	} else if rec, ok := o.cache.Get(key); ok {
		// Filters and confidence are recomputed fresh at read time because
		// filter configuration may have changed since the write.
		o.logger.Debug("cache hit", logging.String("key", key))
		entries := filtering.ApplySystemFilters(rec.Entries, o.cfg.Filters, opts.Source)
		return o.Compile(entries, nil, title, opts.Source), nil
	}

	raw, err := o.fetchPages(ctx, title, opts.Page)
	if err != nil {
		return nil, err
	}

	entries := o.ProcessRaw(raw, title, opts.Source)

	provenance := map[int64]string{}
	if len(entries) == 0 {
		entries, err = o.cascadeFallbacks(ctx, title, opts.Source, provenance)
		if err != nil {
			return nil, err
		}
	}

	candidates := o.Compile(entries, provenance, title, opts.Source)

	if !opts.Bypass {
		cached := make([]catalog.CatalogEntry, 0, len(candidates))
		for _, c := range candidates {
			cached = append(cached, c.Entry)
		}
		o.cache.Set(key, cached)
	}
	return candidates, nil
}

// MatchSingle searches for one source entry and wraps the outcome as a
// pending MatchResult.
func (o *Orchestrator) MatchSingle(ctx context.Context, entry catalog.SourceEntry, opts Options) (catalog.MatchResult, error) {
	opts.Source = &entry
	candidates, err := o.Search(ctx, entry.Title, opts)
	if err != nil {
		return catalog.MatchResult{}, err
	}
	return catalog.MatchResult{
		SourceEntry: entry,
		Candidates:  candidates,
		Disposition: catalog.DispositionPending,
		MatchedAt:   time.Now().UTC(),
	}, nil
}

// Preload warms the cache for a set of titles. Titles with a valid cached
// record are skipped; individual search failures are logged and absorbed so
// one bad title does not abort the warm-up. Cancellation propagates.
func (o *Orchestrator) Preload(ctx context.Context, titles []string) error {
	for _, title := range titles {
		key := matchcache.Key(title)
		if key == "" || o.cache.IsValid(key) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCanceled, component, "preload", "canceled", err)
		}
		if _, err := o.Search(ctx, title, Options{}); err != nil {
			if services.IsCancellation(err) {
				return err
			}
			o.logger.Warn("preload search failed",
				logging.String("title", title),
				logging.Error(err))
		}
	}
	return nil
}

// fetchPages runs the pagination loop. A single requested page short-circuits
// the loop; otherwise pages accumulate until the catalog reports no next page
// or the configured result cap is reached.
func (o *Orchestrator) fetchPages(ctx context.Context, title string, singlePage int) ([]catalog.CatalogEntry, error) {
	page := 1
	if singlePage > 0 {
		page = singlePage
	}

	var accumulated []catalog.CatalogEntry
	for {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrCanceled, component, "fetch_pages", "canceled", err)
		}
		result, err := o.client.SearchPage(ctx, title, page)
		if err != nil {
			return nil, err
		}
		accumulated = append(accumulated, result.Entries...)

		if singlePage > 0 {
			return accumulated, nil
		}
		if !result.PageInfo.HasNextPage || len(accumulated) >= o.cfg.AniList.MaxResults {
			return accumulated, nil
		}
		page++
	}
}

// cascadeFallbacks queries the alternative catalogs sequentially, merging
// hits deduplicated by entry id with provenance recorded per source. A
// failing source is logged and skipped; cancellation propagates.
func (o *Orchestrator) cascadeFallbacks(ctx context.Context, title string, source *catalog.SourceEntry, provenance map[int64]string) ([]catalog.CatalogEntry, error) {
	var merged []catalog.CatalogEntry
	seen := map[int64]bool{}

	for _, src := range o.fallbacks {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrCanceled, component, "fallback", "canceled", err)
		}
		hits, err := src.Search(ctx, title, o.cfg.Fallbacks.ResultLimit)
		if err != nil {
			if services.IsCancellation(err) {
				return nil, err
			}
			o.logger.Warn("fallback source failed",
				logging.String("source", src.Name()),
				logging.String("title", title),
				logging.Error(err))
			continue
		}
		hits = filtering.ApplySystemFilters(hits, o.cfg.Filters, source)
		for _, hit := range hits {
			if seen[hit.ID] {
				continue
			}
			seen[hit.ID] = true
			provenance[hit.ID] = src.Name()
			merged = append(merged, hit)
		}
	}
	return merged, nil
}
