package main

import (
	"context"
	"fmt"
	"log/slog"

	"tsundoku/internal/anilist"
	"tsundoku/internal/batch"
	"tsundoku/internal/config"
	"tsundoku/internal/fallback"
	"tsundoku/internal/logging"
	"tsundoku/internal/matchcache"
	"tsundoku/internal/search"
	"tsundoku/internal/store"
)

// engine bundles the long-lived components a matching command needs: the
// persistent store, the title cache warmed from its persisted snapshot, and
// the search and batch orchestrators sharing one catalog client.
type engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	cache    *matchcache.Cache
	searcher *search.Orchestrator
	batcher  *batch.Orchestrator
}

func (c *commandContext) openEngine(ctx context.Context) (*engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cache := matchcache.New(cfg.CacheTTL(), logger)
	snapshot, err := st.LoadCacheSnapshot(ctx)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load cache snapshot: %w", err)
	}
	cache.SyncFromPersisted(snapshot)

	client, err := anilist.New(cfg.AniList, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create catalog client: %w", err)
	}
	sources := fallback.FromConfig(cfg.Fallbacks, logger)

	searcher := search.New(cfg, client, cache, sources, logger)
	batcher := batch.New(cfg, client, cache, searcher, logger)

	return &engine{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		cache:    cache,
		searcher: searcher,
		batcher:  batcher,
	}, nil
}

// Close persists the cache snapshot and releases the store. A fresh context
// is used so an interrupted command still gets its snapshot written.
func (e *engine) Close() error {
	saveErr := e.store.SaveCacheSnapshot(context.Background(), e.cache.Snapshot())
	closeErr := e.store.Close()
	if saveErr != nil {
		return fmt.Errorf("save cache snapshot: %w", saveErr)
	}
	return closeErr
}
