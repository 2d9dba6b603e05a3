// Package fallback defines the alternative catalog sources consulted when the
// primary catalog yields nothing.
package fallback

import (
	"context"
	"log/slog"

	"tsundoku/internal/catalog"
	"tsundoku/internal/config"
	"tsundoku/internal/fallback/comick"
	"tsundoku/internal/fallback/mangadex"
)

// Source is one alternative catalog. Search returns an empty slice when
// nothing matches; an empty result is not an error.
type Source interface {
	Name() string
	Search(ctx context.Context, title string, limit int) ([]catalog.CatalogEntry, error)
}

// FromConfig builds the enabled fallback sources in cascade order: MangaDex
// first, Comick second.
func FromConfig(cfg config.Fallbacks, logger *slog.Logger) []Source {
	sources := make([]Source, 0, 2)
	if cfg.MangaDexEnabled {
		sources = append(sources, mangadex.New(cfg.MangaDexBaseURL, cfg.TimeoutSeconds, logger))
	}
	if cfg.ComickEnabled {
		sources = append(sources, comick.New(cfg.ComickBaseURL, cfg.TimeoutSeconds, logger))
	}
	return sources
}
