// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"tsundoku/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithRules sets the user rule list on the test config.
func WithRules(rules ...config.Rule) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Filters.Rules = rules
	}
}

// WithGroupSize overrides the uncached search group size.
func WithGroupSize(size int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.AniList.SearchGroupSize = size
	}
}
