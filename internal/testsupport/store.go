package testsupport

import (
	"testing"

	"tsundoku/internal/config"
	"tsundoku/internal/store"
)

// NewStore opens a throwaway store backed by a per-test temp directory.
func NewStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	if cfg == nil {
		cfg = NewConfig(t)
	}
	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
