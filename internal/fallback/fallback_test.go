package fallback

import (
	"testing"

	"tsundoku/internal/config"
)

func TestFromConfigHonorsToggles(t *testing.T) {
	cfg := config.Default().Fallbacks

	sources := FromConfig(cfg, nil)
	if len(sources) != 2 {
		t.Fatalf("source count = %d, want 2", len(sources))
	}
	if sources[0].Name() != "mangadex" || sources[1].Name() != "comick" {
		t.Errorf("cascade order wrong: %s, %s", sources[0].Name(), sources[1].Name())
	}

	cfg.MangaDexEnabled = false
	sources = FromConfig(cfg, nil)
	if len(sources) != 1 || sources[0].Name() != "comick" {
		t.Errorf("mangadex toggle not honored: %v", sources)
	}

	cfg.ComickEnabled = false
	if sources = FromConfig(cfg, nil); len(sources) != 0 {
		t.Errorf("all sources disabled should yield none: %v", sources)
	}
}
