// Package config loads and validates the TOML configuration that drives
// matching, filtering, and catalog access.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// AniList contains configuration for the primary catalog API.
type AniList struct {
	Token             string `toml:"token"`
	BaseURL           string `toml:"base_url"`
	PerPage           int    `toml:"per_page"`
	MaxResults        int    `toml:"max_results"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	IDBatchLimit      int    `toml:"id_batch_limit"`
	SearchGroupSize   int    `toml:"search_group_size"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// Fallbacks contains configuration for the alternative catalogs consulted
// when the primary yields nothing.
type Fallbacks struct {
	MangaDexEnabled bool   `toml:"mangadex_enabled"`
	MangaDexBaseURL string `toml:"mangadex_base_url"`
	ComickEnabled   bool   `toml:"comick_enabled"`
	ComickBaseURL   string `toml:"comick_base_url"`
	ResultLimit     int    `toml:"result_limit"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Matching contains thresholds and timing for the match orchestrators. The
// delay and watermark values are tuning constants, not load-bearing logic.
type Matching struct {
	CacheTTLHours        int     `toml:"cache_ttl_hours"`
	ExactMatchThreshold  float64 `toml:"exact_match_threshold"`
	MatchThreshold       float64 `toml:"match_threshold"`
	AcceptRuleFloorExact int     `toml:"accept_rule_floor_exact"`
	AcceptRuleFloor      int     `toml:"accept_rule_floor"`
	MinGroupDelayMS      int     `toml:"min_group_delay_ms"`
	MaxGroupDelayMS      int     `toml:"max_group_delay_ms"`
	LowBudgetWatermark   int     `toml:"low_budget_watermark"`
	MidBudgetWatermark   int     `toml:"mid_budget_watermark"`
}

// RuleAction distinguishes user-defined rule kinds.
type RuleAction string

const (
	RuleAccept RuleAction = "accept"
	RuleSkip   RuleAction = "skip"
)

// Rule is a user-defined accept or skip predicate, keyed by source title and
// optionally pinned to one catalog id.
type Rule struct {
	Title     string     `toml:"title"`
	CatalogID int64      `toml:"catalog_id"`
	Action    RuleAction `toml:"action"`
}

// Filters contains system content filters and the user rule list.
type Filters struct {
	IncludedFormats    []string `toml:"included_formats"`
	IgnoreOneShots     bool     `toml:"ignore_one_shots"`
	IgnoreAdultContent bool     `toml:"ignore_adult_content"`
	Rules              []Rule   `toml:"rules"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Paths     Paths     `toml:"paths"`
	AniList   AniList   `toml:"anilist"`
	Fallbacks Fallbacks `toml:"fallbacks"`
	Matching  Matching  `toml:"matching"`
	Filters   Filters   `toml:"filters"`
	Logging   Logging   `toml:"logging"`
}

// DefaultPath returns the standard configuration file location.
func DefaultPath() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "tsundoku", "config.toml")
	}
	return filepath.Join(".", "tsundoku.toml")
}

// Load reads the configuration file at path, applies defaults, and validates
// the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.applyFallbacks()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyFallbacks()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// CacheTTL returns the cache validity window.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Matching.CacheTTLHours) * time.Hour
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "tsundoku.db")
}

// MinGroupDelay returns the lower clamp for the adaptive inter-group delay.
func (c *Config) MinGroupDelay() time.Duration {
	return time.Duration(c.Matching.MinGroupDelayMS) * time.Millisecond
}

// MaxGroupDelay returns the upper clamp for the adaptive inter-group delay.
func (c *Config) MaxGroupDelay() time.Duration {
	return time.Duration(c.Matching.MaxGroupDelayMS) * time.Millisecond
}
