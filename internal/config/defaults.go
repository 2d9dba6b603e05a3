package config

import (
	"os"
	"path/filepath"
)

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := "."
	logDir := "."
	if base, err := os.UserCacheDir(); err == nil {
		dataDir = filepath.Join(base, "tsundoku")
		logDir = filepath.Join(base, "tsundoku", "logs")
	}
	return &Config{
		Paths: Paths{
			DataDir: dataDir,
			LogDir:  logDir,
		},
		AniList: AniList{
			BaseURL:           "https://graphql.anilist.co",
			PerPage:           25,
			MaxResults:        50,
			RequestsPerMinute: 90,
			IDBatchLimit:      50,
			SearchGroupSize:   28,
			TimeoutSeconds:    30,
		},
		Fallbacks: Fallbacks{
			MangaDexEnabled: true,
			MangaDexBaseURL: "https://api.mangadex.org",
			ComickEnabled:   true,
			ComickBaseURL:   "https://api.comick.fun",
			ResultLimit:     10,
			TimeoutSeconds:  15,
		},
		Matching: Matching{
			CacheTTLHours:        24,
			ExactMatchThreshold:  0.97,
			MatchThreshold:       0.4,
			AcceptRuleFloorExact: 90,
			AcceptRuleFloor:      75,
			MinGroupDelayMS:      500,
			MaxGroupDelayMS:      10000,
			LowBudgetWatermark:   10,
			MidBudgetWatermark:   30,
		},
		Filters: Filters{
			IncludedFormats:    []string{"MANGA", "ONE_SHOT"},
			IgnoreOneShots:     false,
			IgnoreAdultContent: true,
		},
		Logging: Logging{
			Level:  "info",
			Format: "",
		},
	}
}

// applyFallbacks fills zero values that an explicit config file may have
// omitted.
func (c *Config) applyFallbacks() {
	def := Default()
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = def.Paths.DataDir
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = def.Paths.LogDir
	}
	if c.AniList.BaseURL == "" {
		c.AniList.BaseURL = def.AniList.BaseURL
	}
	if c.AniList.PerPage <= 0 {
		c.AniList.PerPage = def.AniList.PerPage
	}
	if c.AniList.MaxResults <= 0 {
		c.AniList.MaxResults = def.AniList.MaxResults
	}
	if c.AniList.RequestsPerMinute <= 0 {
		c.AniList.RequestsPerMinute = def.AniList.RequestsPerMinute
	}
	if c.AniList.IDBatchLimit <= 0 {
		c.AniList.IDBatchLimit = def.AniList.IDBatchLimit
	}
	if c.AniList.SearchGroupSize <= 0 {
		c.AniList.SearchGroupSize = def.AniList.SearchGroupSize
	}
	if c.AniList.TimeoutSeconds <= 0 {
		c.AniList.TimeoutSeconds = def.AniList.TimeoutSeconds
	}
	if c.Fallbacks.MangaDexBaseURL == "" {
		c.Fallbacks.MangaDexBaseURL = def.Fallbacks.MangaDexBaseURL
	}
	if c.Fallbacks.ComickBaseURL == "" {
		c.Fallbacks.ComickBaseURL = def.Fallbacks.ComickBaseURL
	}
	if c.Fallbacks.ResultLimit <= 0 {
		c.Fallbacks.ResultLimit = def.Fallbacks.ResultLimit
	}
	if c.Fallbacks.TimeoutSeconds <= 0 {
		c.Fallbacks.TimeoutSeconds = def.Fallbacks.TimeoutSeconds
	}
	if c.Matching.CacheTTLHours <= 0 {
		c.Matching.CacheTTLHours = def.Matching.CacheTTLHours
	}
	if c.Matching.ExactMatchThreshold <= 0 {
		c.Matching.ExactMatchThreshold = def.Matching.ExactMatchThreshold
	}
	if c.Matching.MatchThreshold <= 0 {
		c.Matching.MatchThreshold = def.Matching.MatchThreshold
	}
	if c.Matching.AcceptRuleFloorExact <= 0 {
		c.Matching.AcceptRuleFloorExact = def.Matching.AcceptRuleFloorExact
	}
	if c.Matching.AcceptRuleFloor <= 0 {
		c.Matching.AcceptRuleFloor = def.Matching.AcceptRuleFloor
	}
	if c.Matching.MinGroupDelayMS <= 0 {
		c.Matching.MinGroupDelayMS = def.Matching.MinGroupDelayMS
	}
	if c.Matching.MaxGroupDelayMS <= 0 {
		c.Matching.MaxGroupDelayMS = def.Matching.MaxGroupDelayMS
	}
	if c.Matching.LowBudgetWatermark <= 0 {
		c.Matching.LowBudgetWatermark = def.Matching.LowBudgetWatermark
	}
	if c.Matching.MidBudgetWatermark <= 0 {
		c.Matching.MidBudgetWatermark = def.Matching.MidBudgetWatermark
	}
	if len(c.Filters.IncludedFormats) == 0 {
		c.Filters.IncludedFormats = def.Filters.IncludedFormats
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}
