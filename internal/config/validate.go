package config

import (
	"fmt"
	"net/url"
	"strings"

	"tsundoku/internal/services"
)

// Validate checks the configuration for values the orchestrators cannot work
// with. It returns a configuration-classified error on the first problem.
func (c *Config) Validate() error {
	if err := validateURL("anilist.base_url", c.AniList.BaseURL); err != nil {
		return err
	}
	if c.Fallbacks.MangaDexEnabled {
		if err := validateURL("fallbacks.mangadex_base_url", c.Fallbacks.MangaDexBaseURL); err != nil {
			return err
		}
	}
	if c.Fallbacks.ComickEnabled {
		if err := validateURL("fallbacks.comick_base_url", c.Fallbacks.ComickBaseURL); err != nil {
			return err
		}
	}
	if c.AniList.IDBatchLimit > 50 {
		return services.Wrap(services.ErrConfiguration, "config", "anilist.id_batch_limit",
			"exceeds the API per-request id limit of 50", nil)
	}
	if c.Matching.ExactMatchThreshold < c.Matching.MatchThreshold {
		return services.Wrap(services.ErrConfiguration, "config", "matching",
			"exact_match_threshold must not be below match_threshold", nil)
	}
	if c.Matching.ExactMatchThreshold > 1 || c.Matching.MatchThreshold > 1 {
		return services.Wrap(services.ErrConfiguration, "config", "matching",
			"thresholds are 0-1 scores", nil)
	}
	if c.Matching.MinGroupDelayMS > c.Matching.MaxGroupDelayMS {
		return services.Wrap(services.ErrConfiguration, "config", "matching",
			"min_group_delay_ms exceeds max_group_delay_ms", nil)
	}
	if c.Matching.AcceptRuleFloor > c.Matching.AcceptRuleFloorExact {
		return services.Wrap(services.ErrConfiguration, "config", "matching",
			"accept_rule_floor exceeds accept_rule_floor_exact", nil)
	}
	for i, rule := range c.Filters.Rules {
		if strings.TrimSpace(rule.Title) == "" && rule.CatalogID == 0 {
			return services.Wrap(services.ErrConfiguration, "config",
				fmt.Sprintf("filters.rules[%d]", i), "rule needs a title or a catalog_id", nil)
		}
		if rule.Action != RuleAccept && rule.Action != RuleSkip {
			return services.Wrap(services.ErrConfiguration, "config",
				fmt.Sprintf("filters.rules[%d]", i), fmt.Sprintf("unknown action %q", rule.Action), nil)
		}
	}
	return nil
}

func validateURL(field, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return services.Wrap(services.ErrConfiguration, "config", field,
			fmt.Sprintf("not a valid URL: %q", value), err)
	}
	return nil
}
