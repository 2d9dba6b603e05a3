// Package filtering applies the system content filters and user-defined
// accept/skip rules to catalog results.
package filtering

import (
	"tsundoku/internal/catalog"
	"tsundoku/internal/config"
	"tsundoku/internal/titles"
)

// ApplySystemFilters strips non-included formats, then one-shot and adult
// entries per configuration. When a source entry is supplied, candidates hit
// by user skip rules are removed as well; without source context the user
// rules are not consulted.
func ApplySystemFilters(entries []catalog.CatalogEntry, filters config.Filters, source *catalog.SourceEntry) []catalog.CatalogEntry {
	included := make(map[catalog.Format]bool, len(filters.IncludedFormats))
	for _, f := range filters.IncludedFormats {
		included[catalog.Format(f)] = true
	}

	kept := make([]catalog.CatalogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Format != "" && len(included) > 0 && !included[entry.Format] {
			continue
		}
		if filters.IgnoreOneShots && entry.Format == catalog.FormatOneShot {
			continue
		}
		if filters.IgnoreAdultContent && entry.IsAdult {
			continue
		}
		if source != nil && matchedBySkipRule(filters.Rules, *source, entry) {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

// MarkAcceptRules flags surviving candidates matched by user accept rules so
// the confidence floor can be applied later. Skip rules always take precedence
// over accept rules for the same candidate, which holds by construction here
// because skip-matched candidates never survive ApplySystemFilters.
func MarkAcceptRules(candidates []catalog.MatchCandidate, filters config.Filters, source catalog.SourceEntry) []catalog.MatchCandidate {
	for i := range candidates {
		if ruleMatches(filters.Rules, config.RuleAccept, source, candidates[i].Entry) {
			candidates[i].AcceptRule = true
		}
	}
	return candidates
}

// ApplyConfidenceFloor raises the confidence of an accept-rule candidate to
// the configured minimum: the exact floor when one of the candidate's titles
// equals the source title, the lower floor otherwise. This is the single
// authoritative floor function; both the source orchestrator's cached-result
// path and batch compilation call it.
func ApplyConfidenceFloor(candidate catalog.MatchCandidate, sourceTitle string, matching config.Matching) catalog.MatchCandidate {
	if !candidate.AcceptRule {
		return candidate
	}
	floor := matching.AcceptRuleFloor
	if hasExactTitle(candidate.Entry, sourceTitle) {
		floor = matching.AcceptRuleFloorExact
	}
	if candidate.Confidence < floor {
		candidate.Confidence = floor
	}
	return candidate
}

func hasExactTitle(entry catalog.CatalogEntry, sourceTitle string) bool {
	want := titles.Normalize(sourceTitle)
	if want == "" {
		return false
	}
	for _, t := range entry.AllTitles() {
		if titles.Normalize(t) == want {
			return true
		}
	}
	return false
}

func matchedBySkipRule(rules []config.Rule, source catalog.SourceEntry, entry catalog.CatalogEntry) bool {
	return ruleMatches(rules, config.RuleSkip, source, entry)
}

// ruleMatches evaluates the user rule list against one candidate. A rule
// pinned to a catalog id matches that entry, optionally scoped to one source
// title; a title-only rule matches candidates known by that title.
func ruleMatches(rules []config.Rule, action config.RuleAction, source catalog.SourceEntry, entry catalog.CatalogEntry) bool {
	for _, rule := range rules {
		if rule.Action != action {
			continue
		}
		if rule.CatalogID != 0 {
			if entry.ID != rule.CatalogID {
				continue
			}
			if rule.Title != "" && titles.Normalize(rule.Title) != titles.Normalize(source.Title) {
				continue
			}
			return true
		}
		if rule.Title == "" {
			continue
		}
		want := titles.Normalize(rule.Title)
		for _, t := range entry.AllTitles() {
			if titles.Normalize(t) == want {
				return true
			}
		}
	}
	return false
}
