package search

import (
	"sort"

	"tsundoku/internal/catalog"
	"tsundoku/internal/filtering"
	"tsundoku/internal/scoring"
)

// ProcessRaw turns raw catalog results into the post-filter, post-rank entry
// list: scoring thresholds, system filters, and the capped raw-subset escape
// hatch when filtering empties a non-empty set. This is the form the cache
// stores, shared by the single-search path and the batch orchestrator.
func (o *Orchestrator) ProcessRaw(raw []catalog.CatalogEntry, title string, source *catalog.SourceEntry) []catalog.CatalogEntry {
	ranked := o.rank(raw, title)
	entries := filtering.ApplySystemFilters(ranked, o.cfg.Filters, source)
	if len(entries) == 0 && len(ranked) > 0 {
		// Filtering emptied a non-empty result set; a capped raw subset beats
		// reporting "no match" for a series that clearly exists.
		entries = capEntries(ranked, o.cfg.AniList.MaxResults)
	}
	return entries
}

// rank orders raw catalog entries by match score and applies the inclusion
// threshold. A near-certain match outranks the variants but never prunes
// them: editions and spin-offs that clear the regular threshold stay in the
// candidate list. A non-empty raw set always yields at least the single best
// entry, however weak.
func (o *Orchestrator) rank(raw []catalog.CatalogEntry, title string) []catalog.CatalogEntry {
	if len(raw) == 0 {
		return nil
	}

	type scored struct {
		entry catalog.CatalogEntry
		score float64
	}
	scores := make([]scored, 0, len(raw))
	for _, entry := range raw {
		scores = append(scores, scored{entry: entry, score: scoring.MatchScore(entry, title)})
	}

	threshold := o.cfg.Matching.MatchThreshold

	kept := make([]scored, 0, len(scores))
	for _, s := range scores {
		if s.score >= threshold {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		bestEntry := scores[0]
		for _, s := range scores[1:] {
			if s.score > bestEntry.score {
				bestEntry = s
			}
		}
		kept = append(kept, bestEntry)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })

	entries := make([]catalog.CatalogEntry, 0, len(kept))
	for _, s := range kept {
		entries = append(entries, s.entry)
	}
	return capEntries(entries, o.cfg.AniList.MaxResults)
}

// Compile computes confidence and priority for every entry, applies
// accept-rule marking and the confidence floor when source context exists,
// and sorts by confidence descending with title-type priority breaking ties.
// Both the live search path and batch compilation go through here, so the
// accept-rule floor can never diverge between them.
func (o *Orchestrator) Compile(entries []catalog.CatalogEntry, provenance map[int64]string, title string, source *catalog.SourceEntry) []catalog.MatchCandidate {
	candidates := make([]catalog.MatchCandidate, 0, len(entries))
	for _, entry := range entries {
		candidates = append(candidates, catalog.MatchCandidate{
			Entry:      entry,
			Confidence: scoring.Confidence(title, entry),
			Source:     provenance[entry.ID],
		})
	}

	if source != nil {
		candidates = filtering.MarkAcceptRules(candidates, o.cfg.Filters, *source)
		for i := range candidates {
			candidates[i] = filtering.ApplyConfidenceFloor(candidates[i], title, o.cfg.Matching)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return scoring.TitleTypePriority(candidates[i].Entry, title) >
			scoring.TitleTypePriority(candidates[j].Entry, title)
	})
	return candidates
}

func capEntries(entries []catalog.CatalogEntry, limit int) []catalog.CatalogEntry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
