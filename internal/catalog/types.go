package catalog

import (
	"strings"
	"time"
)

// ReadingStatus is the lifecycle state of a source entry in the user's list.
type ReadingStatus string

const (
	StatusReading    ReadingStatus = "reading"
	StatusCompleted  ReadingStatus = "completed"
	StatusOnHold     ReadingStatus = "on_hold"
	StatusDropped    ReadingStatus = "dropped"
	StatusPlanToRead ReadingStatus = "plan_to_read"
)

// ParseReadingStatus maps loose status spellings from export files onto the
// canonical enum. Unknown values default to plan_to_read.
func ParseReadingStatus(raw string) ReadingStatus {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "-", "_"))) {
	case "reading", "current":
		return StatusReading
	case "completed", "complete":
		return StatusCompleted
	case "on_hold", "paused", "hold":
		return StatusOnHold
	case "dropped":
		return StatusDropped
	default:
		return StatusPlanToRead
	}
}

// SourceEntry is one record from the user's imported reading list. Immutable
// once imported except by explicit edit; owned by the caller.
type SourceEntry struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Status       ReadingStatus `json:"status"`
	ChaptersRead float64       `json:"chapters_read"`
	VolumesRead  float64       `json:"volumes_read"`
	Score        float64       `json:"score"`
	CatalogID    int64         `json:"catalog_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Format is the remote catalog's publication format.
type Format string

const (
	FormatManga   Format = "MANGA"
	FormatNovel   Format = "NOVEL"
	FormatOneShot Format = "ONE_SHOT"
)

// Title carries the multilingual names of a catalog entry.
type Title struct {
	English string `json:"english,omitempty"`
	Romaji  string `json:"romaji,omitempty"`
	Native  string `json:"native,omitempty"`
}

// CatalogEntry is one media record from the remote catalog. Read-only snapshot
// data; never mutated, only replaced by fresher fetches.
type CatalogEntry struct {
	ID       int64    `json:"id"`
	Title    Title    `json:"title"`
	Synonyms []string `json:"synonyms,omitempty"`
	Format   Format   `json:"format,omitempty"`
	Status   string   `json:"status,omitempty"`
	Chapters int      `json:"chapters,omitempty"`
	Volumes  int      `json:"volumes,omitempty"`
	IsAdult  bool     `json:"is_adult,omitempty"`
	CoverURL string   `json:"cover_url,omitempty"`
}

// AllTitles returns every name the entry is known by, primary titles first.
// Empty strings are skipped.
func (e CatalogEntry) AllTitles() []string {
	titles := make([]string, 0, 3+len(e.Synonyms))
	for _, t := range []string{e.Title.English, e.Title.Romaji, e.Title.Native} {
		if strings.TrimSpace(t) != "" {
			titles = append(titles, t)
		}
	}
	for _, s := range e.Synonyms {
		if strings.TrimSpace(s) != "" {
			titles = append(titles, s)
		}
	}
	return titles
}

// DisplayTitle picks the best human-facing name for the entry.
func (e CatalogEntry) DisplayTitle() string {
	if e.Title.English != "" {
		return e.Title.English
	}
	if e.Title.Romaji != "" {
		return e.Title.Romaji
	}
	return e.Title.Native
}

// MatchCandidate pairs a catalog entry with a confidence score and optional
// provenance. Ephemeral, computed per search.
type MatchCandidate struct {
	Entry      CatalogEntry `json:"entry"`
	Confidence int          `json:"confidence"`
	// Source names the catalog the candidate came from when it was found via
	// a fallback lookup; empty means the primary catalog.
	Source string `json:"source,omitempty"`
	// AcceptRule marks candidates matched by a user accept rule so the
	// confidence floor can be applied at compile time.
	AcceptRule bool `json:"accept_rule,omitempty"`
}

// Disposition is the review lifecycle state of a MatchResult.
type Disposition string

const (
	DispositionPending Disposition = "pending"
	DispositionMatched Disposition = "matched"
	DispositionManual  Disposition = "manual"
	DispositionSkipped Disposition = "skipped"
)

// MatchResult is the durable unit of work: one source entry, its ranked
// candidates (best first), the selected catalog entry when disposed, and the
// disposition state. Never deleted, only re-disposed.
type MatchResult struct {
	SourceEntry   SourceEntry      `json:"source_entry"`
	Candidates    []MatchCandidate `json:"candidates"`
	SelectedMatch *CatalogEntry    `json:"selected_match,omitempty"`
	Disposition   Disposition      `json:"disposition"`
	MatchedAt     time.Time        `json:"matched_at"`
}

// Valid reports whether the result honors the disposition invariant:
// a selected match must be present whenever the result is matched or manual.
func (r MatchResult) Valid() bool {
	switch r.Disposition {
	case DispositionMatched, DispositionManual:
		return r.SelectedMatch != nil
	default:
		return true
	}
}

// BestCandidate returns the top-ranked candidate, if any. Candidate order
// determines default selection.
func (r MatchResult) BestCandidate() (MatchCandidate, bool) {
	if len(r.Candidates) == 0 {
		return MatchCandidate{}, false
	}
	return r.Candidates[0], true
}

// CacheRecord stores the post-filter, post-rank result list for one normalized
// title key together with its fetch timestamp.
type CacheRecord struct {
	Key       string         `json:"key"`
	Entries   []CatalogEntry `json:"entries"`
	FetchedAt time.Time      `json:"fetched_at"`
}
