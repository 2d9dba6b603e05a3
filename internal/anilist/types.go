package anilist

import (
	"encoding/json"

	"tsundoku/internal/catalog"
)

// graphqlRequest is the POST body sent to the API.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the envelope every reply arrives in.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

// PageInfo carries the pagination metadata the API returns alongside each
// result page. A page payload without it is malformed.
type PageInfo struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"currentPage"`
	LastPage    int  `json:"lastPage"`
	HasNextPage bool `json:"hasNextPage"`
	PerPage     int  `json:"perPage"`
}

// mediaData mirrors one media object from the API. Nullable API fields are
// pointers so absent values survive decoding.
type mediaData struct {
	ID       int64      `json:"id"`
	Title    titleData  `json:"title"`
	Synonyms []string   `json:"synonyms"`
	Format   *string    `json:"format"`
	Status   *string    `json:"status"`
	Chapters *int       `json:"chapters"`
	Volumes  *int       `json:"volumes"`
	IsAdult  bool       `json:"isAdult"`
	Cover    coverImage `json:"coverImage"`
}

type titleData struct {
	English *string `json:"english"`
	Romaji  *string `json:"romaji"`
	Native  *string `json:"native"`
}

type coverImage struct {
	Large  *string `json:"large"`
	Medium *string `json:"medium"`
}

type pageData struct {
	PageInfo *PageInfo   `json:"pageInfo"`
	Media    []mediaData `json:"media"`
}

func (m mediaData) toCatalogEntry() catalog.CatalogEntry {
	entry := catalog.CatalogEntry{
		ID:      m.ID,
		IsAdult: m.IsAdult,
	}
	entry.Title.English = derefString(m.Title.English)
	entry.Title.Romaji = derefString(m.Title.Romaji)
	entry.Title.Native = derefString(m.Title.Native)
	for _, s := range m.Synonyms {
		if s != "" {
			entry.Synonyms = append(entry.Synonyms, s)
		}
	}
	entry.Format = catalog.Format(derefString(m.Format))
	entry.Status = derefString(m.Status)
	if m.Chapters != nil {
		entry.Chapters = *m.Chapters
	}
	if m.Volumes != nil {
		entry.Volumes = *m.Volumes
	}
	if m.Cover.Large != nil {
		entry.CoverURL = *m.Cover.Large
	} else if m.Cover.Medium != nil {
		entry.CoverURL = *m.Cover.Medium
	}
	return entry
}

func toCatalogEntries(media []mediaData) []catalog.CatalogEntry {
	entries := make([]catalog.CatalogEntry, 0, len(media))
	for _, m := range media {
		entries = append(entries, m.toCatalogEntry())
	}
	return entries
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
