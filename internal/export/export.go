// Package export reads reading-list export files into source entries. Only
// the JSON export shape is supported; full export-format coverage belongs to
// the services that produce these files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"tsundoku/internal/catalog"
	"tsundoku/internal/services"
)

// fileShape accepts both a bare entry array and the enveloped export with an
// "entries" field.
type fileShape struct {
	Entries []entryShape `json:"entries"`
}

type entryShape struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	ChaptersRead float64 `json:"chapters_read"`
	VolumesRead  float64 `json:"volumes_read"`
	Score        float64 `json:"score"`
	CatalogID    int64   `json:"catalog_id"`
}

// ReadFile parses the export file at path into source entries. Entries
// without a title are rejected; statuses are normalized onto the reading
// status enum.
func ReadFile(path string) ([]catalog.SourceEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "export", "read", path, err)
	}
	return Parse(data)
}

// Parse decodes export JSON. A bare array of entries and an object with an
// "entries" field are both accepted.
func Parse(data []byte) ([]catalog.SourceEntry, error) {
	var shapes []entryShape
	if err := json.Unmarshal(data, &shapes); err != nil {
		var envelope fileShape
		if envErr := json.Unmarshal(data, &envelope); envErr != nil {
			return nil, services.Wrap(services.ErrValidation, "export", "parse", "unrecognized export shape", err)
		}
		shapes = envelope.Entries
	}

	entries := make([]catalog.SourceEntry, 0, len(shapes))
	for i, shape := range shapes {
		title := strings.TrimSpace(shape.Title)
		if title == "" {
			return nil, services.Wrap(services.ErrValidation, "export", "parse",
				fmt.Sprintf("entry %d has no title", i), nil)
		}
		id := shape.ID
		if id == 0 {
			id = int64(i + 1)
		}
		entries = append(entries, catalog.SourceEntry{
			ID:           id,
			Title:        title,
			Status:       catalog.ParseReadingStatus(shape.Status),
			ChaptersRead: shape.ChaptersRead,
			VolumesRead:  shape.VolumesRead,
			Score:        shape.Score,
			CatalogID:    shape.CatalogID,
		})
	}
	return entries, nil
}
