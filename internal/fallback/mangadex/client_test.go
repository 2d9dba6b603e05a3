package mangadex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tsundoku/internal/catalog"
	"tsundoku/internal/services"
)

func testServer(t *testing.T, body string, status int) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/manga" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return New(server.URL, 5, nil)
}

func TestSearchConvertsEntries(t *testing.T) {
	client := testServer(t, `{
		"result": "ok",
		"data": [{
			"id": "a1b2c3d4-0000-0000-0000-000000000000",
			"attributes": {
				"title": {"en": "Berserk"},
				"altTitles": [{"ja-ro": "Beruseruku"}, {"ja": "ベルセルク"}, {"es": "Berserk ES"}],
				"status": "ongoing",
				"contentRating": "suggestive",
				"lastChapter": "380.5",
				"lastVolume": "41",
				"tags": []
			}
		}],
		"total": 1
	}`, http.StatusOK)

	entries, err := client.Search(context.Background(), "Berserk", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entry count = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.ID <= 0 {
		t.Errorf("synthetic id should be positive: %d", entry.ID)
	}
	if entry.Title.English != "Berserk" || entry.Title.Romaji != "Beruseruku" || entry.Title.Native != "ベルセルク" {
		t.Errorf("titles not mapped: %+v", entry.Title)
	}
	if len(entry.Synonyms) != 1 || entry.Synonyms[0] != "Berserk ES" {
		t.Errorf("synonyms not mapped: %v", entry.Synonyms)
	}
	if entry.Chapters != 380 || entry.Volumes != 41 {
		t.Errorf("counts not parsed: chapters=%d volumes=%d", entry.Chapters, entry.Volumes)
	}
	if entry.Status != "ONGOING" || entry.IsAdult {
		t.Errorf("status/adult wrong: %s %v", entry.Status, entry.IsAdult)
	}
}

func TestSearchOneShotTag(t *testing.T) {
	client := testServer(t, `{
		"result": "ok",
		"data": [{
			"id": "x",
			"attributes": {
				"title": {"en": "Look Back"},
				"contentRating": "safe",
				"tags": [{"attributes": {"name": {"en": "Oneshot"}, "group": "format"}}]
			}
		}]
	}`, http.StatusOK)

	entries, err := client.Search(context.Background(), "Look Back", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if entries[0].Format != catalog.FormatOneShot {
		t.Errorf("format = %s, want ONE_SHOT", entries[0].Format)
	}
}

func TestSearchAdultRating(t *testing.T) {
	client := testServer(t, `{
		"result": "ok",
		"data": [{"id": "y", "attributes": {"title": {"en": "X"}, "contentRating": "erotica"}}]
	}`, http.StatusOK)

	entries, err := client.Search(context.Background(), "X", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !entries[0].IsAdult {
		t.Error("erotica rating should mark entry adult")
	}
}

func TestSearchServerError(t *testing.T) {
	client := testServer(t, `{"result": "error"}`, http.StatusServiceUnavailable)
	_, err := client.Search(context.Background(), "Berserk", 10)
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Errorf("error not classified as transient: %v", err)
	}
}

func TestSyntheticIDStable(t *testing.T) {
	a := syntheticID("a1b2c3d4")
	b := syntheticID("a1b2c3d4")
	other := syntheticID("zzzz")
	if a != b {
		t.Error("synthetic id not stable")
	}
	if a == other {
		t.Error("distinct native ids should map to distinct synthetic ids")
	}
	if a < 0 || other < 0 {
		t.Error("synthetic ids should be non-negative")
	}
}
