package anilist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"tsundoku/internal/config"
	"tsundoku/internal/services"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default().AniList
	cfg.BaseURL = server.URL
	cfg.RequestsPerMinute = 6000
	client, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func writeData(t *testing.T, w http.ResponseWriter, data string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"data":` + data + `}`)); err != nil {
		t.Errorf("write response: %v", err)
	}
}

func TestSearchPageParsesResults(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Variables["search"] != "Berserk" {
			t.Errorf("unexpected search variable: %v", req.Variables["search"])
		}
		w.Header().Set("X-RateLimit-Remaining", "87")
		writeData(t, w, `{
			"Page": {
				"pageInfo": {"total": 1, "currentPage": 1, "lastPage": 1, "hasNextPage": false, "perPage": 25},
				"media": [{
					"id": 30002,
					"title": {"english": "Berserk", "romaji": "Berserk", "native": null},
					"synonyms": ["Berserk Max"],
					"format": "MANGA",
					"status": "RELEASING",
					"chapters": null,
					"volumes": 41,
					"isAdult": false,
					"coverImage": {"large": "https://img.example/berserk.jpg"}
				}]
			}
		}`)
	}))

	page, err := client.SearchPage(context.Background(), "Berserk", 1)
	if err != nil {
		t.Fatalf("SearchPage failed: %v", err)
	}
	if page.PageInfo.HasNextPage {
		t.Error("hasNextPage should be false")
	}
	if len(page.Entries) != 1 {
		t.Fatalf("entry count = %d, want 1", len(page.Entries))
	}
	entry := page.Entries[0]
	if entry.ID != 30002 || entry.Title.English != "Berserk" || entry.Volumes != 41 {
		t.Errorf("entry not converted: %+v", entry)
	}
	if entry.CoverURL != "https://img.example/berserk.jpg" {
		t.Errorf("cover url not taken from large image: %s", entry.CoverURL)
	}
	if client.BudgetHint() != 87 {
		t.Errorf("budget hint = %d, want 87", client.BudgetHint())
	}
}

func TestSearchPageRejectsMissingPageInfo(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(t, w, `{"Page": {"media": []}}`)
	}))

	_, err := client.SearchPage(context.Background(), "Berserk", 1)
	if err == nil {
		t.Fatal("expected error for response without pageInfo")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("error not classified as validation: %v", err)
	}
}

func TestSearchBatchedMapsAliases(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Variables["q0"] != "Berserk" || req.Variables["q1"] != "Vinland Saga" {
			t.Errorf("unexpected variables: %v", req.Variables)
		}
		writeData(t, w, `{
			"q0": {"media": [{"id": 1, "title": {"english": "Berserk"}}]},
			"q1": {"media": []}
		}`)
	}))

	results, err := client.SearchBatched(context.Background(), []string{"Berserk", "Vinland Saga", "  "})
	if err != nil {
		t.Fatalf("SearchBatched failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("result count = %d, want 2", len(results))
	}
	if len(results["Berserk"]) != 1 || results["Berserk"][0].ID != 1 {
		t.Errorf("Berserk results wrong: %+v", results["Berserk"])
	}
	if got, ok := results["Vinland Saga"]; !ok || len(got) != 0 {
		t.Errorf("empty-result title should map to empty slice: %v, %v", got, ok)
	}
}

func TestFetchByIDsRejectsOversizedGroup(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for oversized group")
	}))

	ids := make([]int64, IDBatchLimit+1)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	_, err := client.FetchByIDs(context.Background(), ids)
	if err == nil {
		t.Fatal("expected error for group above API cap")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("error not classified as validation: %v", err)
	}
}

func TestFetchByIDsEmptyInput(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	}))

	entries, err := client.FetchByIDs(context.Background(), nil)
	if err != nil || entries != nil {
		t.Errorf("empty input should be a no-op: %v, %v", entries, err)
	}
}

func TestRetryAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeData(t, w, `{
			"Page": {
				"pageInfo": {"total": 0, "currentPage": 1, "lastPage": 1, "hasNextPage": false, "perPage": 25},
				"media": []
			}
		}`)
	}))

	page, err := client.SearchPage(context.Background(), "Berserk", 1)
	if err != nil {
		t.Fatalf("SearchPage should recover from 429: %v", err)
	}
	if len(page.Entries) != 0 {
		t.Errorf("unexpected entries: %+v", page.Entries)
	}
	if calls.Load() != 2 {
		t.Errorf("call count = %d, want 2", calls.Load())
	}
}

func TestGraphQLErrorsAreValidation(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": null, "errors": [{"message": "bad query"}]}`))
	}))

	_, err := client.SearchPage(context.Background(), "Berserk", 1)
	if err == nil {
		t.Fatal("expected error for GraphQL errors")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("error not classified as validation: %v", err)
	}
}

func TestCanceledContextSurfacesCancellation(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(t, w, `{"Page": {"pageInfo": {"currentPage": 1}, "media": []}}`)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.SearchPage(ctx, "Berserk", 1)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !services.IsCancellation(err) {
		t.Errorf("error not classified as cancellation: %v", err)
	}
}
