package batch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tsundoku/internal/anilist"
	"tsundoku/internal/catalog"
	"tsundoku/internal/config"
	"tsundoku/internal/fallback"
	"tsundoku/internal/logging"
	"tsundoku/internal/matchcache"
	"tsundoku/internal/search"
)

type fakeCatalog struct {
	batched      map[string][]catalog.CatalogEntry
	batchedErr   error
	byID         map[int64]catalog.CatalogEntry
	fetchErr     error
	pageErr      error
	budget       int
	batchedCalls int
	fetchCalls   int
	pageCalls    int
}

func (f *fakeCatalog) SearchPage(ctx context.Context, title string, page int) (*anilist.PageResult, error) {
	f.pageCalls++
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return &anilist.PageResult{PageInfo: anilist.PageInfo{CurrentPage: page}}, nil
}

func (f *fakeCatalog) SearchBatched(ctx context.Context, titles []string) (map[string][]catalog.CatalogEntry, error) {
	f.batchedCalls++
	if f.batchedErr != nil {
		return nil, f.batchedErr
	}
	out := make(map[string][]catalog.CatalogEntry, len(titles))
	for _, t := range titles {
		out[t] = f.batched[t]
	}
	return out, nil
}

func (f *fakeCatalog) FetchByIDs(ctx context.Context, ids []int64) ([]catalog.CatalogEntry, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var hits []catalog.CatalogEntry
	for _, id := range ids {
		if hit, ok := f.byID[id]; ok {
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

func (f *fakeCatalog) BudgetHint() int {
	if f.budget == 0 {
		return -1
	}
	return f.budget
}

func (f *fakeCatalog) PerPage() int { return 25 }

type fakeSource struct {
	name    string
	entries []catalog.CatalogEntry
	calls   int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, title string, limit int) ([]catalog.CatalogEntry, error) {
	f.calls++
	return f.entries, nil
}

func mangaEntry(id int64, title string) catalog.CatalogEntry {
	return catalog.CatalogEntry{
		ID:     id,
		Title:  catalog.Title{English: title},
		Format: catalog.FormatManga,
	}
}

func newBatch(t *testing.T, client anilist.Searcher, sources ...fallback.Source) (*Orchestrator, *matchcache.Cache) {
	t.Helper()
	cfg := config.Default()
	cache := matchcache.New(cfg.CacheTTL(), nil)
	searcher := search.New(cfg, client, cache, sources, nil)
	o := New(cfg, client, cache, searcher, nil)
	o.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return o, cache
}

func sourceEntry(id int64, title string) catalog.SourceEntry {
	return catalog.SourceEntry{ID: id, Title: title, Status: catalog.StatusReading}
}

func TestMatchBatchPreservesInputOrder(t *testing.T) {
	client := &fakeCatalog{batched: map[string][]catalog.CatalogEntry{
		"Alpha Arc": {mangaEntry(1, "Alpha Arc")},
		"Gamma Gun": {mangaEntry(3, "Gamma Gun")},
	}}
	o, cache := newBatch(t, client)

	// B resolves from cache instantly; A and C need the remote.
	cache.Set(matchcache.Key("Beta Blade"), []catalog.CatalogEntry{mangaEntry(2, "Beta Blade")})

	input := []catalog.SourceEntry{
		sourceEntry(10, "Alpha Arc"),
		sourceEntry(11, "Beta Blade"),
		sourceEntry(12, "Gamma Gun"),
	}
	results, err := o.MatchBatch(context.Background(), input, Options{})
	if err != nil {
		t.Fatalf("MatchBatch failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("result count = %d, want 3", len(results))
	}
	for i, want := range []int64{10, 11, 12} {
		if results[i].SourceEntry.ID != want {
			t.Errorf("results[%d].SourceEntry.ID = %d, want %d", i, results[i].SourceEntry.ID, want)
		}
	}
	for i, want := range []int64{1, 2, 3} {
		best, ok := results[i].BestCandidate()
		if !ok || best.Entry.ID != want {
			t.Errorf("results[%d] best candidate = %+v, want entry %d", i, best, want)
		}
	}
}

func TestMatchBatchProgressDedupedByIndex(t *testing.T) {
	client := &fakeCatalog{batched: map[string][]catalog.CatalogEntry{
		"Alpha Arc": {mangaEntry(1, "Alpha Arc")},
	}}
	o, cache := newBatch(t, client)
	cache.Set(matchcache.Key("Beta Blade"), []catalog.CatalogEntry{mangaEntry(2, "Beta Blade")})

	counts := map[int]int{}
	var events []Progress
	opts := Options{Progress: func(p Progress) {
		counts[p.Index]++
		events = append(events, p)
	}}

	input := []catalog.SourceEntry{
		sourceEntry(10, "Alpha Arc"),
		sourceEntry(11, "Beta Blade"),
	}
	if _, err := o.MatchBatch(context.Background(), input, opts); err != nil {
		t.Fatalf("MatchBatch failed: %v", err)
	}
	for idx, n := range counts {
		if n != 1 {
			t.Errorf("index %d reported %d times", idx, n)
		}
	}
	if len(events) != 2 {
		t.Fatalf("event count = %d, want 2", len(events))
	}
	if events[0].RunID == "" || events[0].RunID != events[1].RunID {
		t.Error("events should share one run id")
	}
	if events[len(events)-1].Completed != 2 {
		t.Errorf("final completed count = %d, want 2", events[len(events)-1].Completed)
	}
}

func TestMatchBatchKnownIDPhase(t *testing.T) {
	client := &fakeCatalog{
		byID: map[int64]catalog.CatalogEntry{
			777: mangaEntry(777, "Known Series"),
		},
		batched: map[string][]catalog.CatalogEntry{
			"Ghost Series": {mangaEntry(5, "Ghost Series")},
		},
	}
	o, cache := newBatch(t, client)

	known := sourceEntry(20, "Known Series")
	known.CatalogID = 777
	missing := sourceEntry(21, "Ghost Series")
	missing.CatalogID = 888 // id the catalog no longer has

	results, err := o.MatchBatch(context.Background(), []catalog.SourceEntry{known, missing}, Options{})
	if err != nil {
		t.Fatalf("MatchBatch failed: %v", err)
	}
	if client.fetchCalls != 1 {
		t.Errorf("fetch calls = %d, want 1", client.fetchCalls)
	}

	best, ok := results[0].BestCandidate()
	if !ok || best.Entry.ID != 777 {
		t.Errorf("known-id entry not resolved: %+v", results[0])
	}
	if !cache.IsValid(matchcache.Key("Known Series")) {
		t.Error("known-id hit not written to cache")
	}

	// The unmatched id must be rerouted into the title search.
	if client.batchedCalls != 1 {
		t.Errorf("batched calls = %d, want 1 for the rerouted entry", client.batchedCalls)
	}
	best, ok = results[1].BestCandidate()
	if !ok || best.Entry.ID != 5 {
		t.Errorf("rerouted entry not resolved by title: %+v", results[1])
	}
}

func TestMatchBatchCancellationYieldsPartialResults(t *testing.T) {
	client := &fakeCatalog{batched: map[string][]catalog.CatalogEntry{
		"First":  {mangaEntry(1, "First")},
		"Second": {mangaEntry(2, "Second")},
		"Third":  {mangaEntry(3, "Third")},
	}}
	o, _ := newBatch(t, client)
	o.cfg.AniList.SearchGroupSize = 1

	groups := 0
	opts := Options{ShouldCancel: func() bool {
		// Allow the first group through, cancel before the second.
		groups++
		return groups > 1
	}}

	input := []catalog.SourceEntry{
		sourceEntry(1, "First"),
		sourceEntry(2, "Second"),
		sourceEntry(3, "Third"),
	}
	results, err := o.MatchBatch(context.Background(), input, opts)
	if err != nil {
		t.Fatalf("cancellation must not surface as an error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("result count = %d, want 1 resolved before cancellation", len(results))
	}
	if results[0].SourceEntry.ID != 1 {
		t.Errorf("wrong entry resolved: %+v", results[0].SourceEntry)
	}
}

func TestMatchBatchSecondRunUsesCacheOnly(t *testing.T) {
	client := &fakeCatalog{batched: map[string][]catalog.CatalogEntry{
		"Alpha Arc": {mangaEntry(1, "Alpha Arc")},
		"Beta Blade": {
			mangaEntry(2, "Beta Blade"),
		},
	}}
	o, _ := newBatch(t, client)

	input := []catalog.SourceEntry{
		sourceEntry(1, "Alpha Arc"),
		sourceEntry(2, "Beta Blade"),
	}
	if _, err := o.MatchBatch(context.Background(), input, Options{}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	remoteCalls := client.batchedCalls + client.pageCalls

	results, err := o.MatchBatch(context.Background(), input, Options{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if client.batchedCalls+client.pageCalls != remoteCalls {
		t.Errorf("second run issued remote calls: %d -> %d",
			remoteCalls, client.batchedCalls+client.pageCalls)
	}
	if len(results) != 2 {
		t.Errorf("result count = %d, want 2", len(results))
	}
}

func TestMatchBatchBypassSkipsCache(t *testing.T) {
	client := &fakeCatalog{batched: map[string][]catalog.CatalogEntry{
		"Alpha Arc": {mangaEntry(1, "Alpha Arc")},
	}}
	o, cache := newBatch(t, client)
	cache.Set(matchcache.Key("Alpha Arc"), []catalog.CatalogEntry{mangaEntry(99, "Alpha Arc")})

	results, err := o.MatchBatch(context.Background(), []catalog.SourceEntry{sourceEntry(1, "Alpha Arc")},
		Options{Bypass: true})
	if err != nil {
		t.Fatalf("MatchBatch failed: %v", err)
	}
	if client.batchedCalls != 1 {
		t.Errorf("bypass run should reach the remote: %d calls", client.batchedCalls)
	}
	best, ok := results[0].BestCandidate()
	if !ok || best.Entry.ID != 1 {
		t.Errorf("bypass returned the stale cached entry: %+v", best)
	}
}

func TestMatchBatchBypassMissFunnelSkipsCache(t *testing.T) {
	client := &fakeCatalog{} // batched query and pages know nothing
	src := &fakeSource{name: "mangadex", entries: []catalog.CatalogEntry{mangaEntry(1, "Alpha Arc")}}
	o, cache := newBatch(t, client, src)
	cache.Set(matchcache.Key("Alpha Arc"), []catalog.CatalogEntry{mangaEntry(99, "Alpha Arc")})

	results, err := o.MatchBatch(context.Background(), []catalog.SourceEntry{sourceEntry(1, "Alpha Arc")},
		Options{Bypass: true})
	if err != nil {
		t.Fatalf("MatchBatch failed: %v", err)
	}
	// The batched miss funnels into the single-title search, which must also
	// run in bypass mode instead of serving the stale record.
	if client.pageCalls == 0 {
		t.Error("bypassed miss should reach the remote search")
	}
	best, ok := results[0].BestCandidate()
	if !ok || best.Entry.ID != 1 {
		t.Errorf("bypass run resolved from the stale cache: %+v", best)
	}
	if rec, ok := cache.Get(matchcache.Key("Alpha Arc")); ok {
		t.Errorf("stale record should be invalidated by the bypass: %+v", rec)
	}
}

func TestMatchBatchFallbackFailureLogsEntryID(t *testing.T) {
	client := &fakeCatalog{pageErr: errors.New("upstream exploded")}
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("logger setup failed: %v", err)
	}

	cfg := config.Default()
	cache := matchcache.New(cfg.CacheTTL(), nil)
	searcher := search.New(cfg, client, cache, nil, nil)
	o := New(cfg, client, cache, searcher, logger)
	o.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	results, err := o.MatchBatch(context.Background(),
		[]catalog.SourceEntry{sourceEntry(42, "Alpha Arc")}, Options{})
	if err != nil {
		t.Fatalf("fallback failure must be absorbed: %v", err)
	}
	if len(results) != 1 || len(results[0].Candidates) != 0 {
		t.Fatalf("entry should resolve empty: %+v", results)
	}
	if !strings.Contains(buf.String(), `"entry_id":42`) {
		t.Errorf("failure log missing the entry id: %s", buf.String())
	}
}

func TestMatchBatchGroupErrorAbsorbed(t *testing.T) {
	client := &fakeCatalog{batchedErr: errors.New("upstream exploded")}
	o, _ := newBatch(t, client)

	input := []catalog.SourceEntry{
		sourceEntry(1, "Alpha Arc"),
		sourceEntry(2, "Beta Blade"),
	}
	results, err := o.MatchBatch(context.Background(), input, Options{})
	if err != nil {
		t.Fatalf("group error must be absorbed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("result count = %d, want 2", len(results))
	}
	for i, r := range results {
		if len(r.Candidates) != 0 {
			t.Errorf("results[%d] should be empty after group error: %+v", i, r.Candidates)
		}
		if r.Disposition != catalog.DispositionPending {
			t.Errorf("results[%d] disposition = %s, want pending", i, r.Disposition)
		}
	}
}

func TestMatchBatchMissFunnelsToFallbackSearch(t *testing.T) {
	client := &fakeCatalog{} // batched query knows nothing
	src := &fakeSource{name: "mangadex", entries: []catalog.CatalogEntry{mangaEntry(300, "Hidden Gem")}}
	o, _ := newBatch(t, client, src)

	results, err := o.MatchBatch(context.Background(), []catalog.SourceEntry{sourceEntry(1, "Hidden Gem")}, Options{})
	if err != nil {
		t.Fatalf("MatchBatch failed: %v", err)
	}
	if client.pageCalls == 0 {
		t.Error("miss should trigger the full single-title search")
	}
	if src.calls != 1 {
		t.Errorf("fallback source calls = %d, want 1", src.calls)
	}
	best, ok := results[0].BestCandidate()
	if !ok || best.Entry.ID != 300 {
		t.Fatalf("fallback hit lost: %+v", results[0])
	}
	if best.Source != "mangadex" {
		t.Errorf("provenance lost: %q", best.Source)
	}
}

func TestMatchBatchDelaySkippedAfterFinalGroup(t *testing.T) {
	client := &fakeCatalog{batched: map[string][]catalog.CatalogEntry{
		"First":  {mangaEntry(1, "First")},
		"Second": {mangaEntry(2, "Second")},
		"Third":  {mangaEntry(3, "Third")},
		"Fourth": {mangaEntry(4, "Fourth")},
	}}
	o, _ := newBatch(t, client)
	o.cfg.AniList.SearchGroupSize = 2

	var delays []time.Duration
	o.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	input := []catalog.SourceEntry{
		sourceEntry(1, "First"),
		sourceEntry(2, "Second"),
		sourceEntry(3, "Third"),
		sourceEntry(4, "Fourth"),
	}
	if _, err := o.MatchBatch(context.Background(), input, Options{}); err != nil {
		t.Fatalf("MatchBatch failed: %v", err)
	}
	if len(delays) != 1 {
		t.Fatalf("delay count = %d, want 1 (skipped after final group)", len(delays))
	}
	if delays[0] < o.cfg.MinGroupDelay() || delays[0] > o.cfg.MaxGroupDelay() {
		t.Errorf("delay %v outside clamp bounds", delays[0])
	}
}

func TestAdaptiveDelayClampsAndScales(t *testing.T) {
	cfg := config.Default()

	// Large group against a small budget hits the upper clamp.
	if d := adaptiveDelay(cfg, 28, -1); d != cfg.MaxGroupDelay() {
		t.Errorf("large group delay = %v, want max clamp %v", d, cfg.MaxGroupDelay())
	}
	// Tiny group against a generous budget hits the lower clamp.
	generous := config.Default()
	generous.AniList.RequestsPerMinute = 600
	if d := adaptiveDelay(generous, 1, -1); d != generous.MinGroupDelay() {
		t.Errorf("tiny group delay = %v, want min clamp %v", d, generous.MinGroupDelay())
	}

	// Low budget hint stretches the delay more than a mid hint.
	base := adaptiveDelay(cfg, 4, 100)
	mid := adaptiveDelay(cfg, 4, cfg.Matching.MidBudgetWatermark-1)
	low := adaptiveDelay(cfg, 4, cfg.Matching.LowBudgetWatermark-1)
	if !(base <= mid && mid <= low) {
		t.Errorf("delays not monotone in budget pressure: base=%v mid=%v low=%v", base, mid, low)
	}
}
