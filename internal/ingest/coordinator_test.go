package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/webtrail/internal/model"
)

// fakeProvider serves canned history items and visit sequences.
type fakeProvider struct {
	items     []model.HistoryItem
	visits    map[string][]model.VisitDetail
	visitsErr map[string]error
}

func (p *fakeProvider) Search(_ context.Context, start, end time.Time) ([]model.HistoryItem, error) {
	startMS, endMS := model.MillisFromTime(start), model.MillisFromTime(end)
	var out []model.HistoryItem
	for _, item := range p.items {
		if item.LastVisitTime >= startMS && item.LastVisitTime < endMS {
			out = append(out, item)
		}
	}
	return out, nil
}

func (p *fakeProvider) Visits(_ context.Context, url string) ([]model.VisitDetail, error) {
	if err := p.visitsErr[url]; err != nil {
		return nil, err
	}
	return p.visits[url], nil
}

// hostFilter blocks URLs whose hostname is in the set.
type hostFilter struct {
	blocked map[string]bool
}

func (f *hostFilter) IsBlocked(_ context.Context, rawURL string) bool {
	host, err := model.HostnameOf(rawURL)
	if err != nil {
		return true
	}
	return f.blocked[host]
}

// fakeStore deduplicates in memory and records writes.
type fakeStore struct {
	mu     sync.Mutex
	keys   map[string]bool
	visits map[string][]model.VisitDetail
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: make(map[string]bool), visits: make(map[string][]model.VisitDetail)}
}

func (s *fakeStore) StoreHistoryItems(_ context.Context, items []model.HistoryItem) ([]model.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fresh []model.HistoryItem
	for _, item := range items {
		if s.keys[item.Key()] {
			continue
		}
		s.keys[item.Key()] = true
		fresh = append(fresh, item)
	}
	return fresh, nil
}

func (s *fakeStore) StoreVisitDetails(_ context.Context, url string, visits []model.VisitDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits[url] = visits
	return nil
}

// fakeClassifier records classified URLs and optionally fails some.
type fakeClassifier struct {
	mu      sync.Mutex
	urls    []string
	failFor map[string]bool
}

func (c *fakeClassifier) Classify(_ context.Context, item model.HistoryItem) ([]model.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFor[item.URL] {
		return nil, errors.New("classifier exploded")
	}
	c.urls = append(c.urls, item.URL)
	return []model.Category{{Label: "News", Score: 0.8}}, nil
}

// fixedClock returns a constant time so the lookback window is stable.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testEvents(now time.Time) []model.HistoryItem {
	ms := model.MillisFromTime(now)
	return []model.HistoryItem{
		{URL: "https://example.com/a", Title: "A", LastVisitTime: ms - 1000},
		{URL: "https://ads.example.net/pixel", Title: "", LastVisitTime: ms - 2000},
		{URL: "https://news.example.org/story", Title: "Story", LastVisitTime: ms - 3000},
	}
}

// TestIngestWindow tests the full filter, dedup, store, classify flow.
func TestIngestWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		items: testEvents(now),
		visits: map[string][]model.VisitDetail{
			"https://example.com/a": {{VisitID: 1, VisitTime: 100}},
		},
	}
	filter := &hostFilter{blocked: map[string]bool{"ads.example.net": true}}
	store := newFakeStore()
	classifier := &fakeClassifier{}

	co := NewCoordinator(provider, filter, store,
		WithClassifier(classifier),
		WithClock(fixedClock(now)),
	)

	result, err := co.IngestWindow(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Fetched != 3 {
		t.Errorf("expected 3 fetched, got %d", result.Fetched)
	}
	if result.Blocked != 1 {
		t.Errorf("expected 1 blocked, got %d", result.Blocked)
	}
	if result.Stored != 2 {
		t.Errorf("expected 2 stored, got %d", result.Stored)
	}
	if result.Classified != 2 {
		t.Errorf("expected 2 classified, got %d", result.Classified)
	}
	if result.Failed != 0 {
		t.Errorf("expected 0 failed, got %d", result.Failed)
	}

	// Domain was filled during ingestion.
	if !store.keys[model.HistoryItem{URL: "https://example.com/a", LastVisitTime: model.MillisFromTime(now) - 1000}.Key()] {
		t.Error("expected example.com item stored")
	}
	if len(store.visits["https://example.com/a"]) != 1 {
		t.Error("expected visit sequence stored")
	}
}

// TestIngestWindowIdempotent tests that a second run stores nothing new.
func TestIngestWindowIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{items: testEvents(now)}
	store := newFakeStore()
	co := NewCoordinator(provider, &hostFilter{blocked: map[string]bool{}}, store,
		WithClock(fixedClock(now)))
	ctx := context.Background()

	first, err := co.IngestWindow(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	second, err := co.IngestWindow(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}

	if first.Stored != 3 {
		t.Errorf("expected 3 stored on first run, got %d", first.Stored)
	}
	if second.Stored != 0 {
		t.Errorf("expected 0 stored on second run, got %d", second.Stored)
	}
}

// TestIngestWindowSkipsFailedItems tests that per-item failures do not
// abort the batch.
func TestIngestWindowSkipsFailedItems(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		items:     testEvents(now),
		visitsErr: map[string]error{"https://example.com/a": errors.New("history api timeout")},
	}
	classifier := &fakeClassifier{failFor: map[string]bool{"https://news.example.org/story": true}}
	co := NewCoordinator(provider, &hostFilter{blocked: map[string]bool{"ads.example.net": true}}, newFakeStore(),
		WithClassifier(classifier),
		WithClock(fixedClock(now)),
	)

	result, err := co.IngestWindow(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Stored != 2 {
		t.Errorf("expected 2 stored, got %d", result.Stored)
	}
	if result.Failed != 2 {
		t.Errorf("expected 2 failed (one visit fetch, one classify), got %d", result.Failed)
	}
	if result.Classified != 0 {
		t.Errorf("expected 0 classified, got %d", result.Classified)
	}
}

// TestIngestVisit tests the live single-item path.
func TestIngestVisit(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{visits: map[string][]model.VisitDetail{}}
	filter := &hostFilter{blocked: map[string]bool{"ads.example.net": true}}
	store := newFakeStore()
	classifier := &fakeClassifier{}
	co := NewCoordinator(provider, filter, store, WithClassifier(classifier))
	ctx := context.Background()

	t.Run("blocked visit is dropped", func(t *testing.T) {
		result, err := co.IngestVisit(ctx, model.HistoryItem{URL: "https://ads.example.net/p", LastVisitTime: 1000})
		if err != nil {
			t.Fatal(err)
		}
		if result.Blocked != 1 || result.Stored != 0 {
			t.Errorf("expected blocked drop, got %+v", result)
		}
	})

	t.Run("new visit flows through", func(t *testing.T) {
		item := model.HistoryItem{URL: "https://example.com/live", Title: "Live", LastVisitTime: 2000}
		result, err := co.IngestVisit(ctx, item)
		if err != nil {
			t.Fatal(err)
		}
		if result.Stored != 1 || result.Classified != 1 {
			t.Errorf("expected store+classify, got %+v", result)
		}
	})

	t.Run("duplicate visit is a no-op", func(t *testing.T) {
		item := model.HistoryItem{URL: "https://example.com/live", Title: "Live", LastVisitTime: 2000}
		result, err := co.IngestVisit(ctx, item)
		if err != nil {
			t.Fatal(err)
		}
		if result.Stored != 0 {
			t.Errorf("expected duplicate to store nothing, got %+v", result)
		}
	})
}

// TestFileProvider tests the JSON export provider.
func TestFileProvider(t *testing.T) {
	t.Parallel()

	ex := export{
		Items: []model.HistoryItem{
			{URL: "https://example.com/a", Title: "A", LastVisitTime: 5000},
			{URL: "https://example.com/b", Title: "B", LastVisitTime: 15000},
		},
		Visits: map[string][]model.VisitDetail{
			"https://example.com/a": {{VisitID: 1, VisitTime: 5000, Transition: "link"}},
		},
	}
	data, err := json.Marshal(ex)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	p, err := NewFileProvider(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	items, err := p.Search(ctx, model.TimeFromMillis(0), model.TimeFromMillis(10000))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].URL != "https://example.com/a" {
		t.Errorf("unexpected search result: %+v", items)
	}

	visits, err := p.Visits(ctx, "https://example.com/a")
	if err != nil {
		t.Fatal(err)
	}
	if len(visits) != 1 || visits[0].Transition != "link" {
		t.Errorf("unexpected visits: %+v", visits)
	}
}

// TestFileProviderErrors tests missing and malformed export files.
func TestFileProviderErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := NewFileProvider(filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "broken.json")
		if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := NewFileProvider(path); err == nil || !strings.Contains(err.Error(), "parse") {
			t.Errorf("expected parse error, got %v", err)
		}
	})
}

// TestBatchIDsDiffer tests that each run gets its own batch id.
func TestBatchIDsDiffer(t *testing.T) {
	t.Parallel()

	co := NewCoordinator(&fakeProvider{}, &hostFilter{blocked: map[string]bool{}}, newFakeStore())
	ctx := context.Background()

	a, err := co.IngestWindow(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := co.IngestWindow(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if a.BatchID == "" || a.BatchID == b.BatchID {
		t.Errorf("expected distinct batch ids, got %q and %q", a.BatchID, b.BatchID)
	}
}
