package database

import (
	"context"
	"testing"

	"github.com/nao1215/webtrail/internal/model"
)

// openTestDB opens a HistoryDB in a temporary directory.
func openTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	hdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = hdb.Close() })
	return hdb
}

func testItems() []model.HistoryItem {
	return []model.HistoryItem{
		{URL: "https://example.com/a", Title: "A", LastVisitTime: 1000, VisitCount: 3, Domain: "example.com"},
		{URL: "https://example.com/b", Title: "B", LastVisitTime: 2000, VisitCount: 1, Domain: "example.com"},
		{URL: "https://news.example.org/", Title: "News", LastVisitTime: 3000, VisitCount: 7, Domain: "news.example.org"},
	}
}

// TestOpenRequiresExisting tests the CreateIfNotExists option.
func TestOpenRequiresExisting(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
	if err == nil {
		t.Error("expected error opening missing database without create option")
	}
}

// TestStoreHistoryItemsIdempotent tests that re-ingesting a batch writes
// nothing new.
func TestStoreHistoryItemsIdempotent(t *testing.T) {
	t.Parallel()

	hdb := openTestDB(t)
	ctx := context.Background()

	stored, err := hdb.StoreHistoryItems(ctx, testItems())
	if err != nil {
		t.Fatalf("first store failed: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 stored, got %d", len(stored))
	}

	stored, err = hdb.StoreHistoryItems(ctx, testItems())
	if err != nil {
		t.Fatalf("second store failed: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("expected 0 stored on re-ingest, got %d", len(stored))
	}

	items, err := hdb.HistorySince(ctx, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 rows after double ingest, got %d", len(items))
	}
}

// TestStoreHistoryItemsSameURLNewTimestamp tests that the dedupe key is
// (url, timestamp), not url alone.
func TestStoreHistoryItemsSameURLNewTimestamp(t *testing.T) {
	t.Parallel()

	hdb := openTestDB(t)
	ctx := context.Background()

	if _, err := hdb.StoreHistoryItems(ctx, testItems()); err != nil {
		t.Fatal(err)
	}

	revisit := []model.HistoryItem{
		{URL: "https://example.com/a", Title: "A", LastVisitTime: 9000, VisitCount: 4, Domain: "example.com"},
	}
	stored, err := hdb.StoreHistoryItems(ctx, revisit)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Errorf("expected revisit with new timestamp to store, got %d", len(stored))
	}
}

// TestStoreHistoryItemsIntraBatchDuplicates tests dedup within one batch.
func TestStoreHistoryItemsIntraBatchDuplicates(t *testing.T) {
	t.Parallel()

	hdb := openTestDB(t)
	ctx := context.Background()

	batch := []model.HistoryItem{
		{URL: "https://example.com/a", LastVisitTime: 1000},
		{URL: "https://example.com/a", LastVisitTime: 1000},
	}
	stored, err := hdb.StoreHistoryItems(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Errorf("expected 1 stored from duplicated batch, got %d", len(stored))
	}
}

// TestStoreVisitDetails tests visit storage and immutability.
func TestStoreVisitDetails(t *testing.T) {
	t.Parallel()

	hdb := openTestDB(t)
	ctx := context.Background()
	url := "https://example.com/a"

	visits := []model.VisitDetail{
		{VisitID: 1, VisitTime: 100, Transition: "typed"},
		{VisitID: 2, VisitTime: 200, ReferringVisitID: 1, Transition: "link"},
	}
	if err := hdb.StoreVisitDetails(ctx, url, visits); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	// Re-storing with altered fields must not change stored rows.
	altered := []model.VisitDetail{{VisitID: 1, VisitTime: 999, Transition: "reload"}}
	if err := hdb.StoreVisitDetails(ctx, url, altered); err != nil {
		t.Fatalf("re-store failed: %v", err)
	}

	got, err := hdb.VisitsForURL(ctx, url)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 visits, got %d", len(got))
	}
	if got[0].VisitTime != 100 || got[0].Transition != "typed" {
		t.Errorf("visit 1 mutated: %+v", got[0])
	}
	if got[1].ReferringVisitID != 1 {
		t.Errorf("expected referring visit id 1, got %d", got[1].ReferringVisitID)
	}
}

// TestStoreCategory tests upsert semantics and the non-empty invariant.
func TestStoreCategory(t *testing.T) {
	t.Parallel()

	hdb := openTestDB(t)
	ctx := context.Background()

	t.Run("rejects empty record", func(t *testing.T) {
		err := hdb.StoreCategory(ctx, model.CategoryRecord{URL: "https://example.com"})
		if err == nil {
			t.Error("expected error for empty category record")
		}
	})

	t.Run("upserts on re-classification", func(t *testing.T) {
		rec := model.CategoryRecord{
			URL:           "https://example.com/a",
			Categories:    []model.Category{{Label: "News", Score: 0.8}},
			LastVisitTime: 1000,
		}
		if err := hdb.StoreCategory(ctx, rec); err != nil {
			t.Fatal(err)
		}

		rec.Categories = []model.Category{
			{Label: "Technology", Score: 0.9},
			{Label: "News", Score: 0.6},
		}
		rec.LastVisitTime = 2000
		if err := hdb.StoreCategory(ctx, rec); err != nil {
			t.Fatal(err)
		}

		got, err := hdb.Category(ctx, rec.URL)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil {
			t.Fatal("expected a record")
		}
		if len(got.Categories) != 2 || got.Categories[0].Label != "Technology" {
			t.Errorf("unexpected categories after upsert: %+v", got.Categories)
		}
		if got.LastVisitTime != 2000 {
			t.Errorf("expected updated timestamp, got %d", got.LastVisitTime)
		}
	})

	t.Run("missing url returns nil", func(t *testing.T) {
		got, err := hdb.Category(ctx, "https://never-seen.example")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("expected nil for unknown url, got %+v", got)
		}
	})
}

// TestRangeQueries tests the time- and domain-indexed queries.
func TestRangeQueries(t *testing.T) {
	t.Parallel()

	hdb := openTestDB(t)
	ctx := context.Background()

	if _, err := hdb.StoreHistoryItems(ctx, testItems()); err != nil {
		t.Fatal(err)
	}

	t.Run("HistorySince filters by time", func(t *testing.T) {
		items, err := hdb.HistorySince(ctx, 2000)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 2 {
			t.Errorf("expected 2 items since t=2000, got %d", len(items))
		}
	})

	t.Run("HistoryByDomain filters by domain", func(t *testing.T) {
		items, err := hdb.HistoryByDomain(ctx, "example.com", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 2 {
			t.Errorf("expected 2 example.com items, got %d", len(items))
		}
	})

	t.Run("MostVisited orders by count", func(t *testing.T) {
		items, err := hdb.MostVisited(ctx, 0, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		if items[0].URL != "https://news.example.org/" {
			t.Errorf("expected most visited first, got %s", items[0].URL)
		}
	})
}

// TestDeleteOlderThan tests pruning across object kinds.
func TestDeleteOlderThan(t *testing.T) {
	t.Parallel()

	hdb := openTestDB(t)
	ctx := context.Background()

	if _, err := hdb.StoreHistoryItems(ctx, testItems()); err != nil {
		t.Fatal(err)
	}
	if err := hdb.StoreVisitDetails(ctx, "https://example.com/a", []model.VisitDetail{
		{VisitID: 1, VisitTime: 1000},
		{VisitID: 2, VisitTime: 3000},
	}); err != nil {
		t.Fatal(err)
	}
	if err := hdb.StoreCategory(ctx, model.CategoryRecord{
		URL:           "https://example.com/a",
		Categories:    []model.Category{{Label: "News", Score: 0.8}},
		LastVisitTime: 1000,
	}); err != nil {
		t.Fatal(err)
	}

	deleted, err := hdb.DeleteOlderThan(ctx, 2500)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted history items, got %d", deleted)
	}

	visits, err := hdb.VisitsSince(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(visits) != 1 {
		t.Errorf("expected 1 surviving visit, got %d", len(visits))
	}

	// https://example.com/a has no history rows left; its category record
	// must be gone too.
	rec, err := hdb.Category(ctx, "https://example.com/a")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Error("expected orphaned category record to be pruned")
	}
}

// TestGetStats tests aggregate statistics.
func TestGetStats(t *testing.T) {
	t.Parallel()

	hdb := openTestDB(t)
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		stats, err := hdb.GetStats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if stats.HistoryItems != 0 || stats.NewestVisitTime != 0 {
			t.Errorf("unexpected stats for empty store: %+v", stats)
		}
	})

	t.Run("populated store", func(t *testing.T) {
		if _, err := hdb.StoreHistoryItems(ctx, testItems()); err != nil {
			t.Fatal(err)
		}

		stats, err := hdb.GetStats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if stats.HistoryItems != 3 {
			t.Errorf("expected 3 history items, got %d", stats.HistoryItems)
		}
		if stats.OldestVisitTime != 1000 || stats.NewestVisitTime != 3000 {
			t.Errorf("unexpected time bounds: %+v", stats)
		}
	})
}
