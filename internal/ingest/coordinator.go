package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webtrail/internal/model"
)

// Filter decides whether a URL is excluded from ingestion.
type Filter interface {
	IsBlocked(ctx context.Context, rawURL string) bool
}

// Store is the persistence surface the coordinator writes to.
type Store interface {
	StoreHistoryItems(ctx context.Context, items []model.HistoryItem) ([]model.HistoryItem, error)
	StoreVisitDetails(ctx context.Context, url string, visits []model.VisitDetail) error
}

// Classifier classifies one stored item. A nil Classifier disables
// classification; items are still ingested.
type Classifier interface {
	Classify(ctx context.Context, item model.HistoryItem) ([]model.Category, error)
}

// Result summarizes one ingestion run.
type Result struct {
	// BatchID identifies the run in logs.
	BatchID string

	// Fetched is the number of raw events pulled from the provider.
	Fetched int

	// Blocked is the number of events removed by the blocklist filter.
	Blocked int

	// Stored is the number of events that survived deduplication and
	// were written. Fetched - Blocked - Stored were duplicates.
	Stored int

	// Classified is the number of stored items with a persisted
	// category record after this run.
	Classified int

	// Failed counts per-item failures (visit fetch or classification)
	// that were skipped.
	Failed int

	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Coordinator wires the provider, filter, store, and classifier into one
// pipeline. It is safe for concurrent use; overlapping runs are made safe
// by the store's deduplication.
type Coordinator struct {
	provider   Provider
	filter     Filter
	store      Store
	classifier Classifier

	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClassifier enables classification of newly stored items.
func WithClassifier(c Classifier) CoordinatorOption {
	return func(co *Coordinator) {
		co.classifier = c
	}
}

// WithConcurrency sets the number of items processed concurrently during
// the per-item stage. Default 4.
func WithConcurrency(n int) CoordinatorOption {
	return func(co *Coordinator) {
		if n > 0 {
			co.concurrency = n
		}
	}
}

// WithCoordinatorLogger sets a custom logger.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(co *Coordinator) {
		co.logger = logger
	}
}

// WithClock overrides the time source. Tests use this to pin the
// lookback window.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(co *Coordinator) {
		co.now = now
	}
}

// NewCoordinator creates a Coordinator over the given collaborators.
func NewCoordinator(provider Provider, filter Filter, store Store, opts ...CoordinatorOption) *Coordinator {
	co := &Coordinator{
		provider:    provider,
		filter:      filter,
		store:       store,
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(co)
	}
	if co.logger == nil {
		co.logger = slog.Default()
	}
	return co
}

// IngestWindow runs the pipeline over the last `days` days of history.
func (co *Coordinator) IngestWindow(ctx context.Context, days int) (*Result, error) {
	start := co.now()
	result := &Result{BatchID: uuid.NewString()}
	logger := co.logger.With("batch_id", result.BatchID)

	end := co.now()
	items, err := co.provider.Search(ctx, end.AddDate(0, 0, -days), end)
	if err != nil {
		return nil, fmt.Errorf("fetch history window: %w", err)
	}
	result.Fetched = len(items)

	admitted := make([]model.HistoryItem, 0, len(items))
	for _, item := range items {
		if co.filter.IsBlocked(ctx, item.URL) {
			result.Blocked++
			continue
		}
		admitted = append(admitted, co.withDomain(item))
	}

	stored, err := co.store.StoreHistoryItems(ctx, admitted)
	if err != nil {
		return nil, fmt.Errorf("store history batch: %w", err)
	}
	result.Stored = len(stored)

	classified, failed := co.processItems(ctx, logger, stored)
	result.Classified = classified
	result.Failed = failed
	result.Elapsed = co.now().Sub(start)

	logger.Info("ingestion batch complete",
		"fetched", result.Fetched,
		"blocked", result.Blocked,
		"stored", result.Stored,
		"classified", result.Classified,
		"failed", result.Failed,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// IngestVisit runs a single live-visit notification through the pipeline.
func (co *Coordinator) IngestVisit(ctx context.Context, item model.HistoryItem) (*Result, error) {
	result := &Result{BatchID: uuid.NewString(), Fetched: 1}
	logger := co.logger.With("batch_id", result.BatchID)

	if co.filter.IsBlocked(ctx, item.URL) {
		result.Blocked = 1
		return result, nil
	}

	stored, err := co.store.StoreHistoryItems(ctx, []model.HistoryItem{co.withDomain(item)})
	if err != nil {
		return nil, fmt.Errorf("store visited item: %w", err)
	}
	result.Stored = len(stored)

	classified, failed := co.processItems(ctx, logger, stored)
	result.Classified = classified
	result.Failed = failed
	return result, nil
}

// processItems runs the per-item stage for newly stored items: fetch and
// store the visit sequence, then classify. Failures are logged and
// counted, never propagated; one broken page must not sink the batch.
func (co *Coordinator) processItems(ctx context.Context, logger *slog.Logger, items []model.HistoryItem) (classified, failed int) {
	if len(items) == 0 {
		return 0, 0
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(co.concurrency)

	for _, item := range items {
		g.Go(func() error {
			classifiedInc, failedInc := co.processItem(ctx, logger, item)

			mu.Lock()
			classified += classifiedInc
			failed += failedInc
			mu.Unlock()
			return nil
		})
	}

	// Item goroutines never return errors; Wait only surfaces context
	// cancellation, which the per-item counters already reflect.
	_ = g.Wait() //nolint:errcheck
	return classified, failed
}

// processItem handles one stored item. It returns increments for the
// classified and failed counters.
func (co *Coordinator) processItem(ctx context.Context, logger *slog.Logger, item model.HistoryItem) (classified, failed int) {
	visits, err := co.provider.Visits(ctx, item.URL)
	if err != nil {
		logger.Warn("skipping item: visit fetch failed", "url", item.URL, "error", err)
		return 0, 1
	}
	if err := co.store.StoreVisitDetails(ctx, item.URL, visits); err != nil {
		logger.Warn("skipping item: visit store failed", "url", item.URL, "error", err)
		return 0, 1
	}

	if co.classifier == nil {
		return 0, 0
	}
	if _, err := co.classifier.Classify(ctx, item); err != nil {
		logger.Warn("skipping item: classification failed", "url", item.URL, "error", err)
		return 0, 1
	}
	return 1, 0
}

// withDomain fills the item's Domain field from its URL. Items whose URL
// has no hostname were already rejected by the filter (it fails closed
// on unparseable URLs), so the error case is unreachable in the pipeline.
func (co *Coordinator) withDomain(item model.HistoryItem) model.HistoryItem {
	if item.Domain != "" {
		return item
	}
	if host, err := model.HostnameOf(item.URL); err == nil {
		item.Domain = host
	}
	return item
}
