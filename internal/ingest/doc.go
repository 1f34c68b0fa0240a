// Package ingest drives the history ingestion pipeline.
//
// A Coordinator pulls a batch of visit events from the history provider
// for a lookback window, drops blocklisted URLs, deduplicates and stores
// the survivors, then fetches and stores each new item's visit sequence
// and classifies the page. Per-item failures (a visit fetch error, a
// classification error) are logged and skipped; they never abort the
// batch. Live "visited" notifications run one item through the same
// filter, dedup, store, classify sequence.
//
// Classification of new items runs concurrently under a bounded errgroup,
// mirroring how batch work is fanned out elsewhere in this codebase.
// Re-ordering between batches is safe because the store deduplicates on
// (url, visit time).
package ingest
