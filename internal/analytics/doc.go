// Package analytics derives statistics from persisted browsing history.
//
// Every operation is a pure, read-only query over a time-bounded slice of
// stored data (cutoff = now minus N days), recomputed on each request.
// There is no incremental or materialized state: the store is the single
// source of truth and the window is small enough that recomputation is
// cheaper than cache invalidation would be.
//
// Time bucketing (trend days, hour and weekday histograms) uses UTC so
// results are stable regardless of the host timezone.
//
// Operations:
//   - TopDomains: visit counts and accumulated time per effective root domain
//   - RecencyFrequency: visitCount / (1 + daysSinceLastVisit) ranking
//   - TimeSpent: per-URL session reconstruction with a session-gap threshold
//   - Transitions: cross-site (from, to) navigation pair counts
//   - CategoryCoOccurrence: unordered label pair counts
//   - CategoryTrends: per-day label frequency series
//   - VisitHourHistogram / VisitWeekdayHistogram: time-of-day patterns
//   - UniqueSites: distinct effective root domains in the window
package analytics
