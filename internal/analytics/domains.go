package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nao1215/webtrail/internal/model"
)

// DomainStat is one row of the top-domain ranking.
type DomainStat struct {
	// Domain is the effective root domain.
	Domain string `json:"domain"`

	// Visits is the summed visit count across the domain's URLs.
	Visits int `json:"visits"`

	// Duration is the accumulated on-site time reconstructed from visit
	// gaps below the session threshold.
	Duration time.Duration `json:"duration"`

	// DurationText is Duration formatted by magnitude: seconds, minutes,
	// or "Hh Mm".
	DurationText string `json:"durationText"`
}

// DomainScore is one row of the recency-frequency ranking.
type DomainScore struct {
	// Domain is the effective root domain.
	Domain string `json:"domain"`

	// Visits is the summed visit count across the domain's URLs.
	Visits int `json:"visits"`

	// LastVisitTime is the most recent visit in epoch milliseconds.
	LastVisitTime int64 `json:"lastVisitTime"`

	// Score is visits / (1 + daysSinceLastVisit). Recent activity
	// dominates; old heavy use decays.
	Score float64 `json:"score"`
}

// TopDomains ranks effective root domains within the window by
// accumulated on-site time, descending, returning at most limit rows.
func (e *Engine) TopDomains(ctx context.Context, days, limit int) ([]DomainStat, error) {
	since := e.cutoff(days)

	items, err := e.store.HistorySince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load history window: %w", err)
	}
	visits, err := e.store.VisitsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load visits window: %w", err)
	}

	visitCounts := domainVisitCounts(items)
	durations := e.domainDurations(visits)

	domains := make(map[string]struct{}, len(visitCounts))
	for d := range visitCounts {
		domains[d] = struct{}{}
	}
	for d := range durations {
		domains[d] = struct{}{}
	}

	stats := make([]DomainStat, 0, len(domains))
	for d := range domains {
		stats = append(stats, DomainStat{
			Domain:       d,
			Visits:       visitCounts[d],
			Duration:     durations[d],
			DurationText: formatDuration(durations[d]),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Duration != stats[j].Duration {
			return stats[i].Duration > stats[j].Duration
		}
		if stats[i].Visits != stats[j].Visits {
			return stats[i].Visits > stats[j].Visits
		}
		return stats[i].Domain < stats[j].Domain
	})

	return clip(stats, limit), nil
}

// RecencyFrequency ranks domains by visitCount / (1 + daysSinceLastVisit),
// descending, returning at most limit rows.
func (e *Engine) RecencyFrequency(ctx context.Context, days, limit int) ([]DomainScore, error) {
	items, err := e.store.HistorySince(ctx, e.cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("load history window: %w", err)
	}

	visitCounts := domainVisitCounts(items)
	lastVisit := make(map[string]int64)
	for _, item := range items {
		d := itemRootDomain(item)
		if d == "" {
			continue
		}
		if item.LastVisitTime > lastVisit[d] {
			lastVisit[d] = item.LastVisitTime
		}
	}

	now := e.now()
	scores := make([]DomainScore, 0, len(visitCounts))
	for d, count := range visitCounts {
		daysSince := now.Sub(model.TimeFromMillis(lastVisit[d])).Hours() / 24
		if daysSince < 0 {
			daysSince = 0
		}
		scores = append(scores, DomainScore{
			Domain:        d,
			Visits:        count,
			LastVisitTime: lastVisit[d],
			Score:         float64(count) / (1 + daysSince),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Domain < scores[j].Domain
	})

	return clip(scores, limit), nil
}

// UniqueSites counts distinct effective root domains in the window.
func (e *Engine) UniqueSites(ctx context.Context, days int) (int, error) {
	items, err := e.store.HistorySince(ctx, e.cutoff(days))
	if err != nil {
		return 0, fmt.Errorf("load history window: %w", err)
	}

	domains := make(map[string]struct{})
	for _, item := range items {
		if d := itemRootDomain(item); d != "" {
			domains[d] = struct{}{}
		}
	}
	return len(domains), nil
}

// domainVisitCounts sums visit counts per effective root domain. The
// provider's counter is cumulative per URL and repeats on every event row
// for that URL, so the per-URL maximum is taken before summing.
func domainVisitCounts(items []model.HistoryItem) map[string]int {
	perURL := make(map[string]int, len(items))
	urlDomain := make(map[string]string, len(items))
	for _, item := range items {
		d := itemRootDomain(item)
		if d == "" {
			continue
		}
		urlDomain[item.URL] = d
		count := item.VisitCount
		if count < 1 {
			count = 1
		}
		if count > perURL[item.URL] {
			perURL[item.URL] = count
		}
	}

	counts := make(map[string]int)
	for u, c := range perURL {
		counts[urlDomain[u]] += c
	}
	return counts
}

// domainDurations reconstructs accumulated on-site time per root domain:
// per URL, consecutive visit gaps below the session threshold count as
// engaged time and are attributed to the URL's domain.
func (e *Engine) domainDurations(visits []model.VisitDetail) map[string]time.Duration {
	byURL := make(map[string][]int64)
	for _, v := range visits {
		byURL[v.URL] = append(byURL[v.URL], v.VisitTime)
	}

	durations := make(map[string]time.Duration)
	for u, times := range byURL {
		d := urlRootDomain(u)
		if d == "" {
			continue
		}
		total, _ := accumulateSessions(times, e.sessionGap)
		durations[d] += total
	}
	return durations
}

// itemRootDomain resolves an item's effective root domain, preferring the
// stored Domain column and falling back to URL parsing for rows ingested
// before the column existed.
func itemRootDomain(item model.HistoryItem) string {
	if item.Domain != "" {
		return rootDomain(item.Domain)
	}
	return urlRootDomain(item.URL)
}

// formatDuration renders a duration by magnitude: "42s", "17m", "3h 05m".
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		hours := int(d.Hours())
		minutes := int(d.Minutes()) - hours*60
		return fmt.Sprintf("%dh %02dm", hours, minutes)
	}
}

// clip returns at most limit leading elements. A non-positive limit
// returns the slice unchanged.
func clip[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
