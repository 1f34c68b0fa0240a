package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nao1215/webtrail/internal/model"
)

// LabelPair is a counted unordered pair of category labels. A < B holds
// for every pair; the key is canonicalized by lexical order.
type LabelPair struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Count int    `json:"count"`
}

// LabelCount is a label with its frequency.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DayTrend is one day of the category trend series.
type DayTrend struct {
	// Date is the calendar day in "2006-01-02" form (UTC).
	Date string `json:"date"`

	// Labels holds the day's label frequencies, descending.
	Labels []LabelCount `json:"labels"`
}

// CategoryCoOccurrence counts, over classified records in the window, how
// often two labels appear on the same record. A record with labels
// [A, B, C] contributes the three pairs (A,B), (A,C), (B,C) exactly once
// each, whatever order the record lists them in.
func (e *Engine) CategoryCoOccurrence(ctx context.Context, days int) ([]LabelPair, error) {
	records, err := e.store.CategoriesSince(ctx, e.cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("load categories window: %w", err)
	}

	counts := make(map[[2]string]int)
	for _, rec := range records {
		labels := distinctSortedLabels(rec)
		for i := 0; i < len(labels); i++ {
			for j := i + 1; j < len(labels); j++ {
				counts[[2]string{labels[i], labels[j]}]++
			}
		}
	}

	pairs := make([]LabelPair, 0, len(counts))
	for key, count := range counts {
		pairs = append(pairs, LabelPair{A: key[0], B: key[1], Count: count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs, nil
}

// CategoryTrends buckets classified records by calendar day and tallies
// label frequency within each day, returning a time-ordered series.
func (e *Engine) CategoryTrends(ctx context.Context, days int) ([]DayTrend, error) {
	records, err := e.store.CategoriesSince(ctx, e.cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("load categories window: %w", err)
	}

	byDay := make(map[string]map[string]int)
	for _, rec := range records {
		day := model.TimeFromMillis(rec.LastVisitTime).UTC().Format(time.DateOnly)
		if byDay[day] == nil {
			byDay[day] = make(map[string]int)
		}
		for _, label := range rec.Labels() {
			byDay[day][label]++
		}
	}

	trends := make([]DayTrend, 0, len(byDay))
	for day, labelCounts := range byDay {
		labels := make([]LabelCount, 0, len(labelCounts))
		for label, count := range labelCounts {
			labels = append(labels, LabelCount{Label: label, Count: count})
		}
		sort.Slice(labels, func(i, j int) bool {
			if labels[i].Count != labels[j].Count {
				return labels[i].Count > labels[j].Count
			}
			return labels[i].Label < labels[j].Label
		})
		trends = append(trends, DayTrend{Date: day, Labels: labels})
	}

	sort.Slice(trends, func(i, j int) bool { return trends[i].Date < trends[j].Date })
	return trends, nil
}

// distinctSortedLabels returns a record's label set, deduplicated and
// lexically sorted.
func distinctSortedLabels(rec model.CategoryRecord) []string {
	seen := make(map[string]struct{}, len(rec.Categories))
	labels := make([]string, 0, len(rec.Categories))
	for _, c := range rec.Categories {
		if _, dup := seen[c.Label]; dup {
			continue
		}
		seen[c.Label] = struct{}{}
		labels = append(labels, c.Label)
	}
	sort.Strings(labels)
	return labels
}
