package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nao1215/webtrail/internal/model"
)

// topTransitionCount bounds the ranked pair list in a TransitionSummary.
const topTransitionCount = 10

// TransitionPair is a counted cross-site navigation (from, to).
type TransitionPair struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// TransitionSummary describes the cross-site navigation patterns of a
// window.
type TransitionSummary struct {
	// Total is the number of counted cross-site transitions.
	Total int `json:"total"`

	// UniquePairs is the number of distinct (from, to) pairs.
	UniquePairs int `json:"uniquePairs"`

	// Top holds the most frequent pairs, at most ten, descending.
	Top []TransitionPair `json:"top"`

	// TopPair is the single most frequent pair, nil when the window has
	// no cross-site transitions.
	TopPair *TransitionPair `json:"topPair,omitempty"`
}

// Transitions derives cross-site navigation patterns from the window's
// time-ordered visit stream. Consecutive visits on the same hostname, or
// on hostnames sharing the first DNS label, are treated as same-site
// navigation and skipped. The first-label comparison is a deliberately
// cheap same-site heuristic; it occasionally skips a genuine cross-site
// hop between two www hosts, which is acceptable noise for a top-10 list.
func (e *Engine) Transitions(ctx context.Context, days int) (*TransitionSummary, error) {
	visits, err := e.store.VisitsSince(ctx, e.cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("load visits window: %w", err)
	}

	sorted := make([]model.VisitDetail, len(visits))
	copy(sorted, visits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VisitTime < sorted[j].VisitTime })

	counts := make(map[[2]string]int)
	total := 0
	for i := 1; i < len(sorted); i++ {
		from, to := sorted[i-1], sorted[i]
		if sameSite(from.URL, to.URL) {
			continue
		}
		counts[[2]string{from.URL, to.URL}]++
		total++
	}

	pairs := make([]TransitionPair, 0, len(counts))
	for key, count := range counts {
		pairs = append(pairs, TransitionPair{From: key[0], To: key[1], Count: count})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		if pairs[i].From != pairs[j].From {
			return pairs[i].From < pairs[j].From
		}
		return pairs[i].To < pairs[j].To
	})

	summary := &TransitionSummary{
		Total:       total,
		UniquePairs: len(pairs),
		Top:         clip(pairs, topTransitionCount),
	}
	if len(pairs) > 0 {
		summary.TopPair = &pairs[0]
	}
	return summary, nil
}

// sameSite reports whether two URLs belong to the same site for
// transition counting: same hostname or same first DNS label. URLs
// without a hostname are treated as same-site so they never inflate the
// transition counts.
func sameSite(fromURL, toURL string) bool {
	fromHost, err := model.HostnameOf(fromURL)
	if err != nil {
		return true
	}
	toHost, err := model.HostnameOf(toURL)
	if err != nil {
		return true
	}
	if fromHost == toHost {
		return true
	}
	return firstLabel(fromHost) == firstLabel(toHost)
}

// firstLabel returns the leading DNS label of a hostname.
func firstLabel(host string) string {
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i]
	}
	return host
}
