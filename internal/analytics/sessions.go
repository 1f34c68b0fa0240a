package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nao1215/webtrail/internal/model"
)

// URLEngagement summarizes reconstructed engagement with one URL.
type URLEngagement struct {
	// URL is the page.
	URL string `json:"url"`

	// TotalTime is the accumulated engaged time across sessions.
	TotalTime time.Duration `json:"totalTime"`

	// TotalMinutes is TotalTime in minutes, for presentation layers that
	// want a plain number.
	TotalMinutes float64 `json:"totalMinutes"`

	// Visits is the number of recorded visits in the window.
	Visits int `json:"visits"`

	// Sessions is the number of reconstructed sessions: maximal visit
	// runs whose consecutive gaps stay below the session threshold.
	Sessions int `json:"sessions"`

	// AvgSession is TotalTime / Sessions.
	AvgSession time.Duration `json:"avgSession"`
}

// TimeSpent reconstructs per-URL engagement from the visit sequences in
// the window, ordered by total engaged time descending.
//
// The walk over a URL's time-sorted visits treats each gap below the
// session threshold as engaged time; a larger gap closes the session and
// opens a new one without contributing time.
func (e *Engine) TimeSpent(ctx context.Context, days int) ([]URLEngagement, error) {
	visits, err := e.store.VisitsSince(ctx, e.cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("load visits window: %w", err)
	}

	byURL := make(map[string][]int64)
	for _, v := range visits {
		byURL[v.URL] = append(byURL[v.URL], v.VisitTime)
	}

	out := make([]URLEngagement, 0, len(byURL))
	for u, times := range byURL {
		total, sessions := accumulateSessions(times, e.sessionGap)

		eng := URLEngagement{
			URL:          u,
			TotalTime:    total,
			TotalMinutes: total.Minutes(),
			Visits:       len(times),
			Sessions:     sessions,
		}
		if sessions > 0 {
			eng.AvgSession = total / time.Duration(sessions)
		}
		out = append(out, eng)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTime != out[j].TotalTime {
			return out[i].TotalTime > out[j].TotalTime
		}
		return out[i].URL < out[j].URL
	})
	return out, nil
}

// accumulateSessions walks a URL's visit timestamps (epoch ms, any order)
// and returns the accumulated sub-threshold gap time plus the session
// count. An empty slice yields zero sessions; a single visit is one
// session with no accumulated time.
func accumulateSessions(times []int64, gap time.Duration) (time.Duration, int) {
	if len(times) == 0 {
		return 0, 0
	}

	sorted := make([]int64, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	sessions := 1
	for i := 1; i < len(sorted); i++ {
		delta := model.TimeFromMillis(sorted[i]).Sub(model.TimeFromMillis(sorted[i-1]))
		if delta < gap {
			total += delta
		} else {
			sessions++
		}
	}
	return total, sessions
}
