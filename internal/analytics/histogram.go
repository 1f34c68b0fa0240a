package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/webtrail/internal/model"
)

// HourHistogram holds the average number of visits per hour of day
// (index 0-23), averaged over the distinct calendar days observed in the
// window. Averaging rather than summing keeps short and long windows
// comparable.
type HourHistogram [24]float64

// WeekdayCount is one weekday's visit total.
type WeekdayCount struct {
	// Day is the weekday name ("Sunday" .. "Saturday").
	Day string `json:"day"`

	// Count is the number of visits on that weekday in the window.
	Count int `json:"count"`
}

// VisitHourHistogram buckets the window's visits by hour of day (UTC)
// and normalizes each bucket by the number of distinct calendar days
// that have at least one visit.
func (e *Engine) VisitHourHistogram(ctx context.Context, days int) (HourHistogram, error) {
	var hist HourHistogram

	visits, err := e.store.VisitsSince(ctx, e.cutoff(days))
	if err != nil {
		return hist, fmt.Errorf("load visits window: %w", err)
	}

	var sums [24]int
	observedDays := make(map[string]struct{})
	for _, v := range visits {
		t := model.TimeFromMillis(v.VisitTime).UTC()
		sums[t.Hour()]++
		observedDays[t.Format(time.DateOnly)] = struct{}{}
	}

	if len(observedDays) == 0 {
		return hist, nil
	}
	for hour, sum := range sums {
		hist[hour] = float64(sum) / float64(len(observedDays))
	}
	return hist, nil
}

// VisitWeekdayHistogram buckets the window's visits by weekday (UTC),
// returned in Sunday-first order.
func (e *Engine) VisitWeekdayHistogram(ctx context.Context, days int) ([]WeekdayCount, error) {
	visits, err := e.store.VisitsSince(ctx, e.cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("load visits window: %w", err)
	}

	var sums [7]int
	for _, v := range visits {
		sums[model.TimeFromMillis(v.VisitTime).UTC().Weekday()]++
	}

	out := make([]WeekdayCount, 7)
	for i := range sums {
		out[i] = WeekdayCount{Day: time.Weekday(i).String(), Count: sums[i]}
	}
	return out, nil
}
