package report

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/webtrail/internal/analytics"
	"github.com/nao1215/webtrail/internal/database"
)

// topEngagementCount bounds the per-URL engagement table in a Summary.
const topEngagementCount = 10

// Summary is one self-contained snapshot of the browsing analytics,
// ready to be rendered by any Writer.
type Summary struct {
	// GeneratedAt is when the summary was assembled.
	GeneratedAt time.Time `json:"generatedAt"`

	// WindowDays is the lookback window the analytics cover.
	WindowDays int `json:"windowDays"`

	// Stats summarizes the underlying store.
	Stats *database.Stats `json:"stats,omitempty"`

	// UniqueSites is the number of distinct root domains in the window.
	UniqueSites int `json:"uniqueSites"`

	// TopDomains ranks domains by accumulated on-site time.
	TopDomains []analytics.DomainStat `json:"topDomains"`

	// FrequentDomains ranks domains by recency-weighted visit frequency.
	FrequentDomains []analytics.DomainScore `json:"frequentDomains"`

	// Engagement lists the most-engaged URLs.
	Engagement []analytics.URLEngagement `json:"engagement"`

	// Transitions summarizes cross-site navigation.
	Transitions *analytics.TransitionSummary `json:"transitions,omitempty"`

	// CoOccurrence counts category labels appearing together.
	CoOccurrence []analytics.LabelPair `json:"coOccurrence"`

	// Trends is the per-day category series.
	Trends []analytics.DayTrend `json:"trends"`

	// Hours is the hour-of-day visit histogram.
	Hours analytics.HourHistogram `json:"hours"`

	// Weekdays is the weekday visit histogram, Sunday first.
	Weekdays []analytics.WeekdayCount `json:"weekdays"`
}

// Analyzer is the analytics surface the Builder consumes. The analytics
// Engine satisfies it.
type Analyzer interface {
	TopDomains(ctx context.Context, days, limit int) ([]analytics.DomainStat, error)
	RecencyFrequency(ctx context.Context, days, limit int) ([]analytics.DomainScore, error)
	UniqueSites(ctx context.Context, days int) (int, error)
	TimeSpent(ctx context.Context, days int) ([]analytics.URLEngagement, error)
	Transitions(ctx context.Context, days int) (*analytics.TransitionSummary, error)
	CategoryCoOccurrence(ctx context.Context, days int) ([]analytics.LabelPair, error)
	CategoryTrends(ctx context.Context, days int) ([]analytics.DayTrend, error)
	VisitHourHistogram(ctx context.Context, days int) (analytics.HourHistogram, error)
	VisitWeekdayHistogram(ctx context.Context, days int) ([]analytics.WeekdayCount, error)
}

// StatsSource provides store statistics for the summary header.
type StatsSource interface {
	GetStats(ctx context.Context) (*database.Stats, error)
}

// Builder assembles a Summary from the analytics engine and the store.
type Builder struct {
	analyzer Analyzer
	stats    StatsSource
	limit    int
	now      func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithTopLimit caps the ranked tables in the summary.
func WithTopLimit(limit int) BuilderOption {
	return func(b *Builder) {
		if limit > 0 {
			b.limit = limit
		}
	}
}

// WithBuilderClock overrides the time source; tests pin GeneratedAt
// with it.
func WithBuilderClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder creates a summary Builder.
func NewBuilder(analyzer Analyzer, stats StatsSource, opts ...BuilderOption) *Builder {
	b := &Builder{
		analyzer: analyzer,
		stats:    stats,
		limit:    topEngagementCount,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs every aggregation over the given window and collects the
// results. Any single failing aggregation fails the build: a report with
// silently missing sections would be worse than no report.
func (b *Builder) Build(ctx context.Context, days int) (*Summary, error) {
	s := &Summary{
		GeneratedAt: b.now(),
		WindowDays:  days,
	}

	var err error
	if s.TopDomains, err = b.analyzer.TopDomains(ctx, days, b.limit); err != nil {
		return nil, fmt.Errorf("collect top domains: %w", err)
	}
	if s.FrequentDomains, err = b.analyzer.RecencyFrequency(ctx, days, b.limit); err != nil {
		return nil, fmt.Errorf("collect frequent domains: %w", err)
	}
	if s.UniqueSites, err = b.analyzer.UniqueSites(ctx, days); err != nil {
		return nil, fmt.Errorf("count unique sites: %w", err)
	}
	if s.Engagement, err = b.analyzer.TimeSpent(ctx, days); err != nil {
		return nil, fmt.Errorf("collect engagement: %w", err)
	}
	if len(s.Engagement) > b.limit {
		s.Engagement = s.Engagement[:b.limit]
	}
	if s.Transitions, err = b.analyzer.Transitions(ctx, days); err != nil {
		return nil, fmt.Errorf("collect transitions: %w", err)
	}
	if s.CoOccurrence, err = b.analyzer.CategoryCoOccurrence(ctx, days); err != nil {
		return nil, fmt.Errorf("collect co-occurrence: %w", err)
	}
	if len(s.CoOccurrence) > b.limit {
		s.CoOccurrence = s.CoOccurrence[:b.limit]
	}
	if s.Trends, err = b.analyzer.CategoryTrends(ctx, days); err != nil {
		return nil, fmt.Errorf("collect trends: %w", err)
	}
	if s.Hours, err = b.analyzer.VisitHourHistogram(ctx, days); err != nil {
		return nil, fmt.Errorf("collect hour histogram: %w", err)
	}
	if s.Weekdays, err = b.analyzer.VisitWeekdayHistogram(ctx, days); err != nil {
		return nil, fmt.Errorf("collect weekday histogram: %w", err)
	}

	if b.stats != nil {
		if s.Stats, err = b.stats.GetStats(ctx); err != nil {
			return nil, fmt.Errorf("collect store stats: %w", err)
		}
	}
	return s, nil
}
