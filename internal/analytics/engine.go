package analytics

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/webtrail/internal/model"
)

// Store is the read surface the engine queries. All methods take an
// epoch-millisecond lower bound.
type Store interface {
	HistorySince(ctx context.Context, since int64) ([]model.HistoryItem, error)
	VisitsSince(ctx context.Context, since int64) ([]model.VisitDetail, error)
	CategoriesSince(ctx context.Context, since int64) ([]model.CategoryRecord, error)
}

// Engine computes analytics over a Store.
type Engine struct {
	store      Store
	sessionGap time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSessionGap sets the session boundary used by time-spent and
// top-domain duration reconstruction. Default 30 minutes.
func WithSessionGap(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.sessionGap = d
	}
}

// WithEngineLogger sets a custom logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEngineClock overrides the time source; tests pin the window with it.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an analytics Engine over the given store.
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      store,
		sessionGap: 30 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// cutoff returns the epoch-millisecond lower bound for a lookback window.
func (e *Engine) cutoff(days int) int64 {
	return model.MillisFromTime(e.now().AddDate(0, 0, -days))
}

// rootDomain reduces a hostname to its effective root domain using
// public-suffix-aware parsing. Hostnames that cannot be reduced (bare
// TLDs, IP literals, intranet names) are returned as-is: for analytics
// grouping a coarse bucket beats dropping the data.
func rootDomain(host string) string {
	if root, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return root
	}
	return host
}

// urlRootDomain extracts the effective root domain of a URL, falling back
// to the empty string for URLs without a hostname.
func urlRootDomain(rawURL string) string {
	host, err := model.HostnameOf(rawURL)
	if err != nil {
		return ""
	}
	return rootDomain(host)
}
