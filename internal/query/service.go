package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/webtrail/internal/analytics"
	"github.com/nao1215/webtrail/internal/config"
	"github.com/nao1215/webtrail/internal/database"
	"github.com/nao1215/webtrail/internal/model"
)

// Operation names accepted by the query surface.
const (
	OpGetHistory           = "getHistory"
	OpGetVisits            = "getVisits"
	OpGetMostVisited       = "getMostVisited"
	OpGetTopVisitedDomains = "getTopVisitedDomains"
)

// Store is the read surface the service queries.
type Store interface {
	// HistorySince returns history events at or after the given epoch
	// milliseconds.
	HistorySince(ctx context.Context, since int64) ([]model.HistoryItem, error)
	// VisitsForURL returns the visit records of one URL, time ascending.
	VisitsForURL(ctx context.Context, url string) ([]model.VisitDetail, error)
	// MostVisited returns the most visited URLs in the window.
	MostVisited(ctx context.Context, since int64, limit int) ([]model.HistoryItem, error)
	// GetStats returns aggregate store statistics.
	GetStats(ctx context.Context) (*database.Stats, error)
}

// Aggregator computes the domain ranking behind getTopVisitedDomains.
type Aggregator interface {
	TopDomains(ctx context.Context, days, limit int) ([]analytics.DomainStat, error)
}

// Request is one query-surface invocation.
type Request struct {
	// Op names the operation.
	Op string `json:"op"`

	// Params carries the operation's arguments; unused members are
	// ignored.
	Params Params `json:"params"`
}

// Params holds the union of all operation arguments.
type Params struct {
	// Days is the lookback window. Non-positive values take the
	// configured default.
	Days int `json:"days,omitempty"`

	// URL selects the page for getVisits.
	URL string `json:"url,omitempty"`

	// Limit caps ranked results. Non-positive values take the configured
	// default.
	Limit int `json:"limit,omitempty"`
}

// Response is the uniform envelope of every operation.
type Response struct {
	// Success reports whether the operation completed.
	Success bool `json:"success"`

	// Data is the operation result, present on success.
	Data any `json:"data,omitempty"`

	// Stats summarizes the store at response time, present on success
	// when the store could be sampled.
	Stats *database.Stats `json:"stats,omitempty"`

	// Error describes the failure, present when Success is false.
	Error string `json:"error,omitempty"`
}

// Service dispatches query-surface operations over a store and an
// analytics aggregator.
type Service struct {
	store       Store
	aggregator  Aggregator
	logger      *slog.Logger
	now         func() time.Time
	defaultDays int
	defaultTop  int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets a custom logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithServiceClock overrides the time source; tests pin windows with it.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithDefaultDays sets the lookback window used when a request omits
// days.
func WithDefaultDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.defaultDays = days
		}
	}
}

// WithDefaultLimit sets the result cap used when a request omits limit.
func WithDefaultLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.defaultTop = limit
		}
	}
}

// NewService creates a query Service.
func NewService(store Store, aggregator Aggregator, opts ...ServiceOption) *Service {
	s := &Service{
		store:       store,
		aggregator:  aggregator,
		now:         time.Now,
		defaultDays: config.DefaultLookbackDays,
		defaultTop:  config.DefaultTopLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Do executes one request and folds any failure into the envelope. It
// never returns an error: the envelope is the whole contract.
func (s *Service) Do(ctx context.Context, req Request) Response {
	var (
		data any
		err  error
	)

	switch req.Op {
	case OpGetHistory:
		data, err = s.store.HistorySince(ctx, s.cutoff(req.Params.Days))
	case OpGetVisits:
		if req.Params.URL == "" {
			return failure(fmt.Errorf("%s: url parameter is required", req.Op))
		}
		data, err = s.store.VisitsForURL(ctx, req.Params.URL)
	case OpGetMostVisited:
		data, err = s.store.MostVisited(ctx, s.cutoff(req.Params.Days), s.limit(req.Params.Limit))
	case OpGetTopVisitedDomains:
		data, err = s.aggregator.TopDomains(ctx, s.days(req.Params.Days), s.limit(req.Params.Limit))
	default:
		return failure(fmt.Errorf("unknown operation %q", req.Op))
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "query operation failed", "op", req.Op, "error", err)
		return failure(fmt.Errorf("%s: %w", req.Op, err))
	}

	resp := Response{Success: true, Data: data}
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		// Stats decorate the response; their failure must not reject a
		// successful operation.
		s.logger.WarnContext(ctx, "stats unavailable", "op", req.Op, "error", err)
	} else {
		resp.Stats = stats
	}
	return resp
}

// days resolves a requested lookback window against the default.
func (s *Service) days(days int) int {
	if days <= 0 {
		return s.defaultDays
	}
	return days
}

// limit resolves a requested result cap against the default.
func (s *Service) limit(limit int) int {
	if limit <= 0 {
		return s.defaultTop
	}
	return limit
}

// cutoff converts a lookback window to an epoch-millisecond lower bound.
func (s *Service) cutoff(days int) int64 {
	return model.MillisFromTime(s.now().AddDate(0, 0, -s.days(days)))
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}
