package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/webtrail/internal/model"
)

// ProgressEvent is a telemetry event emitted by the classification service
// (model download progress, engine warm-up stages). Events are forwarded
// to a registered observer and never alter classification results.
type ProgressEvent struct {
	// Stage names the service activity, e.g. "download" or "activate".
	Stage string

	// Loaded and Total describe stage progress when the service reports
	// it; both are zero for stages without measurable progress.
	Loaded int64
	Total  int64
}

// Service is the external classification engine consumed by the Gateway.
//
// Design decision: webtrail does not ship an engine; browsers and sidecar
// model servers provide one. An interface keeps the pipeline testable and
// the engine swappable.
type Service interface {
	// IsReady reports whether the engine can accept classification calls.
	IsReady(ctx context.Context) (bool, error)

	// RequestCapability asks the user (or host environment) for
	// permission to classify browsing data. False means refused.
	RequestCapability(ctx context.Context) (bool, error)

	// Activate performs the one-time engine activation. Activation is
	// idempotent; calling it twice is wasteful but harmless.
	Activate(ctx context.Context) error

	// Run classifies a text payload and returns ranked (label, score)
	// pairs, highest confidence first.
	Run(ctx context.Context, text string) ([]model.Category, error)

	// OnProgress registers a callback for service telemetry events.
	OnProgress(fn func(ProgressEvent))
}

// CategoryStore persists classification results.
type CategoryStore interface {
	StoreCategory(ctx context.Context, rec model.CategoryRecord) error
}

// Session holds the per-session protocol state: whether the engine was
// prepared (ready + capability + activated) and whether the capability
// grant was refused.
//
// Design decision: the session is an explicit object handed to the
// Gateway rather than ambient package state, so tests and long-running
// hosts control session boundaries. Concurrent first calls may both run
// the preparation protocol; the flags are last-write-wins, which is safe
// because every step of the protocol is idempotent.
type Session struct {
	mu       sync.Mutex
	prepared bool
	denied   bool
}

// NewSession returns a fresh session with no recorded state.
func NewSession() *Session {
	return &Session{}
}

func (s *Session) isPrepared() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepared
}

func (s *Session) markPrepared() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepared = true
}

func (s *Session) isDenied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.denied
}

func (s *Session) markDenied() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied = true
}

// Gateway mediates between the ingestion pipeline and the classification
// service: it runs the session preparation protocol, applies the
// confidence threshold, and persists the resulting category records.
type Gateway struct {
	service Service
	store   CategoryStore
	session *Session

	threshold    float64
	readyTimeout time.Duration
	pollInterval time.Duration

	logger   *slog.Logger
	observer func(ProgressEvent)
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithThreshold sets the minimum confidence a category must reach to be
// persisted. Default 0.5.
func WithThreshold(threshold float64) GatewayOption {
	return func(g *Gateway) {
		g.threshold = threshold
	}
}

// WithReadyTimeout bounds the readiness wait. Default 30s.
func WithReadyTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.readyTimeout = d
	}
}

// WithPollInterval sets the readiness polling cadence. Default 500ms.
func WithPollInterval(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.pollInterval = d
	}
}

// WithGatewayLogger sets a custom logger.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway creates a Gateway over the given service and store, scoped to
// the given session.
func NewGateway(service Service, store CategoryStore, session *Session, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		service:      service,
		store:        store,
		session:      session,
		threshold:    0.5,
		readyTimeout: 30 * time.Second,
		pollInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}

	g.service.OnProgress(func(ev ProgressEvent) {
		// Telemetry is forwarded, never acted on.
		if g.observer != nil {
			g.observer(ev)
		}
	})

	return g
}

// SetObserver registers a progress observer. Passing nil removes it.
func (g *Gateway) SetObserver(fn func(ProgressEvent)) {
	g.observer = fn
}

// Classify classifies one history item and persists the resulting
// category record. It returns the persisted categories.
//
// Failure modes: ErrEngineUnavailable when the engine never becomes
// ready, ErrPermissionDenied when the capability grant was refused (now
// or earlier in this session). Either failure leaves no record behind.
func (g *Gateway) Classify(ctx context.Context, item model.HistoryItem) ([]model.Category, error) {
	if err := g.prepare(ctx); err != nil {
		return nil, err
	}

	input := strings.TrimSpace(item.URL + " " + item.Title)
	results, err := g.service.Run(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: run failed: %v", ErrEngineUnavailable, err)
	}

	kept := make([]model.Category, 0, len(results))
	for _, c := range results {
		if c.Score >= g.threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		kept = model.Uncategorized()
	}

	rec := model.CategoryRecord{
		URL:           item.URL,
		Categories:    kept,
		LastVisitTime: item.LastVisitTime,
	}
	if err := g.store.StoreCategory(ctx, rec); err != nil {
		return nil, fmt.Errorf("store category record: %w", err)
	}

	g.logger.Debug("classified page",
		"url", item.URL,
		"top_category", kept[0].Label,
		"categories", len(kept),
	)
	return kept, nil
}

// prepare runs the one-time session protocol: bounded readiness poll,
// capability grant, engine activation.
func (g *Gateway) prepare(ctx context.Context) error {
	if g.session.isDenied() {
		return ErrPermissionDenied
	}
	if g.session.isPrepared() {
		return nil
	}

	if err := g.awaitReady(ctx); err != nil {
		return err
	}

	granted, err := g.service.RequestCapability(ctx)
	if err != nil {
		return fmt.Errorf("%w: capability request failed: %v", ErrEngineUnavailable, err)
	}
	if !granted {
		g.session.markDenied()
		return ErrPermissionDenied
	}

	if err := g.service.Activate(ctx); err != nil {
		return fmt.Errorf("%w: activation failed: %v", ErrEngineUnavailable, err)
	}

	g.session.markPrepared()
	g.logger.Info("classification engine activated")
	return nil
}

// awaitReady polls the service until it reports ready or the bounded wait
// expires. Probe errors are treated as "not yet ready" until the deadline;
// a flaky service during model load is expected.
func (g *Gateway) awaitReady(ctx context.Context) error {
	deadline := time.Now().Add(g.readyTimeout)

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		ready, err := g.service.IsReady(ctx)
		if err == nil && ready {
			return nil
		}
		if err != nil {
			g.logger.Debug("readiness probe failed", "error", err)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: not ready after %s", ErrEngineUnavailable, g.readyTimeout)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrEngineUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
}
