package classify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/webtrail/internal/model"
)

// fakeService is an in-memory Service implementation for gateway tests.
type fakeService struct {
	mu          sync.Mutex
	readyAfter  int // number of IsReady calls before reporting ready
	readyCalls  int
	grant       bool
	grantCalls  int
	activations int
	results     []model.Category
	runErr      error
	progress    func(ProgressEvent)
}

func (f *fakeService) IsReady(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readyCalls++
	return f.readyCalls > f.readyAfter, nil
}

func (f *fakeService) RequestCapability(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grantCalls++
	return f.grant, nil
}

func (f *fakeService) Activate(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activations++
	if f.progress != nil {
		f.progress(ProgressEvent{Stage: "activate"})
	}
	return nil
}

func (f *fakeService) Run(_ context.Context, _ string) ([]model.Category, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.results, nil
}

func (f *fakeService) OnProgress(fn func(ProgressEvent)) {
	f.progress = fn
}

// memStore records stored category records.
type memStore struct {
	mu      sync.Mutex
	records []model.CategoryRecord
}

func (m *memStore) StoreCategory(_ context.Context, rec model.CategoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) last(t *testing.T) model.CategoryRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		t.Fatal("no record stored")
	}
	return m.records[len(m.records)-1]
}

func testItem() model.HistoryItem {
	return model.HistoryItem{
		URL:           "https://example.com/article",
		Title:         "An Article",
		LastVisitTime: 1700000000000,
	}
}

// fastOpts shortens the readiness poll for tests.
func fastOpts(extra ...GatewayOption) []GatewayOption {
	return append([]GatewayOption{
		WithReadyTimeout(200 * time.Millisecond),
		WithPollInterval(10 * time.Millisecond),
	}, extra...)
}

// TestClassifyThreshold tests confidence gating and ranking preservation.
func TestClassifyThreshold(t *testing.T) {
	t.Parallel()

	t.Run("keeps results above threshold in order", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{grant: true, results: []model.Category{
			{Label: "Technology", Score: 0.9},
			{Label: "News", Score: 0.6},
			{Label: "Shopping", Score: 0.3},
		}}
		store := &memStore{}
		g := NewGateway(svc, store, NewSession(), fastOpts()...)

		got, err := g.Classify(context.Background(), testItem())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0].Label != "Technology" || got[1].Label != "News" {
			t.Errorf("unexpected categories: %+v", got)
		}

		rec := store.last(t)
		if rec.URL != testItem().URL || rec.LastVisitTime != testItem().LastVisitTime {
			t.Errorf("unexpected stored record: %+v", rec)
		}
	})

	t.Run("below-threshold result stores Uncategorized", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{grant: true, results: []model.Category{
			{Label: "X", Score: 0.4},
		}}
		store := &memStore{}
		g := NewGateway(svc, store, NewSession(), fastOpts(WithThreshold(0.5))...)

		got, err := g.Classify(context.Background(), testItem())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].Label != model.UncategorizedLabel || got[0].Score != 0 {
			t.Errorf("expected Uncategorized fallback, got %+v", got)
		}
	})
}

// TestClassifyReadiness tests the bounded readiness poll.
func TestClassifyReadiness(t *testing.T) {
	t.Parallel()

	t.Run("waits for service to become ready", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{readyAfter: 3, grant: true, results: []model.Category{{Label: "News", Score: 0.8}}}
		g := NewGateway(svc, &memStore{}, NewSession(), fastOpts()...)

		if _, err := g.Classify(context.Background(), testItem()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc.readyCalls < 4 {
			t.Errorf("expected at least 4 readiness probes, got %d", svc.readyCalls)
		}
	})

	t.Run("never-ready service fails terminally", func(t *testing.T) {
		t.Parallel()

		svc := &fakeService{readyAfter: 1 << 30, grant: true}
		g := NewGateway(svc, &memStore{}, NewSession(), fastOpts()...)

		_, err := g.Classify(context.Background(), testItem())
		if !errors.Is(err, ErrEngineUnavailable) {
			t.Errorf("expected ErrEngineUnavailable, got %v", err)
		}
	})
}

// TestClassifyPermission tests capability denial handling.
func TestClassifyPermission(t *testing.T) {
	t.Parallel()

	svc := &fakeService{grant: false}
	g := NewGateway(svc, &memStore{}, NewSession(), fastOpts()...)
	ctx := context.Background()

	_, err := g.Classify(ctx, testItem())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	// Denial is remembered: no new grant request is made.
	_, err = g.Classify(ctx, testItem())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied on retry, got %v", err)
	}
	if svc.grantCalls != 1 {
		t.Errorf("expected exactly 1 grant request, got %d", svc.grantCalls)
	}
}

// TestClassifyActivatesOnce tests one-time activation per session.
func TestClassifyActivatesOnce(t *testing.T) {
	t.Parallel()

	svc := &fakeService{grant: true, results: []model.Category{{Label: "News", Score: 0.8}}}
	g := NewGateway(svc, &memStore{}, NewSession(), fastOpts()...)
	ctx := context.Background()

	for range 3 {
		if _, err := g.Classify(ctx, testItem()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if svc.activations != 1 {
		t.Errorf("expected 1 activation, got %d", svc.activations)
	}

	// A fresh session runs the protocol again.
	g2 := NewGateway(svc, &memStore{}, NewSession(), fastOpts()...)
	if _, err := g2.Classify(ctx, testItem()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.activations != 2 {
		t.Errorf("expected fresh session to re-activate, got %d activations", svc.activations)
	}
}

// TestProgressObserver tests that service telemetry reaches the observer.
func TestProgressObserver(t *testing.T) {
	t.Parallel()

	svc := &fakeService{grant: true, results: []model.Category{{Label: "News", Score: 0.8}}}
	g := NewGateway(svc, &memStore{}, NewSession(), fastOpts()...)

	var events atomic.Int32
	g.SetObserver(func(ProgressEvent) { events.Add(1) })

	if _, err := g.Classify(context.Background(), testItem()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events.Load() == 0 {
		t.Error("expected at least one forwarded progress event")
	}
}

// TestHTTPService tests the sidecar client against httptest.
func TestHTTPService(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /capability", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"granted": true}`))
	})
	mux.HandleFunc("POST /activate", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /classify", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"label": "News", "score": 0.82}, {"label": "Sports", "score": 0.4}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc := NewHTTPService(srv.URL, WithServiceHTTPClient(srv.Client()))
	ctx := context.Background()

	ready, err := svc.IsReady(ctx)
	if err != nil || !ready {
		t.Fatalf("expected ready, got ready=%v err=%v", ready, err)
	}

	granted, err := svc.RequestCapability(ctx)
	if err != nil || !granted {
		t.Fatalf("expected grant, got granted=%v err=%v", granted, err)
	}

	if err := svc.Activate(ctx); err != nil {
		t.Fatalf("activation failed: %v", err)
	}

	results, err := svc.Run(ctx, "https://example.com Example")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(results) != 2 || results[0].Label != "News" || results[0].Score != 0.82 {
		t.Errorf("unexpected results: %+v", results)
	}
}
