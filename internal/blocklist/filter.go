package blocklist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nao1215/webtrail/internal/model"
)

// maxListSize limits how much of a rule list is read. Published lists are
// a few megabytes at most; anything larger is a misconfigured URL.
const maxListSize = 16 * 1024 * 1024

// ErrEmptyURL is returned when the filter is constructed without a source URL.
var ErrEmptyURL = errors.New("blocklist: source URL is empty")

// Filter applies blocklist rules to URLs. The rule list is fetched lazily
// on first use; see the package documentation for the loading and matching
// semantics.
//
// Design decision: The filter is an explicitly constructed value rather
// than a package-level singleton so tests can build isolated instances and
// inject fetch behavior through the HTTP client.
type Filter struct {
	url    string
	extra  []string
	client *http.Client
	logger *slog.Logger

	// group collapses concurrent first-callers into one fetch.
	group singleflight.Group

	// mu guards snap. The snapshot pointer is swapped atomically under
	// the lock; readers observe either the previous snapshot or the
	// fully-built new one, never a partial state.
	mu   sync.RWMutex
	snap *Snapshot
}

// Option configures a Filter.
type Option func(*Filter)

// WithHTTPClient sets the HTTP client used to fetch the rule list.
// The default client has a 30 second timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Filter) {
		f.client = client
	}
}

// WithLogger sets a custom logger for the filter.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

// WithExtraDomains adds locally configured domains to every loaded
// snapshot, normalized like remote rules.
func WithExtraDomains(domains []string) Option {
	return func(f *Filter) {
		f.extra = domains
	}
}

// New creates a Filter that loads its rules from url on first use.
func New(url string, opts ...Option) (*Filter, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}

	f := &Filter{url: url}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: 30 * time.Second}
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f, nil
}

// IsBlocked reports whether rawURL should be excluded from ingestion.
//
// Unparseable URLs are blocked, and any state in which the rules cannot
// be consulted (never loaded, load failed) also blocks: admitting traffic
// that was never vetted is the one failure mode this filter must not have.
func (f *Filter) IsBlocked(ctx context.Context, rawURL string) bool {
	host, err := model.HostnameOf(rawURL)
	if err != nil {
		return true
	}

	snap, err := f.snapshot(ctx)
	if err != nil {
		f.logger.Warn("blocklist unavailable, failing closed", "error", err)
		return true
	}

	return snap.Blocked(host)
}

// snapshot returns the current snapshot, loading it if necessary.
// Concurrent callers during a load share one in-flight fetch.
func (f *Filter) snapshot(ctx context.Context) (*Snapshot, error) {
	f.mu.RLock()
	snap := f.snap
	f.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	v, err, _ := f.group.Do("load", func() (any, error) {
		// Another caller may have completed the load while this one
		// waited on the group.
		f.mu.RLock()
		cur := f.snap
		f.mu.RUnlock()
		if cur != nil {
			return cur, nil
		}
		return f.load(ctx)
	})
	if err != nil {
		// Reset to "not loaded" so the next call retries the fetch.
		return nil, err
	}
	return v.(*Snapshot), nil
}

// load fetches and parses the rule list, publishing the new snapshot on
// success. On failure the filter stays in the unloaded state.
func (f *Filter) load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build blocklist request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch blocklist: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch blocklist: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListSize))
	if err != nil {
		return nil, fmt.Errorf("read blocklist: %w", err)
	}

	snap, err := Parse(string(body), f.extra)
	if err != nil {
		return nil, fmt.Errorf("parse blocklist: %w", err)
	}

	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()

	f.logger.Info("blocklist loaded",
		"rules", snap.Len(),
		"elapsed", time.Since(start),
	)
	return snap, nil
}

// Reload discards the current snapshot and fetches the list again.
// Readers keep the previous snapshot until the new one is fully built.
func (f *Filter) Reload(ctx context.Context) error {
	_, err := f.load(ctx)
	return err
}

// Loaded reports whether a snapshot is available.
func (f *Filter) Loaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap != nil
}
