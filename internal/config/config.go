package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These mirror the behavior of mainstream browser-history tooling where
// applicable and are chosen to be safe for unattended operation.
const (
	// DefaultLookbackDays is the ingestion and analytics window.
	// 90 days covers a quarter of browsing while keeping recomputed
	// aggregations fast; older data is reachable by raising the flag.
	DefaultLookbackDays = 90

	// DefaultClassifyThreshold is the minimum confidence a category must
	// reach to be persisted. 0.5 discards the long tail of low-confidence
	// guesses most on-device classifiers emit for every input.
	DefaultClassifyThreshold = 0.5

	// DefaultSessionGap is the maximum interval between two visits to the
	// same URL that still counts as continuous engagement. 30 minutes is
	// the de facto standard session boundary in web analytics.
	DefaultSessionGap = 30 * time.Minute

	// DefaultClassifyReadyTimeout bounds the wait for the classification
	// service to become ready. Model loading dominates this; 30 seconds is
	// generous for warm starts and terminal for broken installs.
	DefaultClassifyReadyTimeout = 30 * time.Second

	// DefaultClassifyPollInterval is the readiness polling cadence.
	// 500ms keeps first-classification latency low without hammering the
	// service's status endpoint.
	DefaultClassifyPollInterval = 500 * time.Millisecond

	// DefaultClassifyConcurrency is the number of classification calls in
	// flight during a batch ingest. On-device classifiers are usually
	// single-model; 4 keeps the queue full without starving the host.
	DefaultClassifyConcurrency = 4

	// DefaultBlocklistTimeout is the HTTP timeout for fetching the remote
	// blocklist. The list is a small text file; anything slower than this
	// indicates a dead mirror and should fail fast (the filter fails
	// closed until a load succeeds).
	DefaultBlocklistTimeout = 30 * time.Second

	// DefaultBlocklistURL is the rule list fetched on first use.
	// Any plain-domain or regex-format list can be substituted via
	// configuration.
	DefaultBlocklistURL = "https://raw.githubusercontent.com/blocklistproject/Lists/master/ads.txt"

	// DefaultServeAddr is the listen address for the query API.
	// Loopback only: the query surface exposes browsing history and must
	// not be reachable off-host unless the operator opts in.
	DefaultServeAddr = "127.0.0.1:8478"

	// DefaultTopLimit is the default result size for ranked queries
	// (top domains, most visited, recency-frequency).
	DefaultTopLimit = 10

	// AppName is the application name used for XDG directory paths.
	AppName = "webtrail"
)

// Config holds all configuration options for webtrail.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., BlocklistConfig, ClassifyConfig) for simplicity. The number of
// options is manageable, and nesting would add complexity without
// significant benefit.
type Config struct {
	// LookbackDays is the time window, in days before now, that ingestion
	// fetches and analytics queries consider.
	LookbackDays int

	// DBDir is the directory holding the SQLite database file.
	// Defaults to the XDG data directory (~/.local/share/webtrail on Linux).
	DBDir string

	// BlocklistURL is the HTTP(S) location of the domain blocklist.
	BlocklistURL string

	// BlocklistTimeout bounds the blocklist fetch.
	BlocklistTimeout time.Duration

	// ExtraDenylist contains additional domains to block, merged with the
	// remote list. Entries are normalized like remote rules (lowercased,
	// leading wildcard stripped).
	ExtraDenylist []string

	// ClassifierURL is the base URL of the classification service.
	// Empty disables classification; items are still ingested and
	// classified later when a service is available.
	ClassifierURL string

	// ClassifyThreshold is the minimum category confidence to persist.
	ClassifyThreshold float64

	// ClassifyReadyTimeout bounds the wait for service readiness.
	ClassifyReadyTimeout time.Duration

	// ClassifyPollInterval is the readiness polling cadence.
	ClassifyPollInterval time.Duration

	// ClassifyConcurrency is the number of concurrent classification
	// calls during batch ingestion.
	ClassifyConcurrency int

	// SessionGap is the session boundary for time-on-site reconstruction.
	SessionGap time.Duration

	// ServeAddr is the listen address of the query API server.
	ServeAddr string

	// Verbose enables slog.LevelDebug output.
	Verbose bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases; callers override specific values after creation.
func NewConfig() *Config {
	return &Config{
		LookbackDays:         DefaultLookbackDays,
		DBDir:                XDGDataDir(),
		BlocklistURL:         DefaultBlocklistURL,
		BlocklistTimeout:     DefaultBlocklistTimeout,
		ClassifyThreshold:    DefaultClassifyThreshold,
		ClassifyReadyTimeout: DefaultClassifyReadyTimeout,
		ClassifyPollInterval: DefaultClassifyPollInterval,
		ClassifyConcurrency:  DefaultClassifyConcurrency,
		SessionGap:           DefaultSessionGap,
		ServeAddr:            DefaultServeAddr,
	}
}

// XDGDataDir returns the XDG data directory for webtrail.
// On Linux: ~/.local/share/webtrail
// On macOS: ~/Library/Application Support/webtrail
// On Windows: %LOCALAPPDATA%\webtrail
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webtrail.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first error found; fixing one error often makes
// subsequent ones irrelevant.
func (c *Config) Validate() error {
	if c.LookbackDays <= 0 {
		return ErrInvalidLookback
	}
	if c.ClassifyThreshold < 0 || c.ClassifyThreshold > 1 {
		return ErrInvalidThreshold
	}
	if c.SessionGap <= 0 {
		return ErrInvalidSessionGap
	}
	if c.ClassifyPollInterval <= 0 || c.ClassifyReadyTimeout < c.ClassifyPollInterval {
		return ErrInvalidPollInterval
	}
	if c.ClassifyConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BlocklistTimeout <= 0 {
		return ErrInvalidBlocklistTimeout
	}
	return nil
}
