package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrInvalidLookback is returned when the lookback window is not
	// positive. A zero window would make every ingest and query empty.
	ErrInvalidLookback = errors.New("invalid lookback window: must be a positive number of days")

	// ErrInvalidThreshold is returned when the classification threshold
	// is outside [0, 1]. Confidence scores are probabilities.
	ErrInvalidThreshold = errors.New("invalid classification threshold: must be within [0, 1]")

	// ErrInvalidSessionGap is returned when the session gap is not
	// positive. A zero gap would split every visit into its own session.
	ErrInvalidSessionGap = errors.New("invalid session gap: must be positive")

	// ErrInvalidPollInterval is returned when the readiness poll interval
	// is not positive or exceeds the readiness timeout.
	ErrInvalidPollInterval = errors.New("invalid poll interval: must be positive and not exceed the ready timeout")

	// ErrInvalidConcurrency is returned when the classification
	// concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid classify concurrency: must be positive")

	// ErrInvalidBlocklistTimeout is returned when the blocklist fetch
	// timeout is not positive.
	ErrInvalidBlocklistTimeout = errors.New("invalid blocklist timeout: must be positive")
)
