package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Config.ValidateServe. Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when no URL or file is given to scan.
	ErrNoTarget = errors.New("no target specified: provide one or more URLs or HTML files")

	// ErrNoListenAddress is returned when serve has nowhere to bind.
	ErrNoListenAddress = errors.New("no listen address specified")

	// ErrInvalidTimeout is returned when the page timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidFuzzyThreshold is returned when fuzzy matching is on and the
	// threshold is outside (0, 1].
	ErrInvalidFuzzyThreshold = errors.New("invalid fuzzy threshold: must be in (0, 1]")

	// ErrInvalidClassifierBatchSize is returned when the classifier batch
	// size is not positive.
	ErrInvalidClassifierBatchSize = errors.New("invalid classifier batch size: must be positive")

	// ErrInvalidClassifierTimeout is returned when the classifier timeout is
	// not positive.
	ErrInvalidClassifierTimeout = errors.New("invalid classifier timeout: must be positive")

	// ErrInvalidMaxChunks is returned when the chunk cap is negative.
	ErrInvalidMaxChunks = errors.New("invalid max chunks: must be non-negative")

	// ErrInvalidLogFormat is returned for log formats other than text and json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")
)
