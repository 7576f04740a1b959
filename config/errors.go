package config

import "errors"

// Configuration errors returned by Find, Load and Validate.
var (
	ErrConfigNotFound         = errors.New("configuration file not found")
	ErrMissingBaseURL         = errors.New("base URL is required")
	ErrInvalidBaseURL         = errors.New("invalid base URL: must be an absolute http(s) URL")
	ErrInvalidEngine          = errors.New("invalid engine: must be pool or cooperative")
	ErrFollowNeedsCooperative = errors.New("follow_links requires the cooperative engine")
	ErrInvalidTimeout         = errors.New("invalid timeout: must be positive")
	ErrInvalidConcurrency     = errors.New("invalid max concurrent: must be non-negative")
	ErrInvalidBatchSize       = errors.New("invalid batch size: must be positive")
	ErrInvalidRateLimit       = errors.New("invalid rate limit: must be non-negative")
	ErrInvalidRetries         = errors.New("invalid retries: must be non-negative")
	ErrInvalidMemoryLimit     = errors.New("invalid memory limit: must be non-negative")
	ErrInvalidFallbackStatus  = errors.New("invalid fallback status: must be 4xx or 5xx")
	ErrInvalidEnv             = errors.New("invalid environment value")
)
