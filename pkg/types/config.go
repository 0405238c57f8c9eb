// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "genpaper/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ResolverConfig holds settings for the source resolver.
type ResolverConfig struct {
	HTTPConfig `yaml:",inline"`

	// CatalogAPIKey is an optional API key for the paper catalog backend.
	CatalogAPIKey string `json:"catalog_api_key,omitempty" yaml:"catalog_api_key,omitempty"`

	// CrossrefMailto is included in Crossref requests for the polite pool.
	CrossrefMailto string `json:"crossref_mailto,omitempty" yaml:"crossref_mailto,omitempty"`

	// ResolveTimeout bounds a single resolution call, retries included
	// (default 10s).
	ResolveTimeout time.Duration `json:"resolve_timeout" yaml:"resolve_timeout"`
}

// RateLimitConfig holds the per-project admission control settings.
// Both limits are rolling-window budgets; requests over budget are rejected,
// never queued.
type RateLimitConfig struct {
	// Window is the rolling window duration (default 1m).
	Window time.Duration `json:"window" yaml:"window"`

	// BatchesPerWindow bounds batch resolution calls per project (default 30).
	BatchesPerWindow int `json:"batches_per_window" yaml:"batches_per_window"`

	// UnitsPerWindow bounds citation-creation units per project (default 120).
	UnitsPerWindow int `json:"units_per_window" yaml:"units_per_window"`
}

// BatchConfig holds settings for the batch orchestrator.
type BatchConfig struct {
	// Concurrency bounds parallel resolution calls within one batch
	// (default 10).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// MaxRetries is the number of extra attempts after the first failure
	// of a single item (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryBaseDelay is the initial backoff delay, doubled per attempt
	// (default 200ms).
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`
}

// StreamConfig holds settings for the stream reconciler.
type StreamConfig struct {
	// SentenceWindow is the number of complete sentences buffered before a
	// resolution window is triggered (default 3).
	SentenceWindow int `json:"sentence_window" yaml:"sentence_window"`

	// PlaceholderBackpressure triggers a window early when this many
	// distinct unresolved placeholders accumulate (default 2x batch
	// concurrency).
	PlaceholderBackpressure int `json:"placeholder_backpressure" yaml:"placeholder_backpressure"`

	// BufferCeiling is the absolute raw-buffer size in bytes beyond which
	// the buffer is force-flushed without a sentence boundary (default 10000).
	BufferCeiling int `json:"buffer_ceiling" yaml:"buffer_ceiling"`

	// Style selects the inline citation style: "numeric" or "author-year".
	Style string `json:"style" yaml:"style"`
}

// StoreConfig holds settings for the citation store.
type StoreConfig struct {
	// Path is the SQLite database file (default "genpaper.db").
	Path string `json:"path" yaml:"path"`
}

// Config aggregates all engine settings.
type Config struct {
	Resolver  ResolverConfig  `json:"resolver" yaml:"resolver"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Batch     BatchConfig     `json:"batch" yaml:"batch"`
	Stream    StreamConfig    `json:"stream" yaml:"stream"`
	Store     StoreConfig     `json:"store" yaml:"store"`
}
