package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel         = "info"
	DefaultJSONLog          = false
	DefaultUserAgent        = "Sitegrain/1.0 (+https://github.com/sitegrain/sitegrain)"
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultMaxDepth         = 3
	DefaultMaxConcurrent    = 5
	DefaultMaxPages         = 0 // unlimited
	DefaultMaxRetries       = 3
	DefaultHostDelay        = 1 * time.Second
	DefaultInitialBackoff   = 500 * time.Millisecond
	DefaultMaxBackoff       = 30 * time.Second
	DefaultMaxRedirects     = 10
	DefaultThreshold        = 0.8
	DefaultVariantThreshold = 0.9
	DefaultMinSubtreeSize   = 5
	DefaultOutputDir        = "./sitegrain_out"
	DefaultWarnFailureRate  = 0.2
)

// Default similarity weights. Heuristic tunables, overridable via the
// config file.
const (
	DefaultWeightTags      = 0.30
	DefaultWeightClasses   = 0.25
	DefaultWeightLayout    = 0.20
	DefaultWeightComponent = 0.15
	DefaultWeightContent   = 0.10
)
