package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// DomainPolicy controls which hosts the crawl may enter.
type DomainPolicy string

const (
	// PolicySameHost admits only the seed's exact host.
	PolicySameHost DomainPolicy = "same-host"
	// PolicySubdomains admits the seed host and its subdomains.
	PolicySubdomains DomainPolicy = "subdomains"
	// PolicyAllowList admits only hosts named in AllowedDomains.
	PolicyAllowList DomainPolicy = "list"
)

// Weights are the similarity metric component weights. They are
// normalized at load time so they always sum to 1.
type Weights struct {
	Tags      float64 `yaml:"tags"`
	Classes   float64 `yaml:"classes"`
	Layout    float64 `yaml:"layout"`
	Component float64 `yaml:"component"`
	Content   float64 `yaml:"content"`
}

// Config holds the immutable configuration snapshot for a run
type Config struct {
	// Logging
	LogLevel string `yaml:"log_level"`
	JSONLog  bool   `yaml:"json_log"`

	// HTTP
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	UserAgent    string        `yaml:"user_agent"`
	MaxRetries   int           `yaml:"max_retries"`
	MaxRedirects int           `yaml:"max_redirects"`

	// Crawl limits
	MaxDepth       int           `yaml:"max_depth"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	MaxPages       int           `yaml:"max_pages"`
	HostDelay      time.Duration `yaml:"host_delay"`
	Policy         DomainPolicy  `yaml:"domain_policy"`
	AllowedDomains []string      `yaml:"allowed_domains"`

	// Retry backoff
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`

	// Analysis
	Threshold        float64 `yaml:"threshold"`
	VariantThreshold float64 `yaml:"variant_threshold"`
	MinSubtreeSize   int     `yaml:"min_subtree_size"`
	Weights          Weights `yaml:"weights"`

	// Output
	OutputDir       string  `yaml:"output_dir"`
	WarnFailureRate float64 `yaml:"warn_failure_rate"`
	DownloadAssets  bool    `yaml:"download_assets"`
}

// Default returns a Config populated with package defaults.
func Default() *Config {
	return &Config{
		LogLevel:         DefaultLogLevel,
		JSONLog:          DefaultJSONLog,
		HTTPTimeout:      DefaultHTTPTimeout,
		UserAgent:        DefaultUserAgent,
		MaxRetries:       DefaultMaxRetries,
		MaxRedirects:     DefaultMaxRedirects,
		MaxDepth:         DefaultMaxDepth,
		MaxConcurrent:    DefaultMaxConcurrent,
		MaxPages:         DefaultMaxPages,
		HostDelay:        DefaultHostDelay,
		Policy:           PolicySameHost,
		InitialBackoff:   DefaultInitialBackoff,
		MaxBackoff:       DefaultMaxBackoff,
		Threshold:        DefaultThreshold,
		VariantThreshold: DefaultVariantThreshold,
		MinSubtreeSize:   DefaultMinSubtreeSize,
		Weights: Weights{
			Tags:      DefaultWeightTags,
			Classes:   DefaultWeightClasses,
			Layout:    DefaultWeightLayout,
			Component: DefaultWeightComponent,
			Content:   DefaultWeightContent,
		},
		OutputDir:       DefaultOutputDir,
		WarnFailureRate: DefaultWarnFailureRate,
	}
}

// Load builds a Config by combining defaults, an optional YAML config file,
// environment variables, and CLI flags. Caller should pass the command so
// flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Default()

	// Config file first, so flags can still override it
	if cmd != nil {
		if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
			if err := cfg.mergeFile(f.Value.String()); err != nil {
				return nil, err
			}
		}
	}

	// Environment overrides
	if v := os.Getenv("SITEGRAIN_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("SITEGRAIN_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("SITEGRAIN_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrent = n
		}
	}

	// CLI flags
	if cmd != nil {
		readFlags(cmd, cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func readFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()

	if f := flags.Lookup("user-agent"); f != nil && f.Changed {
		cfg.UserAgent = f.Value.String()
	}
	if f := flags.Lookup("timeout"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	if f := flags.Lookup("delay"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.HostDelay = d
		}
	}
	if f := flags.Lookup("max-depth"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.MaxDepth = n
		}
	}
	if f := flags.Lookup("max-concurrent"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.MaxConcurrent = n
		}
	}
	if f := flags.Lookup("max-pages"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.MaxPages = n
		}
	}
	if f := flags.Lookup("max-retries"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.MaxRetries = n
		}
	}
	if f := flags.Lookup("threshold"); f != nil && f.Changed {
		if v, err := strconv.ParseFloat(f.Value.String(), 64); err == nil {
			cfg.Threshold = v
		}
	}
	if f := flags.Lookup("variant-threshold"); f != nil && f.Changed {
		if v, err := strconv.ParseFloat(f.Value.String(), 64); err == nil {
			cfg.VariantThreshold = v
		}
	}
	if f := flags.Lookup("min-subtree"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.MinSubtreeSize = n
		}
	}
	if f := flags.Lookup("domain-policy"); f != nil && f.Changed {
		cfg.Policy = DomainPolicy(f.Value.String())
	}
	if f := flags.Lookup("allow-domain"); f != nil && f.Changed {
		if vals, err := flags.GetStringArray("allow-domain"); err == nil {
			cfg.AllowedDomains = vals
		}
	}
	if f := flags.Lookup("out"); f != nil && f.Changed {
		cfg.OutputDir = f.Value.String()
	}
	if f := flags.Lookup("download-assets"); f != nil && f.Changed {
		cfg.DownloadAssets = f.Value.String() == "true"
	}
	if f := flags.Lookup("json"); f != nil && f.Value.String() == "true" {
		cfg.JSONLog = true
	}
	if f := flags.Lookup("verbose"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "debug"
	}
	if f := flags.Lookup("quiet"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "error"
	}
}
