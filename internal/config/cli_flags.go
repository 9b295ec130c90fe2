package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().String("timeout", "30s", "Per-fetch HTTP timeout")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().String("config", "", "Path to YAML configuration file (optional)")
	cmd.PersistentFlags().String("out", DefaultOutputDir, "Output directory for crawl data and reports")
}

// RegisterCrawlFlags registers flags specific to crawling commands
func RegisterCrawlFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.Flags().IntP("max-depth", "d", DefaultMaxDepth, "Maximum link depth from the seed URL")
	cmd.Flags().IntP("max-concurrent", "c", DefaultMaxConcurrent, "Number of concurrent fetch workers")
	cmd.Flags().Int("max-pages", DefaultMaxPages, "Global page cap (0 = unlimited)")
	cmd.Flags().Int("max-retries", DefaultMaxRetries, "Retry attempts for transient fetch failures")
	cmd.Flags().String("delay", DefaultHostDelay.String(), "Default per-host delay between requests")
	cmd.Flags().String("domain-policy", string(PolicySameHost), "Domain admission policy: same-host, subdomains, or list")
	cmd.Flags().StringArray("allow-domain", nil, "Allowed domain (repeatable, implies --domain-policy=list)")
	cmd.Flags().Bool("download-assets", false, "Download referenced assets into the output directory")
}

// RegisterAnalysisFlags registers flags shared by crawl and analyze commands
func RegisterAnalysisFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.Flags().Float64P("threshold", "t", DefaultThreshold, "Similarity threshold for clustering (0..1]")
	cmd.Flags().Float64("variant-threshold", DefaultVariantThreshold, "Similarity above which component signatures join a variant group")
	cmd.Flags().Int("min-subtree", DefaultMinSubtreeSize, "Minimum descendant count for component candidate subtrees")
}
