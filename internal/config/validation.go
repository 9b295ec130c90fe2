package config

import "fmt"

func validate(c *Config) error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must be >= 0")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0")
	}
	if c.HostDelay < 0 {
		return fmt.Errorf("host delay must be >= 0")
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got %v", c.Threshold)
	}
	if c.VariantThreshold <= 0 || c.VariantThreshold > 1 {
		return fmt.Errorf("variant threshold must be in (0, 1], got %v", c.VariantThreshold)
	}
	if c.MinSubtreeSize < 1 {
		return fmt.Errorf("min subtree size must be >= 1")
	}
	switch c.Policy {
	case PolicySameHost, PolicySubdomains:
	case PolicyAllowList:
		if len(c.AllowedDomains) == 0 {
			return fmt.Errorf("domain policy %q requires at least one allowed domain", c.Policy)
		}
	default:
		return fmt.Errorf("unknown domain policy: %q", c.Policy)
	}

	sum := c.Weights.Tags + c.Weights.Classes + c.Weights.Layout +
		c.Weights.Component + c.Weights.Content
	if sum <= 0 {
		return fmt.Errorf("similarity weights must sum to a positive value")
	}
	// Normalize so the similarity score stays in [0,1]
	c.Weights.Tags /= sum
	c.Weights.Classes /= sum
	c.Weights.Layout /= sum
	c.Weights.Component /= sum
	c.Weights.Content /= sum

	return nil
}
