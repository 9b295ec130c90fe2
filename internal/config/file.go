package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// mergeFile overlays values from a YAML config file onto cfg.
// Zero values in the file leave the existing setting untouched, which is
// why the file is decoded directly into the live struct.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// WriteFile saves the configuration as YAML, used by `sitegrain init`.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
