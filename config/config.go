// Package config loads the run configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SiteConfig describes the harvested site.
type SiteConfig struct {
	Name       string `yaml:"name"`
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// EnrichmentConfig describes the search API used for enrichment.
type EnrichmentConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Domains []string `yaml:"domains"`
}

// Config is the structure of the newsharvest config file.
type Config struct {
	Storage struct {
		DSN string `yaml:"dsn"`
	} `yaml:"storage"`
	Site      SiteConfig `yaml:"site"`
	BatchSize int        `yaml:"batch_size"`
	// Feeds maps section names to RSS/Atom feed URLs, for sections read
	// through a feed instead of listing pages.
	Feeds      map[string]string `yaml:"feeds"`
	Enrichment EnrichmentConfig  `yaml:"enrichment"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Storage.DSN = "newsharvest.db"
	cfg.Site = SiteConfig{
		Name:       "coindesk",
		BaseURL:    "https://www.coindesk.com",
		TimeoutSec: 10,
	}
	cfg.BatchSize = 10
	cfg.Enrichment = EnrichmentConfig{
		BaseURL: "https://newsapi.org",
	}
	return cfg
}

// Load reads the config file at path, layered over defaults. A missing file
// is not an error; environment variables NEWSHARVEST_DSN and
// NEWSHARVEST_API_KEY override the file in either case.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if dsn := os.Getenv("NEWSHARVEST_DSN"); dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if key := os.Getenv("NEWSHARVEST_API_KEY"); key != "" {
		cfg.Enrichment.APIKey = key
	}

	return cfg, nil
}

// FetchTimeout returns the site fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	if c.Site.TimeoutSec < 1 {
		return 10 * time.Second
	}
	return time.Duration(c.Site.TimeoutSec) * time.Second
}
