package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err, "a missing config file is not an error")

	assert.Equal(t, "newsharvest.db", cfg.Storage.DSN)
	assert.Equal(t, "coindesk", cfg.Site.Name)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  dsn: /tmp/harvest.db
site:
  name: example
  base_url: https://example.com
  timeout_sec: 30
batch_size: 25
feeds:
  markets: https://example.com/arc/outboundfeeds/rss/markets
enrichment:
  api_key: from-file
  domains:
    - a.com
    - b.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/harvest.db", cfg.Storage.DSN)
	assert.Equal(t, "example", cfg.Site.Name)
	assert.Equal(t, "https://example.com", cfg.Site.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, map[string]string{"markets": "https://example.com/arc/outboundfeeds/rss/markets"}, cfg.Feeds)
	assert.Equal(t, "from-file", cfg.Enrichment.APIKey)
	assert.Equal(t, []string{"a.com", "b.com"}, cfg.Enrichment.Domains)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: ["), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NEWSHARVEST_DSN", "/tmp/env.db")
	t.Setenv("NEWSHARVEST_API_KEY", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Storage.DSN)
	assert.Equal(t, "from-env", cfg.Enrichment.APIKey)
}
