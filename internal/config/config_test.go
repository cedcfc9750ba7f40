package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "memory", cfg.Scanner.Provider)
	require.Equal(t, "sqlite", cfg.Store.Provider)
	require.Equal(t, "local", cfg.Storage.Provider)

	params := cfg.Defaults()
	require.Equal(t, 500, params.TopSites)
	require.Equal(t, 30*time.Second, params.SiteTimeout)
	require.Equal(t, 50, params.MaxConnections)
	require.Equal(t, 1, params.Retries)
	require.True(t, params.ParsingEnabled)
	require.False(t, params.IncludeSimilar)

	limits := cfg.Limits()
	require.Equal(t, 1500, limits.TopSites)
	require.Equal(t, 300*time.Second, limits.SiteTimeout)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
owners:
  - "owner-1"
scanner:
  provider: cli
  binary: /usr/local/bin/recon
search:
  top_sites: 750
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, []string{"owner-1"}, cfg.Owners)
	require.Equal(t, "cli", cfg.Scanner.Provider)
	require.Equal(t, 750, cfg.Search.TopSites)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true }},
		{"top_sites over limit", func(c *Config) { c.Search.TopSites = c.Search.LimitTopSites + 1 }},
		{"cli without binary", func(c *Config) { c.Scanner.Provider = "cli" }},
		{"postgres without dsn", func(c *Config) { c.Store.Provider = "postgres" }},
		{"gcs without bucket", func(c *Config) { c.Storage.Provider = "gcs" }},
		{"unknown scanner", func(c *Config) { c.Scanner.Provider = "carrier-pigeon" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
