package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscat-water/internal/analysis"
	"muscat-water/internal/hierarchy"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Server.Port)
	assert.Equal(t, 5*time.Minute, c.Cache.TTL)
	assert.Equal(t, []string{"4300322"}, c.Engine.ExcludedAccounts)
	assert.False(t, c.Refresh.Enabled)
	assert.False(t, c.IsProduction())
}

func TestLoadYAMLResolvesRelativeSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "meters.csv", "Meter Label\n")
	path := writeFile(t, dir, "water.yaml", `
server:
  port: "9090"
source:
  kind: csv
  path: meters.csv
engine:
  excluded_accounts: ["4300322", "4300100"]
  dc_child_policy: pass_through
  zone_aliases:
    Zone_VS: ["Village Sq"]
cache:
  ttl: 90s
refresh:
  enabled: true
  schedule: "@every 10m"
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Server.Port)
	assert.Equal(t, filepath.Join(dir, "meters.csv"), c.Source.Path)
	assert.Equal(t, 90*time.Second, c.Cache.TTL)

	opts := c.EngineOptions()
	assert.Equal(t, analysis.DCChildrenPassThrough, opts.DCChildPolicy)
	assert.Len(t, opts.ExcludedAccounts, 2)
	assert.Equal(t, "Zone_VS", opts.Zones.Normalize("village sq"))
	assert.Equal(t, hierarchy.UnknownType, opts.Types.Normalize(""))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("API_PORT", "7000")
	t.Setenv("WATER_SOURCE", "supabase")
	t.Setenv("DB_HOST", "db.example.supabase.co")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "postgres")
	t.Setenv("WATER_EXCLUDED_ACCOUNTS", " 1, 2 ,")
	t.Setenv("WATER_CACHE_TTL", "1m")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7000", c.Server.Port)
	assert.Equal(t, SourceSupabase, c.Source.Kind)
	assert.Equal(t, []string{"1", "2"}, c.Engine.ExcludedAccounts)
	assert.Equal(t, time.Minute, c.Cache.TTL)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, "test.env", "WATER_TEST_ONLY_KEY=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("WATER_TEST_ONLY_KEY") })

	require.NoError(t, LoadEnv(envPath))
	assert.Equal(t, "from-dotenv", os.Getenv("WATER_TEST_ONLY_KEY"))
	assert.NoError(t, LoadEnv(filepath.Join(dir, "missing.env")))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = "http" }},
		{"unknown source", func(c *Config) { c.Source.Kind = "ftp" }},
		{"csv without path", func(c *Config) { c.Source.Path = "" }},
		{"airtable without key", func(c *Config) { c.Source.Kind = SourceAirtable }},
		{"supabase without host", func(c *Config) { c.Source.Kind = SourceSupabase }},
		{"bad policy", func(c *Config) { c.Engine.DCChildPolicy = "sometimes" }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }},
		{"bad schedule", func(c *Config) { c.Refresh.Enabled = true; c.Refresh.Schedule = "every day" }},
		{"publish without influx", func(c *Config) { c.Refresh.Publish = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
