package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"muscat-water/internal/analysis"
	"muscat-water/internal/hierarchy"
)

// Source kinds for the meter registry.
const (
	SourceCSV      = "csv"
	SourceXLSX     = "xlsx"
	SourceJSON     = "json"
	SourceAirtable = "airtable"
	SourceSupabase = "supabase"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Database DatabaseConfig `yaml:"database"`
	Airtable AirtableConfig `yaml:"airtable"`
	Engine   EngineConfig   `yaml:"engine"`
	Cache    CacheConfig    `yaml:"cache"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Influx   InfluxConfig   `yaml:"influx"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	Env         string   `yaml:"env"` // "development" or "production"
	CORSOrigins []string `yaml:"cors_origins"`
}

type SourceConfig struct {
	Kind  string `yaml:"kind"`
	Path  string `yaml:"path"`  // csv, xlsx, json
	Sheet string `yaml:"sheet"` // xlsx only
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	Table    string `yaml:"table"`
}

type AirtableConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	BaseID  string `yaml:"base_id"`
	Table   string `yaml:"table"`
	View    string `yaml:"view"`
}

type EngineConfig struct {
	ExcludedAccounts []string            `yaml:"excluded_accounts"`
	DCChildPolicy    string              `yaml:"dc_child_policy"`
	ZoneAliases      map[string][]string `yaml:"zone_aliases"`
	TypeAliases      map[string][]string `yaml:"type_aliases"`
}

type CacheConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	Cleanup time.Duration `yaml:"cleanup"`
	// Disabled forces every request to recompute.
	Disabled bool `yaml:"disabled"`
}

type RefreshConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 15m"
	Publish  bool   `yaml:"publish"`  // write the latest period to InfluxDB after each refresh
}

type InfluxConfig struct {
	URL    string `yaml:"url"`
	Org    string `yaml:"org"`
	Token  string `yaml:"token"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether enough is set to publish.
func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Bucket != ""
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development"},
		Source: SourceConfig{Kind: SourceCSV, Path: "./data/water_meters.csv"},
		Database: DatabaseConfig{
			Port:    "5432",
			SSLMode: "require",
			Table:   "water_distribution_master",
		},
		Engine: EngineConfig{
			ExcludedAccounts: []string{"4300322"},
			DCChildPolicy:    string(analysis.DCChildrenExclude),
		},
		Cache:   CacheConfig{TTL: 5 * time.Minute, Cleanup: 5 * time.Minute},
		Refresh: RefreshConfig{Schedule: "@every 15m"},
		Influx:  InfluxConfig{Org: "muscat-bay", Bucket: "water"},
	}
}

// LoadEnv loads .env (or the given files) into the environment when present.
// Missing files are not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load reads path (optional), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// An empty path means defaults plus environment.
func LoadUnchecked(path string) (*Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		// Relative source paths are relative to the config file when that
		// file exists, otherwise to the working directory.
		if c.Source.Path != "" && !filepath.IsAbs(c.Source.Path) {
			cand := filepath.Join(filepath.Dir(path), c.Source.Path)
			if _, err := os.Stat(cand); err == nil {
				c.Source.Path = cand
			}
		}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("API_PORT", c.Server.Port)
	c.Server.Env = getEnv("API_ENV", c.Server.Env)
	c.Server.CORSOrigins = getEnvStringSlice("CORS_ORIGINS", c.Server.CORSOrigins)

	c.Source.Kind = getEnv("WATER_SOURCE", c.Source.Kind)
	c.Source.Path = getEnv("WATER_SOURCE_PATH", c.Source.Path)
	c.Source.Sheet = getEnv("WATER_SOURCE_SHEET", c.Source.Sheet)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.Table = getEnv("WATER_TABLE", c.Database.Table)

	c.Airtable.APIKey = getEnv("AIRTABLE_API_KEY", c.Airtable.APIKey)
	c.Airtable.BaseID = getEnv("AIRTABLE_BASE_ID", c.Airtable.BaseID)
	c.Airtable.Table = getEnv("AIRTABLE_TABLE_NAME", c.Airtable.Table)
	c.Airtable.View = getEnv("AIRTABLE_VIEW", c.Airtable.View)

	c.Engine.ExcludedAccounts = getEnvStringSlice("WATER_EXCLUDED_ACCOUNTS", c.Engine.ExcludedAccounts)
	c.Engine.DCChildPolicy = getEnv("WATER_DC_CHILD_POLICY", c.Engine.DCChildPolicy)

	c.Cache.TTL = getEnvDuration("WATER_CACHE_TTL", c.Cache.TTL)
	c.Cache.Disabled = getEnvBool("WATER_CACHE_DISABLED", c.Cache.Disabled)

	c.Refresh.Enabled = getEnvBool("WATER_REFRESH_ENABLED", c.Refresh.Enabled)
	c.Refresh.Schedule = getEnv("WATER_REFRESH_SCHEDULE", c.Refresh.Schedule)
	c.Refresh.Publish = getEnvBool("WATER_REFRESH_PUBLISH", c.Refresh.Publish)

	c.Influx.URL = getEnv("INFLUXDB_URL", c.Influx.URL)
	c.Influx.Org = getEnv("INFLUXDB_ORG", c.Influx.Org)
	c.Influx.Token = getEnv("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Bucket = getEnv("INFLUXDB_BUCKET", c.Influx.Bucket)
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server.port must be numeric: %q", c.Server.Port)
	}
	switch c.Source.Kind {
	case SourceCSV, SourceXLSX, SourceJSON:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for %s sources", c.Source.Kind)
		}
	case SourceAirtable:
		if c.Airtable.APIKey == "" || c.Airtable.BaseID == "" || c.Airtable.Table == "" {
			return errors.New("airtable.api_key, airtable.base_id and airtable.table are required")
		}
	case SourceSupabase:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
			return errors.New("database.host, database.user and database.name are required")
		}
	default:
		return fmt.Errorf("source.kind %q is not one of csv, xlsx, json, airtable, supabase", c.Source.Kind)
	}
	if _, err := analysis.ParseDCChildPolicy(c.Engine.DCChildPolicy); err != nil {
		return fmt.Errorf("engine config invalid: %w", err)
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must not be negative")
	}
	if c.Refresh.Enabled {
		if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
			return fmt.Errorf("refresh.schedule invalid: %w", err)
		}
	}
	if c.Refresh.Publish && !c.Influx.Enabled() {
		return errors.New("refresh.publish needs influx.url and influx.bucket")
	}
	return nil
}

// EngineOptions builds analysis options from the engine section. Call after
// Validate.
func (c *Config) EngineOptions() analysis.Options {
	policy, _ := analysis.ParseDCChildPolicy(c.Engine.DCChildPolicy)
	return analysis.Options{
		ExcludedAccounts: c.Engine.ExcludedAccounts,
		DCChildPolicy:    policy,
		Zones:            hierarchy.NewZoneTable(c.Engine.ZoneAliases),
		Types:            hierarchy.NewTypeTable(c.Engine.TypeAliases),
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
