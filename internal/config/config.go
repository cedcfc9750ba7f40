// Package config loads and validates bot configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Owners      []string          `mapstructure:"owners"`
	Search      SearchConfig      `mapstructure:"search"`
	Scanner     ScannerConfig     `mapstructure:"scanner"`
	Store       StoreConfig       `mapstructure:"store"`
	Storage     StorageConfig     `mapstructure:"storage"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Pagination  PaginationConfig  `mapstructure:"pagination"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SearchConfig holds the configured search defaults and hard limits.
type SearchConfig struct {
	TopSites           int  `mapstructure:"top_sites"`
	TimeoutSeconds     int  `mapstructure:"timeout_seconds"`
	MaxConnections     int  `mapstructure:"max_connections"`
	Retries            int  `mapstructure:"retries"`
	Parsing            bool `mapstructure:"parsing"`
	IncludeSimilar     bool `mapstructure:"include_similar"`
	MaxDurationSeconds int  `mapstructure:"max_duration_seconds"`

	LimitTopSites       int `mapstructure:"limit_top_sites"`
	LimitTimeoutSeconds int `mapstructure:"limit_timeout_seconds"`
	LimitMaxConnections int `mapstructure:"limit_max_connections"`
	LimitRetries        int `mapstructure:"limit_retries"`
}

// ScannerConfig selects and configures the scan engine.
type ScannerConfig struct {
	// Provider is "cli" or "memory".
	Provider   string   `mapstructure:"provider"`
	Binary     string   `mapstructure:"binary"`
	ExtraArgs  []string `mapstructure:"extra_args"`
	ReloadArgs []string `mapstructure:"reload_args"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	// Provider is "sqlite", "postgres" or "memory".
	Provider string `mapstructure:"provider"`
	// DataDir holds the sqlite database.
	DataDir string `mapstructure:"data_dir"`
	// DSN connects the postgres provider.
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// StorageConfig selects the blob store for report artifacts.
type StorageConfig struct {
	// Provider is "local", "gcs" or "memory".
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig connects the log router to its relay topics. Empty project
// keeps the in-memory sender.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// PaginationConfig controls result pagination.
type PaginationConfig struct {
	PerPage     int `mapstructure:"per_page"`
	TTLMinutes  int `mapstructure:"ttl_minutes"`
	MaxSessions int `mapstructure:"max_sessions"`
}

// MaintenanceConfig controls the housekeeping loop.
type MaintenanceConfig struct {
	Schedule         string `mapstructure:"schedule"`
	LogDir           string `mapstructure:"log_dir"`
	LogRetentionDays int    `mapstructure:"log_retention_days"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCOUTBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("search.top_sites", 500)
	v.SetDefault("search.timeout_seconds", 30)
	v.SetDefault("search.max_connections", 50)
	v.SetDefault("search.retries", 1)
	v.SetDefault("search.parsing", true)
	v.SetDefault("search.include_similar", false)
	v.SetDefault("search.limit_top_sites", scout.DefaultTopSitesLimit)
	v.SetDefault("search.limit_timeout_seconds", int(scout.DefaultSiteTimeoutLimit.Seconds()))
	v.SetDefault("search.limit_max_connections", scout.DefaultMaxConnectionsLimit)
	v.SetDefault("search.limit_retries", scout.DefaultRetriesLimit)
	v.SetDefault("scanner.provider", "memory")
	v.SetDefault("store.provider", "sqlite")
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "reports")
	v.SetDefault("pagination.per_page", 10)
	v.SetDefault("pagination.ttl_minutes", 15)
	v.SetDefault("pagination.max_sessions", 256)
	v.SetDefault("maintenance.schedule", "@hourly")
	v.SetDefault("maintenance.log_dir", "logs")
	v.SetDefault("maintenance.log_retention_days", 7)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required when auth.enabled")
	}
	if c.Search.TopSites <= 0 || c.Search.TopSites > c.Search.LimitTopSites {
		return fmt.Errorf("search.top_sites must be between 1 and %d", c.Search.LimitTopSites)
	}
	if c.Search.TimeoutSeconds <= 0 || c.Search.TimeoutSeconds > c.Search.LimitTimeoutSeconds {
		return fmt.Errorf("search.timeout_seconds must be between 1 and %d", c.Search.LimitTimeoutSeconds)
	}
	if c.Search.MaxConnections <= 0 || c.Search.MaxConnections > c.Search.LimitMaxConnections {
		return fmt.Errorf("search.max_connections must be between 1 and %d", c.Search.LimitMaxConnections)
	}
	if c.Search.Retries < 0 || c.Search.Retries > c.Search.LimitRetries {
		return fmt.Errorf("search.retries must be between 0 and %d", c.Search.LimitRetries)
	}
	switch c.Scanner.Provider {
	case "memory":
	case "cli":
		if c.Scanner.Binary == "" {
			return fmt.Errorf("scanner.binary is required for the cli provider")
		}
	default:
		return fmt.Errorf("unknown scanner.provider %q", c.Scanner.Provider)
	}
	switch c.Store.Provider {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres provider")
		}
	default:
		return fmt.Errorf("unknown store.provider %q", c.Store.Provider)
	}
	switch c.Storage.Provider {
	case "memory", "local":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	return nil
}

// Defaults converts the search section into scheduler parameters.
func (c Config) Defaults() scout.Parameters {
	return scout.Parameters{
		TopSites:       c.Search.TopSites,
		SiteTimeout:    time.Duration(c.Search.TimeoutSeconds) * time.Second,
		MaxConnections: c.Search.MaxConnections,
		Retries:        c.Search.Retries,
		ParsingEnabled: c.Search.Parsing,
		IncludeSimilar: c.Search.IncludeSimilar,
	}
}

// Limits converts the configured ceilings into scheduler limits.
func (c Config) Limits() scout.Limits {
	return scout.Limits{
		TopSites:       c.Search.LimitTopSites,
		SiteTimeout:    time.Duration(c.Search.LimitTimeoutSeconds) * time.Second,
		MaxConnections: c.Search.LimitMaxConnections,
		Retries:        c.Search.LimitRetries,
	}
}
