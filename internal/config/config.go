package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Storage  StorageConfig  `toml:"storage"`  // Data persistence settings
	Airports AirportsConfig `toml:"airports"` // Airport reference data settings
	Provider ProviderConfig `toml:"provider"` // Upstream flight-data provider settings
	Quota    QuotaConfig    `toml:"quota"`    // Monthly call budget settings
	Cache    CacheConfig    `toml:"cache"`    // Adaptive TTL cache settings
	Progress ProgressConfig `toml:"progress"` // Progress/status engine heuristics
	Refresh  RefreshConfig  `toml:"refresh"`  // Refresh orchestration settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (["*"] for all)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"` // Path to the SQLite database file (quota state + call audit log)
}

// AirportsConfig contains airport reference data configuration
type AirportsConfig struct {
	DBPath string `toml:"db_path"` // Path to airport database CSV file (OurAirports format)
}

// ProviderConfig contains upstream flight-data provider configuration
type ProviderConfig struct {
	Type              string `toml:"type"`                // Provider type (currently "aerodatabox")
	BaseURL           string `toml:"base_url"`            // Provider base URL
	APIHost           string `toml:"api_host"`            // API host header value (for RapidAPI)
	APIKey            string `toml:"api_key"`             // API key for authentication
	TimeoutSecs       int    `toml:"timeout_seconds"`     // HTTP timeout for provider requests
	RequestsPerMinute int    `toml:"requests_per_minute"` // Local burst limiter for concurrent refreshes
}

// QuotaConfig contains the monthly call budget configuration
type QuotaConfig struct {
	MonthlyLimit int `toml:"monthly_limit"` // Hard monthly cap on upstream provider calls
}

// CacheConfig contains adaptive TTL cache configuration
type CacheConfig struct {
	MaxEntries int `toml:"max_entries"` // Capacity bound; oldest-by-fetch-time entry is evicted on overflow
}

// ProgressConfig contains the progress/status engine heuristics. The radii
// defaults match observed airline behavior but are deliberately tunable.
type ProgressConfig struct {
	StalePositionMaxAgeSecs int     `toml:"stale_position_max_age_seconds"` // Position age beyond which it is treated as absent
	ArrivalRadiusNM         float64 `toml:"arrival_radius_nm"`              // Ground-arrival radius for the landed heuristic
	ApproachRadiusNM        float64 `toml:"approach_radius_nm"`             // Remaining distance for the approach phase
	ApproachMaxAltFt        float64 `toml:"approach_max_alt_ft"`            // Altitude ceiling for the approach phase
	SmoothingWindow         int     `toml:"smoothing_window"`               // Moving-average window of the anti-regression smoother
	TimeFallbackMonotonic   bool    `toml:"time_fallback_monotonic"`        // Apply the anti-regression guard to the schedule-only path
}

// RefreshConfig contains refresh orchestration configuration
type RefreshConfig struct {
	WorkerCount   int  `toml:"workers"`        // Bounded concurrency for bulk refresh
	PositionsFeed bool `toml:"positions_feed"` // Whether a live position feed is configured
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			Host:               "0.0.0.0",
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSecs:    30,
			WriteTimeoutSecs:   30,
			IdleTimeoutSecs:    60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			SQLitePath: "data/flightpath.db",
		},
		Airports: AirportsConfig{
			DBPath: "assets/airports.csv",
		},
		Provider: ProviderConfig{
			Type:              "aerodatabox",
			TimeoutSecs:       10,
			RequestsPerMinute: 10,
		},
		Quota: QuotaConfig{
			MonthlyLimit: 600,
		},
		Cache: CacheConfig{
			MaxEntries: 512,
		},
		Progress: ProgressConfig{
			StalePositionMaxAgeSecs: 300,
			ArrivalRadiusNM:         3,
			ApproachRadiusNM:        25,
			ApproachMaxAltFt:        10000,
			SmoothingWindow:         3,
			TimeFallbackMonotonic:   false,
		},
		Refresh: RefreshConfig{
			WorkerCount: 5,
		},
	}
}

// Load reads and decodes a TOML configuration file over the defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	config := Default()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations
// in order of preference. With no file found anywhere, defaults are used.
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	for _, path := range searchPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if preferredPath != "" {
		return nil, fmt.Errorf("config file not found: %s", preferredPath)
	}
	return Default(), nil
}

// Validate checks the configuration for invalid or conflicting values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Quota.MonthlyLimit < 1 {
		return fmt.Errorf("quota monthly_limit must be positive, got %d", c.Quota.MonthlyLimit)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Progress.SmoothingWindow < 1 {
		return fmt.Errorf("progress smoothing_window must be positive, got %d", c.Progress.SmoothingWindow)
	}
	if c.Progress.ArrivalRadiusNM <= 0 || c.Progress.ApproachRadiusNM <= 0 {
		return fmt.Errorf("progress radii must be positive")
	}
	if c.Progress.ApproachRadiusNM < c.Progress.ArrivalRadiusNM {
		return fmt.Errorf("approach_radius_nm (%.1f) must not be smaller than arrival_radius_nm (%.1f)",
			c.Progress.ApproachRadiusNM, c.Progress.ArrivalRadiusNM)
	}
	if c.Refresh.WorkerCount < 1 {
		return fmt.Errorf("refresh workers must be positive, got %d", c.Refresh.WorkerCount)
	}
	if c.Provider.Type != "aerodatabox" && c.Provider.Type != "mock" {
		return fmt.Errorf("unknown provider type: %s", c.Provider.Type)
	}
	return nil
}
