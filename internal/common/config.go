// Package common provides shared utilities for etfmomentum
package common

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Provider names accepted in clients.provider.
const (
	ProviderAlphaVantage = "alphavantage"
	ProviderEODHD        = "eodhd"
)

// Config holds all configuration for etfmomentum
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Refresh     RefreshConfig   `toml:"refresh"`
	Universe    []UniverseEntry `toml:"universe"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds datastore connection settings. The URL scheme selects
// the backend: ws/wss/http/https for SurrealDB, postgres/postgresql for Postgres.
type StorageConfig struct {
	URL       string `toml:"url"`
	Namespace string `toml:"namespace"` // SurrealDB only
	Database  string `toml:"database"`  // SurrealDB only
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	MaxConns  int    `toml:"max_conns"` // Postgres only
}

// ClientsConfig holds market data provider configuration
type ClientsConfig struct {
	Provider     string         `toml:"provider"` // "alphavantage" (default) or "eodhd"
	AlphaVantage ProviderConfig `toml:"alphavantage"`
	EODHD        ProviderConfig `toml:"eodhd"`
	Breaker      BreakerConfig  `toml:"breaker"`
}

// ProviderConfig holds a single provider's API settings
type ProviderConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per minute
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ProviderConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// BreakerConfig configures the circuit breaker placed in front of the provider.
type BreakerConfig struct {
	Enabled     bool   `toml:"enabled"`
	MaxFailures int    `toml:"max_failures"`
	OpenTimeout string `toml:"open_timeout"`
}

// GetOpenTimeout parses and returns how long the breaker stays open.
func (c *BreakerConfig) GetOpenTimeout() time.Duration {
	d, err := time.ParseDuration(c.OpenTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// RefreshConfig holds pipeline tuning.
type RefreshConfig struct {
	Staleness        string `toml:"staleness"`
	BatchSize        int    `toml:"batch_size"`
	Benchmark        string `toml:"benchmark"`
	BondSymbol       string `toml:"bond_symbol"`
	BondLabel        string `toml:"bond_label"` // shown after the bond symbol in the risk-off message
	TopSectorCount   int    `toml:"top_sector_count"`
	ScheduleInterval string `toml:"schedule_interval"` // empty or "0" disables the in-process scheduler
}

// GetStaleness parses and returns the staleness threshold
func (c *RefreshConfig) GetStaleness() time.Duration {
	d, err := time.ParseDuration(c.Staleness)
	if err != nil || d <= 0 {
		return DefaultStaleness
	}
	return d
}

// GetScheduleInterval returns the scheduler interval, or 0 when disabled.
func (c *RefreshConfig) GetScheduleInterval() time.Duration {
	d, err := time.ParseDuration(c.ScheduleInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// UniverseEntry seeds one instrument into the registry at startup.
type UniverseEntry struct {
	Symbol string `toml:"symbol"`
	Name   string `toml:"name"`
	Sector string `toml:"sector"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"` // "console", "file"
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
	MaxAgeDays int      `toml:"max_age_days"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Namespace: "etfmomentum",
			Database:  "etfmomentum",
			Username:  "root",
			MaxConns:  10,
		},
		Clients: ClientsConfig{
			Provider: ProviderAlphaVantage,
			AlphaVantage: ProviderConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 5,
				Timeout:   "30s",
			},
			EODHD: ProviderConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 600,
				Timeout:   "30s",
			},
			Breaker: BreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				OpenTimeout: "5m",
			},
		},
		Refresh: RefreshConfig{
			Staleness:      "24h",
			BatchSize:      DefaultBatchSize,
			Benchmark:      "VOO",
			BondSymbol:     "BND",
			BondLabel:      "Total Bond Market ETF",
			TopSectorCount: 4,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console"},
			FilePath:   "./logs/etfmomentum.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

// DefaultUniverse is the instrument set used when the config file names none.
func DefaultUniverse() []UniverseEntry {
	return []UniverseEntry{
		{Symbol: "VOO", Name: "Vanguard S&P 500 ETF", Sector: "US Large Cap"},
		{Symbol: "BND", Name: "Vanguard Total Bond Market ETF", Sector: "Bonds"},
		{Symbol: "SPY", Name: "SPDR S&P 500 ETF Trust", Sector: "US Large Cap"},
		{Symbol: "VXUS", Name: "Vanguard Total International Stock ETF", Sector: "International"},
		{Symbol: "TLT", Name: "iShares 20+ Year Treasury Bond ETF", Sector: "Bonds"},
		{Symbol: "VGT", Name: "Vanguard Information Technology ETF", Sector: "Information Technology"},
		{Symbol: "VHT", Name: "Vanguard Health Care ETF", Sector: "Health Care"},
		{Symbol: "VFH", Name: "Vanguard Financials ETF", Sector: "Financials"},
		{Symbol: "VCR", Name: "Vanguard Consumer Discretionary ETF", Sector: "Consumer Discretionary"},
		{Symbol: "VDE", Name: "Vanguard Energy ETF", Sector: "Energy"},
		{Symbol: "VIS", Name: "Vanguard Industrials ETF", Sector: "Industrials"},
		{Symbol: "VAW", Name: "Vanguard Materials ETF", Sector: "Materials"},
		{Symbol: "VDC", Name: "Vanguard Consumer Staples ETF", Sector: "Consumer Staples"},
		{Symbol: "VPU", Name: "Vanguard Utilities ETF", Sector: "Utilities"},
		{Symbol: "VOX", Name: "Vanguard Communication Services ETF", Sector: "Communication Services"},
		{Symbol: "VNQ", Name: "Vanguard Real Estate ETF", Sector: "Real Estate"},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if len(config.Universe) == 0 {
		config.Universe = DefaultUniverse()
	}
	config.Clients.Provider = strings.ToLower(strings.TrimSpace(config.Clients.Provider))
	if config.Clients.Provider == "" {
		config.Clients.Provider = ProviderAlphaVantage
	}

	return config, nil
}

// firstEnv returns the first non-empty value among the named environment variables.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ETFM_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("ETFM_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("ETFM_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("ETFM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Storage; SUPABASE_* names are accepted so existing deployments keep working
	if v := firstEnv("ETFM_STORAGE_URL", "SUPABASE_URL"); v != "" {
		config.Storage.URL = v
	}
	if v := os.Getenv("ETFM_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := firstEnv("ETFM_STORAGE_PASSWORD", "SUPABASE_SERVICE_ROLE_KEY"); v != "" {
		config.Storage.Password = v
	}

	// Provider
	if v := os.Getenv("ETFM_PROVIDER"); v != "" {
		config.Clients.Provider = v
	}
	if v := firstEnv("ALPHA_VANTAGE_API_KEY", "ETFM_ALPHAVANTAGE_API_KEY"); v != "" {
		config.Clients.AlphaVantage.APIKey = v
	}
	if v := firstEnv("EODHD_API_KEY", "ETFM_EODHD_API_KEY"); v != "" {
		config.Clients.EODHD.APIKey = v
	}

	// Refresh tuning
	if v := os.Getenv("ETFM_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Refresh.BatchSize = n
		}
	}
	if v := os.Getenv("ETFM_STALENESS"); v != "" {
		config.Refresh.Staleness = v
	}
	if v := os.Getenv("ETFM_SCHEDULE_INTERVAL"); v != "" {
		config.Refresh.ScheduleInterval = v
	}
	if v := os.Getenv("ETFM_BENCHMARK"); v != "" {
		config.Refresh.Benchmark = strings.ToUpper(v)
	}
}

// ActiveProvider returns the configuration of the selected market data provider.
func (c *Config) ActiveProvider() ProviderConfig {
	if c.Clients.Provider == ProviderEODHD {
		return c.Clients.EODHD
	}
	return c.Clients.AlphaVantage
}

// ValidateRequired returns the config keys that must be set but are empty.
func (c *Config) ValidateRequired() []string {
	var missing []string

	switch c.Clients.Provider {
	case ProviderEODHD:
		if c.Clients.EODHD.APIKey == "" {
			missing = append(missing, "clients.eodhd.api_key")
		}
	default:
		if c.Clients.AlphaVantage.APIKey == "" {
			missing = append(missing, "clients.alphavantage.api_key")
		}
	}

	if strings.TrimSpace(c.Storage.URL) == "" {
		missing = append(missing, "storage.url")
	}
	if c.Storage.Password == "" && !urlHasPassword(c.Storage.URL) {
		missing = append(missing, "storage.password")
	}

	return missing
}

// Validate checks required keys and value ranges. Any problem is a *ConfigError.
func (c *Config) Validate() error {
	if missing := c.ValidateRequired(); len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}

	switch c.Clients.Provider {
	case "", ProviderAlphaVantage, ProviderEODHD:
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown provider %q (supported: %s, %s)", c.Clients.Provider, ProviderAlphaVantage, ProviderEODHD)}
	}

	if c.Refresh.BatchSize <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("refresh.batch_size must be positive, got %d", c.Refresh.BatchSize)}
	}
	if strings.TrimSpace(c.Refresh.Benchmark) == "" {
		return &ConfigError{Reason: "refresh.benchmark must name an instrument"}
	}

	for i, u := range c.Universe {
		if strings.TrimSpace(u.Symbol) == "" {
			return &ConfigError{Reason: fmt.Sprintf("universe[%d] has no symbol", i)}
		}
	}

	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func urlHasPassword(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}
