// Package config loads stockdash settings from config.yaml, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Alpaca    AlpacaConfig    `mapstructure:"alpaca"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Usage     UsageConfig     `mapstructure:"usage"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// ProviderConfig selects and paces the upstream market-data provider.
type ProviderConfig struct {
	Name                 string        `mapstructure:"name"` // "alphavantage" or "alpaca"
	APIKey               string        `mapstructure:"api_key"`
	BaseURL              string        `mapstructure:"base_url"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute"`
	MinInterval          time.Duration `mapstructure:"min_interval"`
	// Entitlement is sent as Alpha Vantage's entitlement parameter ("realtime" or "delayed").
	Entitlement string `mapstructure:"entitlement"`
}

type AlpacaConfig struct {
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	DataURL    string `mapstructure:"data_url"`
	TradingURL string `mapstructure:"trading_url"`
	Feed       string `mapstructure:"feed"`
}

type CacheConfig struct {
	QuoteTTL    time.Duration `mapstructure:"quote_ttl"`
	HistoryTTL  time.Duration `mapstructure:"history_ttl"`
	SearchTTL   time.Duration `mapstructure:"search_ttl"`
	MaxItems    int           `mapstructure:"max_items"`
	HistoryDays int           `mapstructure:"history_days"`
}

// UsageConfig selects the provider call ledger backend.
type UsageConfig struct {
	Driver      string `mapstructure:"driver"` // "memory", "sqlite" or "postgres"
	DSN         string `mapstructure:"dsn"`
	AdminDSN    string `mapstructure:"admin_dsn"` // postgres only, used to create Database
	Database    string `mapstructure:"database"`
	DailyBudget int    `mapstructure:"daily_budget"`
}

type DashboardConfig struct {
	ProxyURL        string        `mapstructure:"proxy_url"`
	Symbols         []string      `mapstructure:"symbols"`
	WatchlistFile   string        `mapstructure:"watchlist_file"`
	BatchSize       int           `mapstructure:"batch_size"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
	Budget          int           `mapstructure:"budget"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	SearchDebounce  time.Duration `mapstructure:"search_debounce"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 20*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("provider.name", "alphavantage")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("provider.timeout", 10*time.Second)
	v.SetDefault("provider.max_requests_per_minute", 5)
	v.SetDefault("provider.min_interval", time.Duration(0))
	v.SetDefault("provider.entitlement", "")

	v.SetDefault("alpaca.api_key", "")
	v.SetDefault("alpaca.api_secret", "")
	v.SetDefault("alpaca.data_url", "")
	v.SetDefault("alpaca.trading_url", "")
	v.SetDefault("alpaca.feed", "iex")

	v.SetDefault("cache.quote_ttl", 5*time.Minute)
	v.SetDefault("cache.history_ttl", time.Hour)
	v.SetDefault("cache.search_ttl", 24*time.Hour)
	v.SetDefault("cache.max_items", 10000)
	v.SetDefault("cache.history_days", 30)

	v.SetDefault("usage.driver", "memory")
	v.SetDefault("usage.dsn", "")
	v.SetDefault("usage.admin_dsn", "")
	v.SetDefault("usage.database", "stockdash")
	v.SetDefault("usage.daily_budget", 25)

	v.SetDefault("dashboard.proxy_url", "http://localhost:8080")
	v.SetDefault("dashboard.symbols", []string{"AAPL", "MSFT", "GOOGL", "AMZN", "META"})
	v.SetDefault("dashboard.watchlist_file", "")
	v.SetDefault("dashboard.batch_size", 5)
	v.SetDefault("dashboard.cooldown", time.Minute)
	v.SetDefault("dashboard.budget", 25)
	v.SetDefault("dashboard.refresh_interval", 5*time.Minute)
	v.SetDefault("dashboard.search_debounce", 500*time.Millisecond)
	v.SetDefault("dashboard.fetch_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")
}

// envAliases are accepted alongside the derived NAME_KEY variables.
var envAliases = map[string][]string{
	"provider.api_key":  {"PROVIDER_API_KEY", "ALPHA_VANTAGE_API_KEY"},
	"provider.base_url": {"PROVIDER_BASE_URL", "ALPHA_VANTAGE_BASE_URL"},
	"server.port":       {"SERVER_PORT", "PORT"},
	"alpaca.api_key":    {"ALPACA_API_KEY", "APCA_API_KEY_ID"},
	"alpaca.api_secret": {"ALPACA_API_SECRET", "APCA_API_SECRET_KEY"},
}

// Load reads configuration. An explicit path must exist; otherwise config.yaml
// is searched in ".", "./config" and $STOCKDASH_CONFIG_DIR and may be absent.
// A .env file in the working directory is loaded first when present.
// Environment variables override file values (e.g. PROVIDER_API_KEY, SERVER_PORT).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if dir := os.Getenv("STOCKDASH_CONFIG_DIR"); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Provider.Name = strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	return &cfg, nil
}

// Validate reports settings the server cannot start with. Missing provider
// credentials are not an error: they surface per request instead.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider.Name {
	case "alphavantage", "alpaca":
	default:
		errs = append(errs, fmt.Errorf("provider.name %q: want alphavantage or alpaca", c.Provider.Name))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is empty"))
	}
	if c.Dashboard.BatchSize <= 0 {
		errs = append(errs, errors.New("dashboard.batch_size must be positive"))
	}
	return errors.Join(errs...)
}

// ProviderConfigured reports whether credentials for the selected provider are set.
func (c *Config) ProviderConfigured() bool {
	if c.Provider.Name == "alpaca" {
		return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
	}
	return c.Provider.APIKey != ""
}
