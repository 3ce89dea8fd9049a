package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Search   SearchConfig   `mapstructure:"search"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// APIConfig points the client at the portfolio backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"` // bearer token (optional)
}

type CacheConfig struct {
	Limit           int           `mapstructure:"limit"`            // /assets?limit=
	TTL             time.Duration `mapstructure:"ttl"`              // 0 disables expiry
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`    // per catalog fetch
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // 0 disables background refresh
}

type SearchConfig struct {
	Debounce       time.Duration `mapstructure:"debounce"`
	BlurGrace      time.Duration `mapstructure:"blur_grace"`
	MaxSuggestions int           `mapstructure:"max_suggestions"`
	BrowseLimit    int           `mapstructure:"browse_limit"`
	MinQueryLength int           `mapstructure:"min_query_length"`
}

type PricingConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	DefaultCurrency string        `mapstructure:"default_currency"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// ServerConfig configures the development backend.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // gin mode: "debug", "release", "test"
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the /metrics listener
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.token", "")

	v.SetDefault("cache.limit", 5000)
	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("cache.fetch_timeout", 15*time.Second)
	v.SetDefault("cache.refresh_interval", 0)

	v.SetDefault("search.debounce", 200*time.Millisecond)
	v.SetDefault("search.blur_grace", 150*time.Millisecond)
	v.SetDefault("search.max_suggestions", 10)
	v.SetDefault("search.browse_limit", 20)
	v.SetDefault("search.min_query_length", 2)

	v.SetDefault("pricing.timeout", 5*time.Second)
	v.SetDefault("pricing.default_currency", "USD")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")
	v.SetDefault("log.output_file", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "assetsearch")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("metrics.addr", "")
}

// Load loads application configuration using Viper.
// It reads config.yaml from path (or the usual config directories when path
// is empty) and overrides with environment variables. A missing config file
// is not an error: defaults and environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		for _, dir := range searchDirs() {
			v.AddConfigPath(dir)
		}
	}

	// Support environment variables with dot notation (e.g., API_BASE_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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

	return &cfg, nil
}

func searchDirs() []string {
	dirs := []string{"./config", "../config", "../../config"}
	if ex, err := os.Executable(); err == nil && !strings.Contains(ex, "go-build") {
		dirs = append(dirs, filepath.Join(filepath.Dir(ex), "../config"))
	}
	return dirs
}
