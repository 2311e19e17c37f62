package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL     = "https://pro-api.coinmarketcap.com"
	DefaultPageSize    = 1000
	DefaultTrackedPath = "config/coins_to_track.csv"
	DefaultDataDir     = "data"
)

type Config struct {
	App struct {
		Environment string `yaml:"environment"`
		LogLevel    string `yaml:"log_level"`
		LogDir      string `yaml:"log_dir"`
		Schedule    string `yaml:"schedule"`
	} `yaml:"app"`

	API struct {
		Key              string        `yaml:"key"`
		BaseURL          string        `yaml:"base_url"`
		PageSize         int           `yaml:"page_size"`
		RetryAttempts    int           `yaml:"retry_attempts"`
		RetryDelay       time.Duration `yaml:"retry_delay"`
		Timeout          time.Duration `yaml:"timeout"`
		BreakerThreshold int           `yaml:"breaker_threshold"`
		BreakerTimeout   time.Duration `yaml:"breaker_timeout"`
	} `yaml:"api"`

	Storage struct {
		DataDir              string `yaml:"data_dir"`
		TrackedCoinsPath     string `yaml:"tracked_coins_path"`
		HistoryWarnThreshold int    `yaml:"history_warn_threshold"`
	} `yaml:"storage"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and finally the process environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Environment = "production"
	cfg.App.LogLevel = "info"
	cfg.App.LogDir = "logs"

	cfg.API.BaseURL = DefaultBaseURL
	cfg.API.PageSize = DefaultPageSize
	cfg.API.RetryAttempts = 3
	cfg.API.RetryDelay = 20 * time.Second
	cfg.API.Timeout = 30 * time.Second
	cfg.API.BreakerThreshold = 5
	cfg.API.BreakerTimeout = 60 * time.Second

	cfg.Storage.DataDir = DefaultDataDir
	cfg.Storage.TrackedCoinsPath = DefaultTrackedPath
	cfg.Storage.HistoryWarnThreshold = 10000
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	// App settings
	cfg.App.Environment = getEnvOrDefault("APP_ENV", cfg.App.Environment)
	cfg.App.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.LogDir = getEnvOrDefault("LOG_DIR", cfg.App.LogDir)
	cfg.App.Schedule = getEnvOrDefault("SCHEDULE", cfg.App.Schedule)

	// CoinMarketCap settings
	cfg.API.Key = getEnvOrDefault("COINMARKETCAP_API_KEY", cfg.API.Key)
	cfg.API.BaseURL = getEnvOrDefault("CMC_BASE_URL", cfg.API.BaseURL)
	cfg.API.PageSize = getEnvAsIntOrDefault("CMC_PAGE_SIZE", cfg.API.PageSize)
	cfg.API.RetryAttempts = getEnvAsIntOrDefault("CMC_RETRY_ATTEMPTS", cfg.API.RetryAttempts)
	cfg.API.RetryDelay = getEnvAsSecondsOrDefault("CMC_RETRY_DELAY_SECS", cfg.API.RetryDelay)
	cfg.API.Timeout = getEnvAsSecondsOrDefault("CMC_HTTP_TIMEOUT_SECS", cfg.API.Timeout)
	cfg.API.BreakerThreshold = getEnvAsIntOrDefault("CMC_BREAKER_THRESHOLD", cfg.API.BreakerThreshold)
	cfg.API.BreakerTimeout = getEnvAsSecondsOrDefault("CMC_BREAKER_TIMEOUT_SECS", cfg.API.BreakerTimeout)

	// Storage settings
	cfg.Storage.DataDir = getEnvOrDefault("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.TrackedCoinsPath = getEnvOrDefault("TRACKED_COINS_PATH", cfg.Storage.TrackedCoinsPath)
	cfg.Storage.HistoryWarnThreshold = getEnvAsIntOrDefault("HISTORY_WARN_THRESHOLD", cfg.Storage.HistoryWarnThreshold)

	cfg.Metrics.Textfile = getEnvOrDefault("METRICS_TEXTFILE", cfg.Metrics.Textfile)
	if cfg.Metrics.Textfile == "" {
		cfg.Metrics.Textfile = filepath.Join(cfg.Storage.DataDir, "pipeline.prom")
	}
}

// Validate reports settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.API.Key == "" {
		return errors.New("COINMARKETCAP_API_KEY is required")
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.API.PageSize)
	}
	if c.API.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive, got %d", c.API.RetryAttempts)
	}
	// the breaker counts consecutive failures, so it must outlast one page's retries
	if c.API.BreakerThreshold <= c.API.RetryAttempts {
		return fmt.Errorf("breaker threshold (%d) must be greater than retry attempts (%d)",
			c.API.BreakerThreshold, c.API.RetryAttempts)
	}
	if c.Storage.DataDir == "" {
		return errors.New("data directory is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsSecondsOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal) * time.Second
		}
	}
	return defaultValue
}
