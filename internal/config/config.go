package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the stockdesk client.
type Config struct {
	Backend Backend `yaml:"backend"`
	Storage Storage `yaml:"storage"`
	Logging Logging `yaml:"logging"`
	Market  Market  `yaml:"market"`
	Chart   Chart   `yaml:"chart"`
}

// Backend holds the advisor API endpoint.
type Backend struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Storage holds paths for client-side persistence.
type Storage struct {
	SessionDB string `yaml:"session_db"`
	ExportDir string `yaml:"export_dir"`
}

// Logging configures the application logger.
type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Market controls the index dashboard.
type Market struct {
	Regions       []string `yaml:"regions"`
	DefaultRegion string   `yaml:"default_region"`
	RefreshCron   string   `yaml:"refresh_cron"` // empty disables periodic refresh
}

// Chart controls price history loading and plotting.
type Chart struct {
	Period string `yaml:"period"`
	Height int    `yaml:"height"`
	Width  int    `yaml:"width"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads an optional .env file and the YAML configuration at path, then
// applies environment variable overrides and defaults. A missing config file
// is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOCKDESK_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("STOCKDESK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.Timeout = d
		}
	}

	if v := os.Getenv("STOCKDESK_SESSION_DB"); v != "" {
		cfg.Storage.SessionDB = v
	}
	if v := os.Getenv("STOCKDESK_EXPORT_DIR"); v != "" {
		cfg.Storage.ExportDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	if v := os.Getenv("STOCKDESK_REGION"); v != "" {
		cfg.Market.DefaultRegion = v
	}
	if v := os.Getenv("STOCKDESK_REFRESH_CRON"); v != "" {
		cfg.Market.RefreshCron = v
	}

	if v := os.Getenv("STOCKDESK_CHART_PERIOD"); v != "" {
		cfg.Chart.Period = v
	}
	if v := os.Getenv("STOCKDESK_CHART_HEIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chart.Height = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8000"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 120 * time.Second // agent calls are slow
	}
	if cfg.Storage.SessionDB == "" {
		cfg.Storage.SessionDB = "data/stockdesk.db"
	}
	if cfg.Storage.ExportDir == "" {
		cfg.Storage.ExportDir = "data/charts"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "logs/stockdesk.log"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 25
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 5
	}
	if len(cfg.Market.Regions) == 0 {
		cfg.Market.Regions = []string{"US", "UK", "IN", "JP"}
	}
	if cfg.Market.DefaultRegion == "" {
		cfg.Market.DefaultRegion = cfg.Market.Regions[0]
	}
	if cfg.Chart.Period == "" {
		cfg.Chart.Period = "1mo"
	}
	if cfg.Chart.Height == 0 {
		cfg.Chart.Height = 12
	}
	if cfg.Chart.Width == 0 {
		cfg.Chart.Width = 72
	}
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	if c.Storage.SessionDB == "" {
		return fmt.Errorf("storage.session_db is required")
	}
	found := false
	for _, r := range c.Market.Regions {
		if r == c.Market.DefaultRegion {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("market.default_region %q is not in market.regions", c.Market.DefaultRegion)
	}
	if c.Chart.Height <= 0 || c.Chart.Width <= 0 {
		return fmt.Errorf("chart.height and chart.width must be positive")
	}
	return nil
}
