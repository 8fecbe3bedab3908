// Package config loads application configuration from file and environment
// and wires the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Appraiser AppraiserConfig `yaml:"appraiser" mapstructure:"appraiser"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Query     QueryConfig     `yaml:"query" mapstructure:"query"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" mapstructure:"driver"`
	// Path is the SQLite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AppraiserConfig configures the record source client.
type AppraiserConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// IngestConfig configures the fetch worker pool and its record filters.
type IngestConfig struct {
	Workers         int  `yaml:"workers" mapstructure:"workers"`
	QueueDepth      int  `yaml:"queue_depth" mapstructure:"queue_depth"`
	ResidentialOnly bool `yaml:"residential_only" mapstructure:"residential_only"`
	RequireLand     bool `yaml:"require_land" mapstructure:"require_land"`
}

// NormalizeConfig selects the land-line filtering variant.
type NormalizeConfig struct {
	DropFrontage bool `yaml:"drop_frontage" mapstructure:"drop_frontage"`
}

// QueryConfig configures the bounding-box query service.
type QueryConfig struct {
	// HalfWidthDeg is the box half-width in degrees around the query
	// center. Known deployments use 0.5 (coarse) or 0.008 (fine).
	HalfWidthDeg  float64 `yaml:"half_width_deg" mapstructure:"half_width_deg"`
	ValuationYear int     `yaml:"valuation_year" mapstructure:"valuation_year"`
}

// ServerConfig configures the query API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("APPRAISAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "main_db.sqlite")
	v.SetDefault("appraiser.timeout_secs", 20)
	v.SetDefault("appraiser.rate_limit", 10.0)
	v.SetDefault("appraiser.max_retries", 3)
	v.SetDefault("ingest.workers", 50)
	v.SetDefault("ingest.queue_depth", 0)
	v.SetDefault("ingest.residential_only", true)
	v.SetDefault("ingest.require_land", true)
	v.SetDefault("normalize.drop_frontage", true)
	v.SetDefault("query.half_width_deg", 0.5)
	v.SetDefault("query.valuation_year", 2020)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration required by the given run mode. Shared
// settings are checked for every mode; mode-specific settings only when that
// mode enables them.
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		errs = append(errs, "store.path is required for the sqlite driver")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for the postgres driver")
	}

	switch mode {
	case "ingest":
		if c.Ingest.Workers < 1 || c.Ingest.Workers > 200 {
			errs = append(errs, "ingest.workers must be between 1 and 200")
		}
		if c.Appraiser.RateLimit <= 0 {
			errs = append(errs, "appraiser.rate_limit must be > 0")
		}
		if c.Appraiser.MaxRetries < 1 {
			errs = append(errs, "appraiser.max_retries must be >= 1")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Query.HalfWidthDeg <= 0 {
			errs = append(errs, "query.half_width_deg must be > 0")
		}
		if c.Query.ValuationYear <= 0 {
			errs = append(errs, "query.valuation_year must be > 0")
		}
	case "import", "index", "migrate", "runs":
		// Store settings only, already checked above.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
