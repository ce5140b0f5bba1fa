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
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Amenity  AmenityConfig  `yaml:"amenity" mapstructure:"amenity"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Listings ListingsConfig `yaml:"listings" mapstructure:"listings"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// AmenityConfig configures the amenity index client and how lookups run.
type AmenityConfig struct {
	Endpoint         string  `yaml:"endpoint" mapstructure:"endpoint"`
	Client           string  `yaml:"client" mapstructure:"client"` // interpreter or library
	RadiusMeters     int     `yaml:"radius_meters" mapstructure:"radius_meters"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// CacheConfig selects the amenity cache backend.
type CacheConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // file, sqlite or postgres
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures place-name geocoding.
type GeocodeConfig struct {
	Endpoint     string  `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ListingsConfig restricts which listings are scored.
type ListingsConfig struct {
	Region        string   `yaml:"region" mapstructure:"region"`
	Localities    []string `yaml:"localities" mapstructure:"localities"`
	PropertyTypes []string `yaml:"property_types" mapstructure:"property_types"`
}

// ScoringConfig selects features and weights.
type ScoringConfig struct {
	Features     []string           `yaml:"features" mapstructure:"features"`
	Weights      map[string]float64 `yaml:"weights" mapstructure:"weights"`
	MedianIncome float64            `yaml:"median_income" mapstructure:"median_income"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int `yaml:"port" mapstructure:"port"`
	CheckpointSecs int `yaml:"checkpoint_secs" mapstructure:"checkpoint_secs"`
}

// Load reads configuration from config.yaml (optional), environment
// variables prefixed with HOMESCORE_, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("HOMESCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("amenity.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("amenity.client", "interpreter")
	v.SetDefault("amenity.radius_meters", 3000)
	v.SetDefault("amenity.timeout_secs", 60)
	v.SetDefault("amenity.rate_per_sec", 1.0)
	v.SetDefault("amenity.user_agent", "homescore/1.0 (listing amenity enrichment)")
	v.SetDefault("amenity.concurrency", 1)
	v.SetDefault("amenity.max_attempts", 1)
	v.SetDefault("amenity.breaker_threshold", 0)
	v.SetDefault("amenity.breaker_reset_secs", 60)
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.path", "amenity_cache.json")
	v.SetDefault("geocode.endpoint", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.user_agent", "homescore/1.0 (listing geocoder)")
	v.SetDefault("geocode.rate_per_sec", 1.0)
	v.SetDefault("listings.region", "BC")
	v.SetDefault("listings.property_types", []string{"Single Family", "Condo", "Townhome", "MultiFamily"})
	v.SetDefault("listings.localities", []string{
		"Vancouver", "Burnaby", "Richmond", "Surrey", "Coquitlam", "North Vancouver",
		"West Vancouver", "New Westminster", "Delta", "Port Coquitlam", "Port Moody", "Langley",
	})
	v.SetDefault("scoring.median_income", 65000.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.checkpoint_secs", 300)

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

// Validate checks ranges and enumerated values.
func (c *Config) Validate() error {
	var errs []string

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is not a valid level", c.Log.Level))
	}

	a := c.Amenity
	switch a.Client {
	case "interpreter", "library":
	default:
		errs = append(errs, fmt.Sprintf("amenity.client must be interpreter or library, got %q", a.Client))
	}
	if a.Endpoint == "" {
		errs = append(errs, "amenity.endpoint is required")
	}
	if a.RadiusMeters <= 0 {
		errs = append(errs, "amenity.radius_meters must be > 0")
	}
	if a.TimeoutSecs <= 0 {
		errs = append(errs, "amenity.timeout_secs must be > 0")
	}
	if a.RatePerSec <= 0 {
		errs = append(errs, "amenity.rate_per_sec must be > 0")
	}
	if a.Concurrency < 1 {
		errs = append(errs, "amenity.concurrency must be >= 1")
	}
	if a.MaxAttempts < 1 {
		errs = append(errs, "amenity.max_attempts must be >= 1")
	}
	if a.BreakerThreshold < 0 {
		errs = append(errs, "amenity.breaker_threshold must be >= 0")
	}
	if a.BreakerThreshold > 0 && a.BreakerResetSecs <= 0 {
		errs = append(errs, "amenity.breaker_reset_secs must be > 0 when the breaker is enabled")
	}

	switch c.Cache.Backend {
	case "file", "sqlite":
		if c.Cache.Path == "" {
			errs = append(errs, fmt.Sprintf("cache.path is required for the %s backend", c.Cache.Backend))
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			errs = append(errs, "cache.database_url is required for the postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.backend must be file, sqlite or postgres, got %q", c.Cache.Backend))
	}

	if c.Geocode.RatePerSec <= 0 {
		errs = append(errs, "geocode.rate_per_sec must be > 0")
	}
	if c.Scoring.MedianIncome <= 0 {
		errs = append(errs, "scoring.median_income must be > 0")
	}
	for name, w := range c.Scoring.Weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("scoring.weights.%s must be >= 0", name))
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.CheckpointSecs < 0 {
		errs = append(errs, "server.checkpoint_secs must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger sets up the global zap logger based on config.
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
