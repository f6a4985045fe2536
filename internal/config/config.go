// Package config loads firetour settings from config.yaml and FIRETOUR_*
// environment variables, and sets up the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wildfire-lab/firetour/internal/modis"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	LPDAAC   LPDAACConfig   `yaml:"lpdaac" mapstructure:"lpdaac"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Fire     FireConfig     `yaml:"fire" mapstructure:"fire"`
	Tourism  TourismConfig  `yaml:"tourism" mapstructure:"tourism"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Density  DensityConfig  `yaml:"density" mapstructure:"density"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	// Region is the study area. It filters tiles, detections and POIs and
	// frames the static maps.
	Region modis.BBox `yaml:"region" mapstructure:"region"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LPDAACConfig configures directory listing of the LP DAAC archive.
type LPDAACConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	Product      string `yaml:"product" mapstructure:"product"`
	Collection   string `yaml:"collection" mapstructure:"collection"`
	DateRegex    string `yaml:"date_regex" mapstructure:"date_regex"`
	HDFRegex     string `yaml:"hdf_regex" mapstructure:"hdf_regex"`
	Concurrency  int    `yaml:"concurrency" mapstructure:"concurrency"`
	Netrc        string `yaml:"netrc" mapstructure:"netrc"`
	NetrcMachine string `yaml:"netrc_machine" mapstructure:"netrc_machine"`
}

// DownloadConfig configures the batch downloader.
type DownloadConfig struct {
	DataRoot         string `yaml:"data_root" mapstructure:"data_root"`
	Parallel         int    `yaml:"parallel" mapstructure:"parallel"`
	Overwrite        bool   `yaml:"overwrite" mapstructure:"overwrite"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int    `yaml:"max_retries" mapstructure:"max_retries"`
	BreakerThreshold int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// FireConfig configures fire pixel extraction.
type FireConfig struct {
	Threshold   int `yaml:"threshold" mapstructure:"threshold"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// TourismConfig configures POI loading.
type TourismConfig struct {
	Kinds    []string `yaml:"kinds" mapstructure:"kinds"`
	SkipWays bool     `yaml:"skip_ways" mapstructure:"skip_ways"`
	RadiusKm float64  `yaml:"radius_km" mapstructure:"radius_km"`
}

// RenderConfig configures map output.
type RenderConfig struct {
	Style    string  `yaml:"style" mapstructure:"style"`
	Levels   int     `yaml:"levels" mapstructure:"levels"`
	MaxAlpha float64 `yaml:"max_alpha" mapstructure:"max_alpha"`
}

// DensityConfig configures KDE grids and hex binning.
type DensityConfig struct {
	NX         int     `yaml:"nx" mapstructure:"nx"`
	NY         int     `yaml:"ny" mapstructure:"ny"`
	Bandwidth  float64 `yaml:"bandwidth" mapstructure:"bandwidth"`
	Resolution int     `yaml:"resolution" mapstructure:"resolution"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FIRETOUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "firetour.db")
	v.SetDefault("lpdaac.base_url", "https://e4ftl01.cr.usgs.gov")
	v.SetDefault("lpdaac.product", "MOD14A1")
	v.SetDefault("lpdaac.collection", "006")
	v.SetDefault("lpdaac.date_regex", `/\d{4}\.\d{2}\.\d{2}/?$`)
	v.SetDefault("lpdaac.hdf_regex", `\.hdf$`)
	v.SetDefault("lpdaac.concurrency", 4)
	v.SetDefault("lpdaac.netrc", "~/.netrc")
	v.SetDefault("lpdaac.netrc_machine", "urs.earthdata.nasa.gov")
	v.SetDefault("download.data_root", "~/data/modis")
	v.SetDefault("download.parallel", 10)
	v.SetDefault("download.user_agent", "firetour/1.0")
	v.SetDefault("download.timeout_secs", 600)
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.breaker_threshold", 5)
	v.SetDefault("download.breaker_reset_secs", 30)
	v.SetDefault("fire.threshold", 7)
	v.SetDefault("fire.concurrency", 4)
	v.SetDefault("tourism.radius_km", 5.0)
	v.SetDefault("render.levels", 20)
	v.SetDefault("render.max_alpha", 0.9)
	v.SetDefault("density.nx", 200)
	v.SetDefault("density.ny", 70)
	v.SetDefault("density.resolution", 6)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("region.min_lon", -10.0)
	v.SetDefault("region.min_lat", 41.0)
	v.SetDefault("region.max_lon", 0.0)
	v.SetDefault("region.max_lat", 44.5)
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "download":
		if c.Download.DataRoot == "" {
			errs = append(errs, "download.data_root is required")
		}
		if c.Download.Parallel < 1 || c.Download.Parallel > 64 {
			errs = append(errs, "download.parallel must be between 1 and 64")
		}
	case "fires":
		if c.Fire.Threshold < 0 || c.Fire.Threshold > 9 {
			errs = append(errs, "fire.threshold must be between 0 and 9")
		}
	case "density":
		if c.Density.NX < 2 || c.Density.NY < 2 {
			errs = append(errs, "density.nx and density.ny must be >= 2")
		}
		if c.Density.Resolution < 0 || c.Density.Resolution > 15 {
			errs = append(errs, "density.resolution must be between 0 and 15")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "store":
		switch c.Store.Driver {
		case "sqlite", "":
		case "postgres", "postgresql":
			if c.Store.DSN == "" {
				errs = append(errs, "store.dsn is required for postgres")
			}
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if !c.Region.IsZero() && (c.Region.MinLon >= c.Region.MaxLon || c.Region.MinLat >= c.Region.MaxLat) {
		errs = append(errs, "region min must be below max")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
