// Package config handles loading, defaulting, and validation of the
// zenithd TOML configuration file. Every section maps to a typed struct so
// the rest of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Server     ServerConfig      `toml:"server"     json:"server"`
	Logging    LoggingConfig     `toml:"logging"    json:"logging"`
	Auth       AuthConfig        `toml:"auth"       json:"auth"`
	TLE        TLEConfig         `toml:"tle"        json:"tle"`
	Predict    PredictConfig     `toml:"predict"    json:"predict"`
	Live       LiveConfig        `toml:"live"       json:"live"`
	Satellites []SatelliteConfig `toml:"satellites" json:"satellites"`
}

type ServerConfig struct {
	Bind              string `toml:"bind"                json:"bind"`
	TrustProxy        bool   `toml:"trust_proxy"         json:"trust_proxy"`
	CORSAllowedOrigin string `toml:"cors_allowed_origin" json:"cors_allowed_origin"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

// AuthConfig enables bearer auth on mutating endpoints. The token itself
// comes from the ZENITH_AUTH_TOKEN environment variable, never the file.
type AuthConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
}

type TLEConfig struct {
	SourceURL           string `toml:"source_url"            json:"source_url"`
	StoreDir            string `toml:"store_dir"             json:"store_dir"`
	MaxAgeHours         int    `toml:"max_age_hours"         json:"max_age_hours"`
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`
	RefreshCron         string `toml:"refresh_cron"          json:"refresh_cron"`
}

type PredictConfig struct {
	ElevationMask      float64 `toml:"elevation_mask"       json:"elevation_mask"`
	DefaultWindowHours int     `toml:"default_window_hours" json:"default_window_hours"`
	MaxWindowHours     int     `toml:"max_window_hours"     json:"max_window_hours"`
}

type LiveConfig struct {
	Enabled         bool `toml:"enabled"          json:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds" json:"interval_seconds"`
}

type SatelliteConfig struct {
	ID      string `toml:"id"       json:"id"`
	NoradID int    `toml:"norad_id" json:"norad_id"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:              "0.0.0.0:8080",
			TrustProxy:        false,
			CORSAllowedOrigin: "*",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		TLE: TLEConfig{
			SourceURL:           "https://celestrak.org/NORAD/elements/gp.php?CATNR=%d&FORMAT=tle",
			StoreDir:            "/var/lib/zenith/tle",
			MaxAgeHours:         24,
			FetchTimeoutSeconds: 30,
			RefreshCron:         "@every 6h",
		},
		Predict: PredictConfig{
			ElevationMask:      10.0,
			DefaultWindowHours: 24,
			MaxWindowHours:     72,
		},
		Live: LiveConfig{
			Enabled:         true,
			IntervalSeconds: 5,
		},
		Satellites: []SatelliteConfig{
			{ID: "ISS", NoradID: 25544},
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An empty path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MaxAge returns the element-set freshness horizon as a duration.
func (c TLEConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// FetchTimeout returns the per-attempt fetch deadline as a duration.
func (c TLEConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func validate(cfg Config) error {
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	if cfg.TLE.SourceURL == "" {
		return errors.New("tle.source_url must not be empty")
	}
	if cfg.TLE.MaxAgeHours < 1 {
		return errors.New("tle.max_age_hours must be >= 1")
	}
	if cfg.TLE.FetchTimeoutSeconds < 1 {
		return errors.New("tle.fetch_timeout_seconds must be >= 1")
	}
	if cfg.Predict.ElevationMask < 0 || cfg.Predict.ElevationMask > 90 {
		return errors.New("predict.elevation_mask must be between 0 and 90")
	}
	if cfg.Predict.DefaultWindowHours < 1 {
		return errors.New("predict.default_window_hours must be >= 1")
	}
	if cfg.Predict.MaxWindowHours < cfg.Predict.DefaultWindowHours {
		return errors.New("predict.max_window_hours must be >= predict.default_window_hours")
	}
	if cfg.Live.IntervalSeconds < 1 {
		return errors.New("live.interval_seconds must be >= 1")
	}
	if len(cfg.Satellites) == 0 {
		return errors.New("at least one [[satellites]] entry is required")
	}
	seen := make(map[string]bool, len(cfg.Satellites))
	for _, s := range cfg.Satellites {
		if s.ID == "" || s.NoradID <= 0 {
			return fmt.Errorf("satellite entry %+v needs both id and norad_id", s)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate satellite id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
