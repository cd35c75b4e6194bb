// Package config loads the scraper's settings.
//
// Settings come from three layers, later ones winning:
//
//  1. Built-in defaults ([Default])
//  2. A TOML file, by default $XDG_CONFIG_HOME/itunes-scraper/config.toml
//  3. Environment variables prefixed with ITUNES_SCRAPER_
//
// A missing default file is not an error; a missing file named explicitly is.
//
// Example file:
//
//	country = "gb"
//	lang = "en-gb"
//	timeout = "15s"
//
//	[sink]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//
// The same settings from the environment:
//
//	ITUNES_SCRAPER_COUNTRY=gb
//	ITUNES_SCRAPER_TIMEOUT=15s
//	ITUNES_SCRAPER_SINK_BACKEND=redis
//	ITUNES_SCRAPER_SINK_REDIS_ADDR=localhost:6379
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/market"
)

// AppName names the configuration directory.
const AppName = "itunes-scraper"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ITUNES_SCRAPER"

// Sink backends.
const (
	SinkFile  = "file"
	SinkRedis = "redis"
	SinkNone  = "none"
)

// Duration is a time.Duration read from strings such as "1.5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML and envconfig.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds every setting of the library, CLI and API server.
type Config struct {
	Country      string   `toml:"country" split_words:"true"`
	Lang         string   `toml:"lang" split_words:"true"`
	Timeout      Duration `toml:"timeout" split_words:"true"`
	RetryDelay   Duration `toml:"retry_delay" split_words:"true"`
	BatchDelay   Duration `toml:"batch_delay" split_words:"true"`
	RatingsDelay Duration `toml:"ratings_delay" split_words:"true"`

	Sink   SinkConfig   `toml:"sink" split_words:"true"`
	Mongo  MongoConfig  `toml:"mongo" split_words:"true"`
	Server ServerConfig `toml:"server" split_words:"true"`
}

// SinkConfig selects where batch failures are recorded.
type SinkConfig struct {
	Backend     string `toml:"backend" split_words:"true"`
	Dir         string `toml:"dir" split_words:"true"`
	MaxSizeMB   int    `toml:"max_size_mb" split_words:"true"`
	RedisAddr   string `toml:"redis_addr" split_words:"true"`
	RedisPrefix string `toml:"redis_prefix" split_words:"true"`
}

// MongoConfig is the export target for --mongo.
type MongoConfig struct {
	URI        string `toml:"uri" split_words:"true"`
	Database   string `toml:"database" split_words:"true"`
	Collection string `toml:"collection" split_words:"true"`
}

// ServerConfig configures "itunes-scraper serve".
type ServerConfig struct {
	Addr string `toml:"addr" split_words:"true"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Country:      "nl",
		Lang:         "nl",
		Timeout:      Duration{10 * time.Second},
		RetryDelay:   Duration{2 * time.Second},
		BatchDelay:   Duration{time.Second},
		RatingsDelay: Duration{time.Second},
		Sink: SinkConfig{
			Backend:     SinkFile,
			MaxSizeMB:   10,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "itunes-scraper:errors:",
		},
		Mongo: MongoConfig{
			Database:   "itunes",
			Collection: "apps",
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Dir returns the configuration directory using the XDG standard
// (~/.config/itunes-scraper/).
func Dir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// DefaultPath returns the config file looked up when none is named.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads path (or [DefaultPath] when empty), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise only fail at request time.
func (c Config) Validate() error {
	if _, err := market.StorefrontForCountry(c.Country); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(c.Sink.Backend) {
	case SinkFile, SinkRedis, SinkNone, "":
	default:
		return fmt.Errorf("config: unknown sink backend %q", c.Sink.Backend)
	}
	for name, d := range map[string]Duration{
		"timeout":     c.Timeout,
		"retry_delay": c.RetryDelay,
	} {
		if d.Duration < 0 {
			return fmt.Errorf("config: %s must not be negative", name)
		}
	}
	return nil
}
