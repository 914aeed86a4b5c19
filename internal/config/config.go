// Package config provides configuration loading for boxd.
//
// Configuration is read from a YAML or TOML file and overridden by BOXD_*
// environment variables. The "global" section is handed to the application
// unchanged as its global configuration; the "logging" and "telemetry"
// sections are decoded by their own packages through Section.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/knadh/koanf/v2"
)

// Config holds the complete boxd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Document   DocumentConfig   `koanf:"document"`
	App        AppConfig        `koanf:"app"`
	Events     EventsConfig     `koanf:"events"`
	Navigation NavigationConfig `koanf:"navigation"`
	Global     map[string]any   `koanf:"global"`

	// Path is the file the configuration was loaded from, if any.
	Path string `koanf:"-"`

	k *koanf.Koanf
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit caps POST requests per second. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// DocumentConfig locates the HTML document modules are bound to.
type DocumentConfig struct {
	Path string `koanf:"path"`
}

// AppConfig holds application coordinator settings.
type AppConfig struct {
	// Debug makes module failures fatal instead of reported.
	Debug bool `koanf:"debug"`
}

// EventsConfig holds broadcast relay configuration.
type EventsConfig struct {
	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig configures the NATS broadcast relay.
type NATSConfig struct {
	Enabled       bool    `koanf:"enabled"`
	URL           string  `koanf:"url"`
	SubjectPrefix string  `koanf:"subject_prefix"`
	RateLimit     float64 `koanf:"rate_limit"`
	Burst         int     `koanf:"burst"`
}

// NavigationConfig configures the navigator.
type NavigationConfig struct {
	Base         string   `koanf:"base"`
	AllowedHosts []string `koanf:"allowed_hosts"`
	MaxHistory   int      `koanf:"max_history"`
}

// Default returns configuration with every default applied.
func Default() *Config {
	cfg := &Config{k: koanf.New(".")}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.Burst == 0 {
		cfg.Server.Burst = int(cfg.Server.RateLimit) + 1
	}

	if cfg.Events.NATS.URL == "" {
		cfg.Events.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Events.NATS.SubjectPrefix == "" {
		cfg.Events.NATS.SubjectPrefix = "boxd.events"
	}

	if cfg.Navigation.Base == "" {
		cfg.Navigation.Base = "/"
	}
	if cfg.Navigation.MaxHistory == 0 {
		cfg.Navigation.MaxHistory = 100
	}

	if cfg.Global == nil {
		cfg.Global = map[string]any{}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server rate_limit must be >= 0, got %v", c.Server.RateLimit)
	}
	if c.Events.NATS.Enabled {
		if _, err := url.Parse(c.Events.NATS.URL); err != nil {
			return fmt.Errorf("invalid nats url: %w", err)
		}
		if c.Events.NATS.RateLimit < 0 {
			return fmt.Errorf("nats rate_limit must be >= 0, got %v", c.Events.NATS.RateLimit)
		}
	}
	if _, err := url.Parse(c.Navigation.Base); err != nil {
		return fmt.Errorf("invalid navigation base: %w", err)
	}
	if c.Navigation.MaxHistory < 0 {
		return fmt.Errorf("navigation max_history must be >= 0, got %d", c.Navigation.MaxHistory)
	}
	return nil
}

// Section decodes the configuration subtree at path into out. Fields of
// out not present in the subtree keep their current values.
func (c *Config) Section(path string, out any) error {
	if c.k == nil || !c.k.Exists(path) {
		return nil
	}
	if err := c.k.Unmarshal(path, out); err != nil {
		return fmt.Errorf("failed to decode %s section: %w", path, err)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
