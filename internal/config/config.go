// Package config loads server settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr string     `yaml:"addr" json:"addr"`
	Page PageConfig `yaml:"page" json:"page"`
	Form FormConfig `yaml:"form" json:"form"`
	Log  LogConfig  `yaml:"log" json:"log"`
	API  APIConfig  `yaml:"api" json:"api"`
}

type PageConfig struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

type FormConfig struct {
	RequireNonEmpty bool `yaml:"require_non_empty" json:"require_non_empty"`
	MaxLength       int  `yaml:"max_length" json:"max_length"`
	// ServerAction forwards accepted drafts to the logging form action.
	ServerAction bool `yaml:"server_action" json:"server_action"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text or json
}

type APIConfig struct {
	MaskInternalErrors bool          `yaml:"mask_internal_errors" json:"mask_internal_errors"`
	MaxRequestBodySize uint64        `yaml:"max_request_body_size" json:"max_request_body_size"`
	CORSOrigins        []string      `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`
	StreamHeartbeat    time.Duration `yaml:"stream_heartbeat" json:"stream_heartbeat"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Page.Title == "" {
		c.Page.Title = "Todo App"
	}
	if c.Page.Description == "" {
		c.Page.Description = "A single-page todo list"
	}
	if c.Form.MaxLength <= 0 {
		c.Form.MaxLength = 1024
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.API.MaxRequestBodySize == 0 {
		c.API.MaxRequestBodySize = 1 << 20
	}
	if c.API.StreamHeartbeat == 0 {
		c.API.StreamHeartbeat = 30 * time.Second
	}
}

// Load reads path, applies TODOFORM_* environment overrides and defaults.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("TODOFORM_ADDR"); ok {
		c.Addr = v
	}
	if v, ok := lookup("TODOFORM_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("TODOFORM_LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := lookup("TODOFORM_REQUIRE_NON_EMPTY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TODOFORM_REQUIRE_NON_EMPTY: %w", err)
		}
		c.Form.RequireNonEmpty = b
	}
	if v, ok := lookup("TODOFORM_CORS_ORIGINS"); ok && v != "" {
		c.API.CORSOrigins = strings.Split(v, ",")
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format %q: want text or json", c.Log.Format)
	}
	return nil
}

// Write encodes c as YAML.
func Write(w io.Writer, c *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// NewLogger builds the slog logger described by l.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("log format %q: want text or json", l.Format)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}
