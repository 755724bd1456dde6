// Package config loads the hub configuration from an optional YAML file,
// the environment and command line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nimdanitro/hub-sensors-go/pkg/awair"
	"github.com/nimdanitro/hub-sensors-go/pkg/nest"
	"github.com/nimdanitro/hub-sensors-go/pkg/throttle"
)

type Config struct {
	Nest         NestConfig    `yaml:"nest"`
	Awair        AwairConfig   `yaml:"awair"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Listen       string        `yaml:"listen"`
	LogLevel     string        `yaml:"log_level"`
}

type NestConfig struct {
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	BaseURL  string        `yaml:"base_url"`
	Throttle time.Duration `yaml:"throttle"`
}

type AwairConfig struct {
	AccessToken string `yaml:"access_token"`
	BaseURL     string `yaml:"base_url"`
}

// Enabled reports whether Nest credentials were given.
func (n NestConfig) Enabled() bool {
	return n.Username != "" || n.Password != ""
}

func (a AwairConfig) Enabled() bool {
	return a.AccessToken != ""
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = time.Minute
	}
	if c.Nest.Throttle == 0 {
		c.Nest.Throttle = throttle.DefaultInterval
	}
	if c.Nest.BaseURL == "" {
		c.Nest.BaseURL = nest.DefaultBaseURL
	}
	if c.Awair.BaseURL == "" {
		c.Awair.BaseURL = awair.DefaultBaseURL
	}
	if c.Listen == "" {
		c.Listen = ":9100"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"NEST_USERNAME":      &c.Nest.Username,
		"NEST_PASSWORD":      &c.Nest.Password,
		"AWAIR_ACCESS_TOKEN": &c.Awair.AccessToken,
		"HUB_LISTEN":         &c.Listen,
		"HUB_LOG_LEVEL":      &c.LogLevel,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	dur := map[string]*time.Duration{
		"HUB_POLL_INTERVAL": &c.PollInterval,
		"NEST_THROTTLE":     &c.Nest.Throttle,
	}
	for key, dst := range dur {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

// RegisterFlags defines the override flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("nest-username", "", "Nest account username (env: NEST_USERNAME)")
	fs.String("nest-password", "", "Nest account password (env: NEST_PASSWORD)")
	fs.Duration("nest-throttle", 0, "Minimum interval between Nest refreshes (env: NEST_THROTTLE)")
	fs.String("awair-token", "", "Awair developer access token (env: AWAIR_ACCESS_TOKEN)")
	fs.Duration("interval", 0, "Poll interval (env: HUB_POLL_INTERVAL)")
	fs.String("listen", "", "Address for the state API and /metrics (env: HUB_LISTEN)")
	fs.String("log-level", "", "Log level: debug, info, warn, error (env: HUB_LOG_LEVEL)")
}

// ApplyFlags copies every flag that was set on the command line.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	str := map[string]*string{
		"nest-username": &c.Nest.Username,
		"nest-password": &c.Nest.Password,
		"awair-token":   &c.Awair.AccessToken,
		"listen":        &c.Listen,
		"log-level":     &c.LogLevel,
	}
	for name, dst := range str {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	dur := map[string]*time.Duration{
		"interval":      &c.PollInterval,
		"nest-throttle": &c.Nest.Throttle,
	}
	for name, dst := range dur {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

func (c *Config) Validate() error {
	if !c.Nest.Enabled() && !c.Awair.Enabled() {
		return errors.New("no vendor configured: set Nest credentials or an Awair access token")
	}
	if c.Nest.Enabled() && (c.Nest.Username == "" || c.Nest.Password == "") {
		return errors.New("nest: both username and password are required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.Nest.Throttle <= 0 {
		return fmt.Errorf("nest.throttle must be positive, got %s", c.Nest.Throttle)
	}
	return nil
}
