package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("poll interval = %s", cfg.PollInterval)
	}
	if cfg.Nest.Throttle != 5*time.Minute {
		t.Errorf("nest throttle = %s", cfg.Nest.Throttle)
	}
	if cfg.Listen != ":9100" || cfg.LogLevel != "info" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.yaml")
	raw := []byte(`
poll_interval: 30s
nest:
  username: user@example.com
  password: hunter2
  throttle: 10m
awair:
  access_token: abc
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval != 30*time.Second || cfg.Nest.Throttle != 10*time.Minute {
		t.Errorf("durations not parsed: %+v", cfg)
	}
	if cfg.Nest.Username != "user@example.com" || cfg.Awair.AccessToken != "abc" {
		t.Errorf("credentials not parsed: %+v", cfg)
	}
	if cfg.Nest.BaseURL != "https://home.nest.com" {
		t.Errorf("defaults not applied after parse: %q", cfg.Nest.BaseURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestPrecedence(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"NEST_USERNAME":     "env-user",
		"NEST_PASSWORD":     "env-pass",
		"HUB_POLL_INTERVAL": "2m",
	}
	if err := cfg.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--nest-username", "flag-user", "--nest-throttle", "1m"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		t.Fatalf("ApplyFlags: %v", err)
	}

	if cfg.Nest.Username != "flag-user" {
		t.Errorf("flag should win over env, got %q", cfg.Nest.Username)
	}
	if cfg.Nest.Password != "env-pass" {
		t.Errorf("env should win over defaults, got %q", cfg.Nest.Password)
	}
	if cfg.PollInterval != 2*time.Minute || cfg.Nest.Throttle != time.Minute {
		t.Errorf("durations = %s, %s", cfg.PollInterval, cfg.Nest.Throttle)
	}
}

func TestApplyEnvInvalidDuration(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "NEST_THROTTLE" {
			return "soon", true
		}
		return "", false
	})
	if err == nil {
		t.Fatal("expected error for an invalid duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"nothing configured", func(c *Config) {}, false},
		{"awair only", func(c *Config) { c.Awair.AccessToken = "t" }, true},
		{"nest only", func(c *Config) { c.Nest.Username, c.Nest.Password = "u", "p" }, true},
		{"nest missing password", func(c *Config) { c.Nest.Username = "u" }, false},
		{"zero interval", func(c *Config) { c.Awair.AccessToken = "t"; c.PollInterval = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
