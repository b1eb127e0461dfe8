// Package agent is the device-resident updater: it checks for updates,
// downloads and verifies bundles, and guards every applied update with a
// health verification window before committing.
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "15m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the device agent configuration, loaded from a YAML file shipped
// inside the app.
type Config struct {
	ServerURL  string `yaml:"server_url"`
	AppID      string `yaml:"app_id"`
	Channel    string `yaml:"channel"`
	AppVersion string `yaml:"app_version"`
	StateDir   string `yaml:"state_dir"`

	// Tier selects the verification strategy: timer for free and pro,
	// route health for team and enterprise.
	Tier string `yaml:"tier"`

	CheckInterval Duration `yaml:"check_interval"`
	VerifyWindow  Duration `yaml:"verify_window"`
}

// LoadConfig reads and validates the agent configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse agent config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Channel == "" {
		c.Channel = "production"
	}
	if c.StateDir == "" {
		c.StateDir = filepath.Join(os.TempDir(), "bundlenudge")
	}
	if c.Tier == "" {
		c.Tier = "free"
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = Duration(15 * time.Minute)
	}
	if c.VerifyWindow == 0 {
		c.VerifyWindow = Duration(time.Minute)
	}
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.AppID == "" {
		return fmt.Errorf("app_id is required")
	}
	if c.AppVersion == "" {
		return fmt.Errorf("app_version is required")
	}
	return nil
}
