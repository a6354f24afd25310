// Package config captures all tunable settings for playwrightium.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is layered: DefaultConfig() <- YAML file <- PWY_* environment.
type Config struct {
	Server  ServerConfig  `yaml:"server" envPrefix:"PWY_SERVER_"`
	Browser BrowserConfig `yaml:"browser" envPrefix:"PWY_BROWSER_"`
	Report  ReportConfig  `yaml:"report" envPrefix:"PWY_REPORT_"`
}

type ServerConfig struct {
	Name    string `yaml:"name" env:"NAME"`
	Version string `yaml:"version" env:"-"`
	// LogFile receives all logging in stdio mode, where stderr noise would
	// corrupt the MCP protocol stream.
	LogFile string `yaml:"log_file" env:"LOG_FILE"`
	// When set, serves MCP over SSE on this port instead of stdio.
	SSEPort int `yaml:"sse_port" env:"SSE_PORT"`
}

// BrowserConfig configures how the session manager launches Chrome for Rod.
type BrowserConfig struct {
	// Optional explicit Chrome binary; empty lets Rod's launcher find one.
	Bin string `yaml:"bin" env:"BIN"`
	// Headless controls the launch mode (default: true).
	Headless *bool `yaml:"headless" env:"HEADLESS"`
	// Default navigation timeout (e.g., "30s").
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout" env:"NAVIGATION_TIMEOUT"`
	// Default per-command timeout for element lookups and waits (e.g., "10s").
	DefaultCommandTimeout string `yaml:"default_command_timeout" env:"COMMAND_TIMEOUT"`
	ViewportWidth         int    `yaml:"viewport_width" env:"VIEWPORT_WIDTH"`
	ViewportHeight        int    `yaml:"viewport_height" env:"VIEWPORT_HEIGHT"`
}

// ReportConfig controls where run artifacts land and how many runs we keep.
type ReportConfig struct {
	Dir  string `yaml:"dir" env:"DIR"`
	Keep int    `yaml:"keep" env:"KEEP"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "playwrightium",
			Version: "0.2.0",
			LogFile: "playwrightium.log",
		},
		Browser: BrowserConfig{
			DefaultNavigationTimeout: "30s",
			DefaultCommandTimeout:    "10s",
			ViewportWidth:            1920,
			ViewportHeight:           1080,
		},
		Report: ReportConfig{
			Dir:  "runs",
			Keep: 10,
		},
	}
}

// Load overlays defaults with an optional YAML file, then the environment.
// An empty path skips the file layer entirely.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Report.Keep < 0 {
		return errors.New("report.keep must not be negative")
	}
	return nil
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	return parseDuration(b.DefaultNavigationTimeout, 30*time.Second)
}

// CommandTimeout returns the parsed per-command timeout with a sane default.
func (b BrowserConfig) CommandTimeout() time.Duration {
	return parseDuration(b.DefaultCommandTimeout, 10*time.Second)
}

// IsHeadless returns whether Chrome should run headless (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1920
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1080
	}
	return b.ViewportHeight
}

// KeepRuns returns how many run directories to retain (default: 10).
func (r ReportConfig) KeepRuns() int {
	if r.Keep <= 0 {
		return 10
	}
	return r.Keep
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
