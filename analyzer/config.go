// CLAUDE:SUMMARY Analyzer configuration (rules dir, history db, workers, watch, HTTP) and YAML/env loading.
package analyzer

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/alttext/horosafe"
)

// Config holds the analyzer configuration.
type Config struct {
	RulesDir   string `yaml:"rules_dir"`
	DBPath     string `yaml:"db_path"`
	Workers    int    `yaml:"workers"`
	AppContext string `yaml:"app_context"`
	// InputRoot is the directory MCP callers may read layouts from by
	// relative path. Empty disables path access.
	InputRoot string      `yaml:"input_root"`
	MaxInput  int64       `yaml:"max_input"`
	Watch     WatchConfig `yaml:"watch"`
	HTTP      HTTPConfig  `yaml:"http"`
}

// WatchConfig controls rule table hot reload.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// HTTPConfig controls the HTTP API.
type HTTPConfig struct {
	Addr    string `yaml:"addr"`
	MaxBody int64  `yaml:"max_body"`
}

func (c *Config) defaults() {
	if c.RulesDir == "" {
		c.RulesDir = "comprehensive_rules"
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxInput <= 0 {
		c.MaxInput = horosafe.MaxLayoutSize
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 2 * time.Second
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8087"
	}
	if c.HTTP.MaxBody <= 0 {
		c.HTTP.MaxBody = 4 << 20
	}
}

// LoadConfigFile reads a YAML config file. Unset fields keep their defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("analyzer: read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("analyzer: parse config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}

// ApplyEnv overrides fields from ALTTEXT_RULES_DIR, ALTTEXT_DB,
// ALTTEXT_ADDR, ALTTEXT_WORKERS and ALTTEXT_APP_CONTEXT.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("ALTTEXT_RULES_DIR"); ok && v != "" {
		c.RulesDir = v
	}
	if v, ok := lookup("ALTTEXT_DB"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := lookup("ALTTEXT_ADDR"); ok && v != "" {
		c.HTTP.Addr = v
	}
	if v, ok := lookup("ALTTEXT_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
	if v, ok := lookup("ALTTEXT_APP_CONTEXT"); ok && v != "" {
		c.AppContext = v
	}
}
