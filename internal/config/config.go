package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/fileflow/fileflow/internal/watcher"
)

// Config holds the runtime configuration for the watcher daemon. Durations
// are expressed in seconds to keep the YAML file plain.
type Config struct {
	Root              string   `yaml:"root"`
	PluginDirs        []string `yaml:"plugin_dirs"`
	StableSeconds     float64  `yaml:"stable_seconds"`
	NewFileDelay      float64  `yaml:"new_file_delay"`
	CooldownSeconds   float64  `yaml:"cooldown_seconds"`
	ProcessTimeout    float64  `yaml:"process_timeout"`
	MaxStableAttempts int      `yaml:"max_stable_attempts"`
	MaxConcurrent     int64    `yaml:"max_concurrent"`
	Workers           int      `yaml:"workers"`
	ProcessExisting   bool     `yaml:"process_existing"`
	APIPort           int      `yaml:"api_port"`
	MetricsAddr       string   `yaml:"metrics_addr"`

	// Processors maps a processor's namespace to its parameter overrides.
	Processors map[string]map[string]interface{} `yaml:"processors"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Root:              ".",
		StableSeconds:     2.0,
		NewFileDelay:      0,
		CooldownSeconds:   5.0,
		ProcessTimeout:    30.0,
		MaxStableAttempts: watcher.DefaultMaxStableAttempts,
		MaxConcurrent:     1,
		Workers:           2,
		ProcessExisting:   false,
		MetricsAddr:       ":2112",
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// WatcherConfig converts the file-level settings into the dispatcher's
// configuration.
func (c *Config) WatcherConfig() watcher.Config {
	return watcher.Config{
		Root:              c.Root,
		StableWait:        seconds(c.StableSeconds),
		MaxStableAttempts: c.MaxStableAttempts,
		NewFileDelay:      seconds(c.NewFileDelay),
		Cooldown:          seconds(c.CooldownSeconds),
		ProcessTimeout:    seconds(c.ProcessTimeout),
		Workers:           c.Workers,
	}
}

// ParamsFor returns the configured parameter overrides for a processor
// namespace.
func (c *Config) ParamsFor(namespace string) map[string]interface{} {
	return c.Processors[namespace]
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
