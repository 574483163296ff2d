package core

import (
	"fmt"
	"os"
	"runtime"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// EngineConfig mirrors the engine's YAML configuration file.
type EngineConfig struct {
	Name              string `yaml:"name"`                // generated when empty
	Workers           int    `yaml:"workers"`             // runtime.NumCPU() by default
	IdlePollMS        int    `yaml:"idle_poll_ms"`        // 1
	HighPerNormal     int    `yaml:"high_per_normal"`     // 3
	ShutdownTimeoutMS int    `yaml:"shutdown_timeout_ms"` // 0 = wait for every worker
	LogLevel          string `yaml:"log_level"`           // info
	MetricsNamespace  string `yaml:"metrics_namespace"`   // taskengine
	MetricsAddr       string `yaml:"metrics_addr"`        // :2112
	PollIntervalMS    int    `yaml:"poll_interval_ms"`    // 1000, stats snapshot period
}

// DefaultEngineConfig returns the configuration used when no file is given.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:          runtime.NumCPU(),
		IdlePollMS:       1,
		HighPerNormal:    DefaultHighPerNormal,
		LogLevel:         "info",
		MetricsNamespace: "taskengine",
		MetricsAddr:      ":2112",
		PollIntervalMS:   1000,
	}
}

// LoadConfig reads YAML from path on top of the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := ParseConfig(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes data into cfg and clamps out-of-range values.
// Keys absent from data keep the values already in cfg.
func ParseConfig(data []byte, cfg *EngineConfig) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	cfg.clamp()
	return nil
}

// sanity clamps
func (c *EngineConfig) clamp() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.IdlePollMS <= 0 {
		c.IdlePollMS = 1
	}
	if c.HighPerNormal <= 0 {
		c.HighPerNormal = DefaultHighPerNormal
	}
	if c.ShutdownTimeoutMS < 0 {
		c.ShutdownTimeoutMS = 0
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "taskengine"
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = 1000
	}
}

// IdlePoll returns IdlePollMS as a duration.
func (c EngineConfig) IdlePoll() time.Duration {
	return time.Duration(c.IdlePollMS) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration; zero means no limit.
func (c EngineConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

// PollInterval returns PollIntervalMS as a duration.
func (c EngineConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
