package core

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\") error = %v", err)
	}
	if cfg != DefaultEngineConfig() {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, DefaultEngineConfig())
	}
	if cfg.IdlePoll() != time.Millisecond {
		t.Errorf("IdlePoll() = %v, want 1ms", cfg.IdlePoll())
	}
}

// TestLoadConfig_OverridesAndClamps verifies file values win and bad values are clamped
// Given: A YAML file that sets some keys and gives invalid values for others
// When: LoadConfig reads it
// Then: Set keys are applied, missing keys keep defaults, invalid ones fall back
func TestLoadConfig_OverridesAndClamps(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "engine.yml")
	data := []byte(`
name: billing
workers: 6
idle_poll_ms: -5
high_per_normal: 0
shutdown_timeout_ms: 2500
log_level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Act
	cfg, err := LoadConfig(path)

	// Assert
	if err != nil {
		t.Fatalf("LoadConfig error = %v", err)
	}
	if cfg.Name != "billing" || cfg.Workers != 6 {
		t.Errorf("Name, Workers = %q, %d; want billing, 6", cfg.Name, cfg.Workers)
	}
	if cfg.IdlePollMS != 1 {
		t.Errorf("IdlePollMS = %d, want 1 (clamped)", cfg.IdlePollMS)
	}
	if cfg.HighPerNormal != DefaultHighPerNormal {
		t.Errorf("HighPerNormal = %d, want %d (clamped)", cfg.HighPerNormal, DefaultHighPerNormal)
	}
	if cfg.ShutdownTimeout() != 2500*time.Millisecond {
		t.Errorf("ShutdownTimeout() = %v, want 2.5s", cfg.ShutdownTimeout())
	}
	if cfg.MetricsNamespace != "taskengine" || cfg.MetricsAddr != ":2112" {
		t.Errorf("metrics defaults lost: %q %q", cfg.MetricsNamespace, cfg.MetricsAddr)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("LoadConfig error = %v, want fs.ErrNotExist", err)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":      "workers: [1, 2",
		"bad log level": "log_level: chatty",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			if err := ParseConfig([]byte(data), &cfg); err == nil {
				t.Errorf("ParseConfig(%q) error = nil, want error", data)
			}
		})
	}
}

func TestParseConfig_ZeroWorkersUsesCPUCount(t *testing.T) {
	cfg := DefaultEngineConfig()
	if err := ParseConfig([]byte("workers: 0\n"), &cfg); err != nil {
		t.Fatalf("ParseConfig error = %v", err)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("Workers = %d, want %d", cfg.Workers, runtime.NumCPU())
	}
}
