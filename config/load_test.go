package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const sampleConfig = `
env: dev
monitor:
  intervalMs: 250
  thresholds:
    latencyMs: 50
    memoryMB: 1024
    cpuPercent: 90
alerts:
  async: true
  queueSize: 16
log:
  level: debug
  outputs: [stdout]
  format: console
server:
  addr: ":9100"
  namespace: arb
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.Interval() != 250*time.Millisecond {
		t.Fatalf("interval = %s", cfg.Monitor.Interval())
	}
	th := cfg.Monitor.Thresholds
	if th.LatencyMs != 50 || th.MemoryMB != 1024 || th.CPUPercent != 90 {
		t.Fatalf("unexpected thresholds: %+v", th)
	}
	if !cfg.Alerts.Async || cfg.Alerts.QueueSize != 16 {
		t.Fatalf("unexpected alerts: %+v", cfg.Alerts)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Fatalf("unexpected log: %+v", cfg.Log)
	}
	// 未设置的字段保留默认值
	if cfg.Server.Subsystem != "monitor" || cfg.Log.MaxSize != 100 {
		t.Fatalf("defaults not kept: %+v %+v", cfg.Server, cfg.Log)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "env: prod\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.IntervalMs != 1000 {
		t.Fatalf("default interval = %d, want 1000", cfg.Monitor.IntervalMs)
	}
	if cfg.Monitor.Thresholds != (Thresholds{}) {
		t.Fatalf("thresholds should default to disabled: %+v", cfg.Monitor.Thresholds)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
	if _, err := Load(writeTempConfig(t, "env: [")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Load(writeTempConfig(t, "env: dev\nmonitor:\n  intervalMs: 0\n")); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	t.Setenv("PERF_MONITOR_INTERVAL_MS", "50")
	t.Setenv("PERF_LOG_LEVEL", "warn")
	t.Setenv("PERF_SERVER_ADDR", "127.0.0.1:0")

	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Monitor.IntervalMs != 50 || cfg.Log.Level != "warn" || cfg.Server.Addr != "127.0.0.1:0" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}

	t.Setenv("PERF_MONITOR_INTERVAL_MS", "fast")
	if _, err := LoadWithEnvOverrides(path); err == nil {
		t.Fatal("expected error for non-numeric interval")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"empty env", func(c *AppConfig) { c.Env = "" }},
		{"zero interval", func(c *AppConfig) { c.Monitor.IntervalMs = 0 }},
		{"async without queue", func(c *AppConfig) { c.Alerts.Async = true; c.Alerts.QueueSize = 0 }},
		{"no log level", func(c *AppConfig) { c.Log.Level = "" }},
		{"server without namespace", func(c *AppConfig) { c.Server.Addr = ":9100"; c.Server.Namespace = "" }},
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
