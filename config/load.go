package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"perf-monitor-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string        `yaml:"env"`
	Monitor MonitorConfig `yaml:"monitor"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Log     logger.Config `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// MonitorConfig 采样周期与初始告警阈值
type MonitorConfig struct {
	IntervalMs int        `yaml:"intervalMs"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// Thresholds 告警阈值，<=0 表示不告警
type Thresholds struct {
	LatencyMs  float64 `yaml:"latencyMs"`
	MemoryMB   float64 `yaml:"memoryMB"`
	CPUPercent float64 `yaml:"cpuPercent"`
}

// AlertsConfig 告警分发方式
type AlertsConfig struct {
	Async     bool `yaml:"async"`     // 通过有界队列异步分发
	QueueSize int  `yaml:"queueSize"` // 异步队列容量
	Console   bool `yaml:"console"`   // 同时输出到控制台
}

// ServerConfig 状态服务（/metrics, /snapshot, /ws/snapshot）
type ServerConfig struct {
	Addr      string `yaml:"addr"` // 留空则不启动
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// Interval returns the sampling interval as a duration.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalMs) * time.Millisecond
}

// Default returns the configuration used when fields are omitted.
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Monitor: MonitorConfig{
			IntervalMs: 1000,
		},
		Alerts: AlertsConfig{QueueSize: 64},
		Log:    logger.DefaultConfig(),
		Server: ServerConfig{Namespace: "perf", Subsystem: "monitor"},
	}
}

// Load reads YAML config from path on top of Default and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides selected fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("PERF_MONITOR_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("PERF_MONITOR_INTERVAL_MS: %w", err)
		}
		cfg.Monitor.IntervalMs = ms
	}
	if v := os.Getenv("PERF_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PERF_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	return cfg, Validate(cfg)
}
