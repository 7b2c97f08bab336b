package config

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if cfg.Monitor.IntervalMs <= 0 {
		return ErrInvalid("monitor.intervalMs must be > 0")
	}
	if err := ValidateThresholds(cfg.Monitor.Thresholds); err != nil {
		return err
	}
	if cfg.Alerts.Async && cfg.Alerts.QueueSize <= 0 {
		return ErrInvalid("alerts.queueSize must be > 0 when alerts.async is set")
	}
	if cfg.Log.Level == "" {
		return ErrInvalid("log.level is required")
	}
	if cfg.Server.Addr != "" && cfg.Server.Namespace == "" {
		return ErrInvalid("server.namespace is required when server.addr is set")
	}
	return nil
}
