package config

import "math"

// ValidateThresholds 阈值<=0 表示关闭；NaN 与超过100的CPU阈值视为配置错误。
func ValidateThresholds(th Thresholds) error {
	if math.IsNaN(th.LatencyMs) || math.IsNaN(th.MemoryMB) || math.IsNaN(th.CPUPercent) {
		return ErrInvalid("monitor.thresholds must be numbers")
	}
	if th.CPUPercent > 100 {
		return ErrInvalid("monitor.thresholds.cpuPercent must be <= 100")
	}
	return nil
}

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }
