package perf

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// AlertFunc 告警回调，在采样 goroutine 上同步执行。
// 返回的错误只会被记录，不会中断采样循环。
type AlertFunc func(kind AlertKind, message string) error

// ThresholdRule 单个告警规则
type ThresholdRule struct {
	Kind      AlertKind
	Threshold float64
	Callback  AlertFunc
}

func (r ThresholdRule) enabled() bool {
	return r.Callback != nil && r.Threshold > 0
}

// Evaluator 按类型保存告警规则，每个采样周期评估一次
type Evaluator struct {
	mu     sync.RWMutex
	rules  [numAlertKinds]ThresholdRule
	logger *zap.Logger
}

// NewEvaluator 创建告警评估器
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger}
}

// SetThreshold 设置（替换）某类型的规则；threshold<=0 或 fn 为 nil 即关闭该类型告警
func (e *Evaluator) SetThreshold(kind AlertKind, threshold float64, fn AlertFunc) {
	if kind < 0 || kind >= numAlertKinds {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[kind] = ThresholdRule{Kind: kind, Threshold: threshold, Callback: fn}
}

// Rule 返回某类型当前规则
func (e *Evaluator) Rule(kind AlertKind) (ThresholdRule, bool) {
	if kind < 0 || kind >= numAlertKinds {
		return ThresholdRule{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	r := e.rules[kind]
	return r, r.enabled()
}

// Evaluate 对快照逐条检查规则，值严格大于阈值时触发回调。
// 不做抑制：持续越界时每个周期都会触发。返回触发次数。
func (e *Evaluator) Evaluate(s Snapshot) int {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	fired := 0
	for _, r := range rules {
		if !r.enabled() {
			continue
		}
		value := alertValue(r.Kind, s)
		if value <= r.Threshold {
			continue
		}
		fired++
		e.dispatch(r, alertMessage(r.Kind, value, r.Threshold))
	}
	return fired
}

func (e *Evaluator) dispatch(r ThresholdRule, msg string) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("alert callback panicked",
				zap.String("kind", r.Kind.String()),
				zap.Any("panic", p))
		}
	}()
	if err := r.Callback(r.Kind, msg); err != nil {
		e.logger.Error("alert callback failed",
			zap.String("kind", r.Kind.String()),
			zap.Error(err))
	}
}

func alertValue(kind AlertKind, s Snapshot) float64 {
	switch kind {
	case LatencyAlert:
		return s.AverageLatencyMs
	case MemoryAlert:
		return s.MemoryMB
	case CPUAlert:
		return s.CPUPercent
	default:
		return 0
	}
}

func alertMessage(kind AlertKind, value, threshold float64) string {
	switch kind {
	case LatencyAlert:
		return fmt.Sprintf("Average latency %.2fms exceeds threshold %.2fms", value, threshold)
	case MemoryAlert:
		return fmt.Sprintf("Memory usage %.2fMB exceeds threshold %.2fMB", value, threshold)
	case CPUAlert:
		return fmt.Sprintf("CPU usage %.2f%% exceeds threshold %.2f%%", value, threshold)
	default:
		return fmt.Sprintf("value %.2f exceeds threshold %.2f", value, threshold)
	}
}
