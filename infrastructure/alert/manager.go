package alert

import (
	"fmt"
	"sync"
	"time"

	"perf-monitor-go/internal/perf"
)

// 告警级别
const (
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelError    = "ERROR"
	LevelCritical = "CRITICAL"
)

// Alert 告警信息
type Alert struct {
	Level     string                 // "INFO", "WARNING", "ERROR", "CRITICAL"
	Kind      string                 // LATENCY_ALERT / MEMORY_ALERT / CPU_ALERT
	Message   string                 // 告警消息
	Timestamp time.Time              // 告警时间
	Fields    map[string]interface{} // 附加字段
}

// Channel 告警通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Manager 告警管理器，把告警分发到所有通道。
// 不做限流：持续越界时每个采样周期都会送达。
type Manager struct {
	channels []Channel
	observer func(Alert)
	mu       sync.RWMutex
}

// NewManager 创建告警管理器
func NewManager(channels ...Channel) *Manager {
	return &Manager{channels: channels}
}

// SetObserver 设置每次分发前的观察者（例如告警计数指标）
func (m *Manager) SetObserver(fn func(Alert)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// SendAlert 发送告警
func (m *Manager) SendAlert(alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.observer != nil {
		m.observer(alert)
	}

	// 发送到所有通道
	var lastErr error
	successCount := 0

	for _, ch := range m.channels {
		if err := ch.Send(alert); err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
		} else {
			successCount++
		}
	}

	// 如果所有通道都失败，返回最后一个错误
	if successCount == 0 && lastErr != nil {
		return lastErr
	}

	return nil
}

// Callback 适配为 perf.AlertFunc，同步发送 WARNING 级别告警
func (m *Manager) Callback() perf.AlertFunc {
	return func(kind perf.AlertKind, message string) error {
		return m.SendAlert(fromPerf(kind, message))
	}
}

func fromPerf(kind perf.AlertKind, message string) Alert {
	return Alert{
		Level:     LevelWarning,
		Kind:      kind.String(),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// AddChannel 添加告警通道
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// RemoveChannel 移除告警通道
func (m *Manager) RemoveChannel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		if ch.Name() != name {
			filtered = append(filtered, ch)
		}
	}
	m.channels = filtered
}

// GetChannels 获取所有通道
func (m *Manager) GetChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}
