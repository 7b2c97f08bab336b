package perf

import (
	"fmt"
	"time"
)

// Snapshot 某一时刻全部指标的只读拷贝。
//
// 每个字段各自原子读取，字段之间不保证一致：并发写入时，快照可能看到
// 已更新的计数器而尚未看到同时更新的瞬时值，任意两个字段最多相差一次并发修改。
type Snapshot struct {
	MessagesProcessed     uint64    `json:"messages_processed"`
	OpportunitiesDetected uint64    `json:"opportunities_detected"`
	TradesExecuted        uint64    `json:"trades_executed"`
	AverageLatencyMs      float64   `json:"average_latency_ms"`
	MaxLatencyMs          float64   `json:"max_latency_ms"`
	LatencyCount          uint64    `json:"latency_count"`
	MemoryMB              float64   `json:"memory_usage_mb"`
	CPUPercent            float64   `json:"cpu_usage_percent"`
	CapturedAt            time.Time `json:"captured_at"`
}

// Counter 按类型读取计数器
func (s Snapshot) Counter(kind CounterKind) uint64 {
	switch kind {
	case MessagesProcessed:
		return s.MessagesProcessed
	case OpportunitiesDetected:
		return s.OpportunitiesDetected
	case TradesExecuted:
		return s.TradesExecuted
	default:
		return 0
	}
}

// Gauge 按类型读取瞬时值
func (s Snapshot) Gauge(kind GaugeKind) float64 {
	switch kind {
	case MemoryMB:
		return s.MemoryMB
	case CPUPercent:
		return s.CPUPercent
	default:
		return 0
	}
}

// StatusLine 采样周期输出的状态行
func (s Snapshot) StatusLine() string {
	return fmt.Sprintf("Messages: %d, Opportunities: %d, Trades: %d, "+
		"Avg Latency: %.2fms, Max Latency: %.2fms, Memory: %.2fMB, CPU: %.2f%%",
		s.MessagesProcessed, s.OpportunitiesDetected, s.TradesExecuted,
		s.AverageLatencyMs, s.MaxLatencyMs, s.MemoryMB, s.CPUPercent)
}
