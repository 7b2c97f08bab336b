package resource

import "sync"

// CPUTracker 根据两次累计 CPU 时间采样计算使用率。
//
//	pct = 100 × (1 − (idle₂ − idle₁) / (total₂ − total₁))
//
// 只有 total₂ > total₁ 时才有定义；否则返回0并保留旧基线，直到出现有效增量。
type CPUTracker struct {
	mu        sync.Mutex
	lastIdle  float64
	lastTotal float64
	seeded    bool
}

// Observe 输入一次累计采样（idle 与 total 同单位），返回相对上一次有效基线的使用率
func (c *CPUTracker) Observe(idle, total float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seeded {
		c.lastIdle, c.lastTotal = idle, total
		c.seeded = true
		return 0
	}

	totalDelta := total - c.lastTotal
	if totalDelta <= 0 {
		return 0
	}
	idleDelta := idle - c.lastIdle
	c.lastIdle, c.lastTotal = idle, total

	return clampPercent(100 * (1 - idleDelta/totalDelta))
}

// Reset 清除基线
func (c *CPUTracker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastIdle, c.lastTotal, c.seeded = 0, 0, false
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
