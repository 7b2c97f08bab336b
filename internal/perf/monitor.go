// Package perf 进程内性能指标与阈值告警子系统。
//
// 生产者（行情处理、交易执行）通过 Monitor 的非阻塞接口累加计数器、写入瞬时值、
// 记录延迟；后台采样器按固定间隔读取内存/CPU，评估告警并输出状态行。
// Monitor 没有全局实例，由持有者显式创建并负责在所有退出路径上调用 Close。
package perf

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotInitialized 在 Initialize 之前调用其他操作
	ErrNotInitialized = errors.New("perf monitor not initialized")
	// ErrAlreadyInitialized 重复调用 Initialize
	ErrAlreadyInitialized = errors.New("perf monitor already initialized")
)

// Monitor 组合 Store、Sampler 与 Evaluator 的生命周期控制器
type Monitor struct {
	logger    *zap.Logger
	provider  ResourceProvider
	store     *Store
	evaluator *Evaluator

	initMu  sync.Mutex
	sampler atomic.Pointer[Sampler]
}

// New 创建未初始化的 Monitor
func New(logger *zap.Logger, provider ResourceProvider) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("perf")
	return &Monitor{
		logger:    logger,
		provider:  provider,
		store:     NewStore(),
		evaluator: NewEvaluator(logger),
	}
}

// Initialize 设置采样间隔，只能调用一次
func (m *Monitor) Initialize(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid sampling interval %s", interval)
	}
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.sampler.Load() != nil {
		return ErrAlreadyInitialized
	}
	m.sampler.Store(NewSampler(m.store, m.evaluator, m.provider, interval, m.logger))
	m.logger.Info("performance monitor initialized", zap.Duration("interval", interval))
	return nil
}

// Initialized 是否已初始化
func (m *Monitor) Initialized() bool {
	return m.sampler.Load() != nil
}

// mustSampler 未初始化时直接 panic，属于调用方编程错误
func (m *Monitor) mustSampler() *Sampler {
	s := m.sampler.Load()
	if s == nil {
		panic(ErrNotInitialized)
	}
	return s
}

// Start 启动后台采样；重复启动只记录警告
func (m *Monitor) Start() {
	m.mustSampler().Start()
}

// Stop 停止后台采样，可重复调用
func (m *Monitor) Stop() {
	s := m.sampler.Load()
	if s == nil {
		return
	}
	s.Stop()
}

// Close 等同 Stop，便于 defer
func (m *Monitor) Close() error {
	m.Stop()
	return nil
}

// Reset 清零全部指标
func (m *Monitor) Reset() {
	m.mustSampler()
	m.store.Reset()
	m.logger.Info("performance metrics reset")
}

// Snapshot 返回当前指标快照
func (m *Monitor) Snapshot() Snapshot {
	m.mustSampler()
	return m.store.Snapshot()
}

// State 采样器状态，未初始化时为 Idle
func (m *Monitor) State() SamplerState {
	s := m.sampler.Load()
	if s == nil {
		return StateIdle
	}
	return s.State()
}

// Health 未运行时返回错误
func (m *Monitor) Health() error {
	if st := m.State(); st != StateRunning {
		return fmt.Errorf("perf monitor %s", st)
	}
	return nil
}

// SetThreshold 设置告警规则，threshold<=0 关闭该类型告警
func (m *Monitor) SetThreshold(kind AlertKind, threshold float64, fn AlertFunc) {
	m.mustSampler()
	m.evaluator.SetThreshold(kind, threshold, fn)
	m.logger.Info("alert threshold set",
		zap.String("kind", kind.String()),
		zap.Float64("threshold", threshold),
		zap.Bool("enabled", threshold > 0 && fn != nil))
}

// OnTick 注册采样周期观察者
func (m *Monitor) OnTick(fn func(Snapshot)) {
	m.mustSampler().OnTick(fn)
}

// IncrementCounter 计数器加一
func (m *Monitor) IncrementCounter(kind CounterKind) {
	m.mustSampler()
	m.store.IncrementCounter(kind)
}

// SetGauge 写入瞬时值
func (m *Monitor) SetGauge(kind GaugeKind, value float64) {
	m.mustSampler()
	m.store.SetGauge(kind, value)
}

// RecordLatency 记录延迟（毫秒）
func (m *Monitor) RecordLatency(ms float64) {
	m.mustSampler()
	m.store.RecordLatency(ms)
}

// RecordMessageProcessed 已处理消息数加一
func (m *Monitor) RecordMessageProcessed() { m.IncrementCounter(MessagesProcessed) }

// RecordOpportunityDetected 发现机会数加一
func (m *Monitor) RecordOpportunityDetected() { m.IncrementCounter(OpportunitiesDetected) }

// RecordTradeExecuted 执行交易数加一
func (m *Monitor) RecordTradeExecuted() { m.IncrementCounter(TradesExecuted) }

// RecordMemoryUsage 写入内存占用（MB）
func (m *Monitor) RecordMemoryUsage(mb float64) {
	m.SetGauge(MemoryMB, mb)
}

// RecordCPUUsage 写入CPU使用率（%）
func (m *Monitor) RecordCPUUsage(pct float64) {
	m.SetGauge(CPUPercent, pct)
}

// WithinThreshold 当前值不超过 limit 时返回 true
func (m *Monitor) WithinThreshold(kind AlertKind, limit float64) bool {
	return alertValue(kind, m.Snapshot()) <= limit
}
