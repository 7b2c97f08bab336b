package perf

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Store 维护计数器、瞬时值与延迟统计。
//
// 计数器和瞬时值只用原子操作；最大延迟通过 CAS 重试更新；
// sum/count 必须成对读写，所以放在一个很短的互斥区内。
// 生产者之间除这一互斥区外没有其他锁。
type Store struct {
	counters [numCounters]atomic.Uint64
	gauges   [numGauges]atomic.Uint64 // float64 bits

	maxLatency atomic.Uint64 // float64 bits, -Inf 表示尚无样本
	avgLatency atomic.Uint64 // float64 bits

	mu           sync.Mutex
	latencySum   float64
	latencyCount uint64
	countView    atomic.Uint64

	now func() time.Time
}

var negInfBits = math.Float64bits(math.Inf(-1))

// NewStore 创建空的指标存储
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.maxLatency.Store(negInfBits)
	return s
}

// IncrementCounter 计数器加一，可被任意数量的 goroutine 并发调用
func (s *Store) IncrementCounter(kind CounterKind) {
	if kind < 0 || kind >= numCounters {
		return
	}
	s.counters[kind].Add(1)
}

// SetGauge 覆盖瞬时值，并发写入时后写者生效
func (s *Store) SetGauge(kind GaugeKind, value float64) {
	if kind < 0 || kind >= numGauges {
		return
	}
	s.gauges[kind].Store(math.Float64bits(value))
}

// RecordLatency 记录一次延迟观测（毫秒）。负值不做校验，按原值计入。
//
// 最大值在发布平均值之前和之后各抬升一次：读者先看到最大值再看到平均值；
// 若中间插入了 Reset，第二次抬升保证最大值不低于本次样本，max >= avg 始终成立。
func (s *Store) RecordLatency(ms float64) {
	s.raiseMax(ms)

	s.mu.Lock()
	s.latencySum += ms
	s.latencyCount++
	s.avgLatency.Store(math.Float64bits(s.latencySum / float64(s.latencyCount)))
	s.countView.Store(s.latencyCount)
	s.mu.Unlock()

	s.raiseMax(ms)
}

func (s *Store) raiseMax(ms float64) {
	for {
		cur := s.maxLatency.Load()
		if ms <= math.Float64frombits(cur) {
			return
		}
		if s.maxLatency.CompareAndSwap(cur, math.Float64bits(ms)) {
			return
		}
	}
}

// Counter 读取单个计数器
func (s *Store) Counter(kind CounterKind) uint64 {
	if kind < 0 || kind >= numCounters {
		return 0
	}
	return s.counters[kind].Load()
}

// Gauge 读取单个瞬时值
func (s *Store) Gauge(kind GaugeKind) float64 {
	if kind < 0 || kind >= numGauges {
		return 0
	}
	return math.Float64frombits(s.gauges[kind].Load())
}

// AverageLatency 当前平均延迟，无样本时为0
func (s *Store) AverageLatency() float64 {
	return math.Float64frombits(s.avgLatency.Load())
}

// MaxLatency 当前最大延迟，无样本时为0
func (s *Store) MaxLatency() float64 {
	bits := s.maxLatency.Load()
	if bits == negInfBits {
		return 0
	}
	return math.Float64frombits(bits)
}

// LatencyCount 已记录的延迟样本数
func (s *Store) LatencyCount() uint64 {
	return s.countView.Load()
}

// Snapshot 返回当前指标拷贝，字段之间的一致性见 Snapshot 类型说明
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		MessagesProcessed:     s.Counter(MessagesProcessed),
		OpportunitiesDetected: s.Counter(OpportunitiesDetected),
		TradesExecuted:        s.Counter(TradesExecuted),
		AverageLatencyMs:      s.AverageLatency(),
		MaxLatencyMs:          s.MaxLatency(),
		LatencyCount:          s.LatencyCount(),
		MemoryMB:              s.Gauge(MemoryMB),
		CPUPercent:            s.Gauge(CPUPercent),
		CapturedAt:            s.now(),
	}
}

// Reset 清零全部指标。
//
// Reset 是运维操作：与之并发的 Increment/Set/Record 可能在清零前或清零后生效，
// 也可能被清零覆盖，此时以后写者为准。
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.counters {
		s.counters[i].Store(0)
	}
	for i := range s.gauges {
		s.gauges[i].Store(0)
	}
	s.latencySum = 0
	s.latencyCount = 0
	s.countView.Store(0)
	s.avgLatency.Store(0)
	s.maxLatency.Store(negInfBits)
}
