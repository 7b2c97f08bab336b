package perf

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Usage 一次资源采样结果
type Usage struct {
	MemoryMB   float64
	CPUPercent float64
}

// ResourceProvider 提供进程内存与CPU读数，允许失败
type ResourceProvider interface {
	Usage(ctx context.Context) (Usage, error)
}

// ResourceProviderFunc 函数适配器
type ResourceProviderFunc func(ctx context.Context) (Usage, error)

// Usage 实现 ResourceProvider
func (f ResourceProviderFunc) Usage(ctx context.Context) (Usage, error) {
	return f(ctx)
}

// SamplerState 采样器状态
type SamplerState int32

const (
	// StateIdle 尚未启动
	StateIdle SamplerState = iota
	// StateRunning 后台循环运行中
	StateRunning
	// StateStopped 已停止，可再次启动
	StateStopped
)

// String 返回状态名称
func (s SamplerState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Sampler 后台资源采样器：周期性读取资源、写入 Store、评估告警并输出状态行。
//
// 告警回调在采样 goroutine 上同步执行，慢回调会推迟下一次采样。
type Sampler struct {
	store     *Store
	evaluator *Evaluator
	provider  ResourceProvider
	interval  time.Duration
	logger    *zap.Logger

	mu     sync.Mutex // 串行化 Start/Stop
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}

	obsMu     sync.RWMutex
	observers []func(Snapshot)

	ticks atomic.Uint64
}

// NewSampler 创建采样器，interval 必须为正
func NewSampler(store *Store, evaluator *Evaluator, provider ResourceProvider, interval time.Duration, logger *zap.Logger) *Sampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if provider == nil {
		provider = ResourceProviderFunc(func(context.Context) (Usage, error) {
			return Usage{}, nil
		})
	}
	return &Sampler{
		store:     store,
		evaluator: evaluator,
		provider:  provider,
		interval:  interval,
		logger:    logger,
	}
}

// OnTick 注册每个采样周期结束时的观察者
func (s *Sampler) OnTick(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start 启动后台循环。已在运行时只记录警告并返回 false。
func (s *Sampler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateRunning {
		s.logger.Warn("performance sampler already running")
		return false
	}
	// 上一轮 Stop 可能仍在等待循环退出，保证任何时刻只有一个循环
	if s.done != nil {
		<-s.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state.Store(int32(StateRunning))
	go s.loop(ctx, s.done)

	s.logger.Info("performance sampler started", zap.Duration("interval", s.interval))
	return true
}

// Stop 发出取消信号并等待后台循环退出。未运行时为空操作；
// 并发调用的 Stop 都会等到循环退出后才返回。
// 停止延迟不超过一个采样间隔加上正在进行的资源查询耗时。
//
// 等待期间不持有锁，告警回调和观察者可以调用 State/Health。
// 但不能在回调中调用 Stop：它会等待自身所在的循环退出。
func (s *Sampler) Stop() {
	s.mu.Lock()
	done := s.done
	if s.State() != StateRunning {
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	s.cancel()
	s.state.Store(int32(StateStopped))
	s.mu.Unlock()

	<-done
	s.logger.Info("performance sampler stopped")
}

// State 当前状态，不加锁
func (s *Sampler) State() SamplerState {
	return SamplerState(s.state.Load())
}

// Ticks 已完成的采样周期数
func (s *Sampler) Ticks() uint64 {
	return s.ticks.Load()
}

// Interval 采样间隔
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

func (s *Sampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}
		s.tick(ctx)

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tick 执行一次采样周期
func (s *Sampler) tick(ctx context.Context) {
	usage, err := s.query(ctx)
	if err != nil {
		s.logger.Error("resource usage query failed", zap.Error(err))
		usage = Usage{}
	}
	s.store.SetGauge(MemoryMB, usage.MemoryMB)
	s.store.SetGauge(CPUPercent, usage.CPUPercent)

	snap := s.store.Snapshot()
	fired := s.evaluator.Evaluate(snap)

	s.logger.Info("perf_status",
		zap.String("status", snap.StatusLine()),
		zap.Uint64("messages", snap.MessagesProcessed),
		zap.Uint64("opportunities", snap.OpportunitiesDetected),
		zap.Uint64("trades", snap.TradesExecuted),
		zap.Float64("avg_latency_ms", snap.AverageLatencyMs),
		zap.Float64("max_latency_ms", snap.MaxLatencyMs),
		zap.Float64("memory_mb", snap.MemoryMB),
		zap.Float64("cpu_pct", snap.CPUPercent),
		zap.Int("alerts", fired),
	)

	s.notify(snap)
	s.ticks.Add(1)
}

func (s *Sampler) query(ctx context.Context) (u Usage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("resource provider panicked: %v", p)
		}
	}()
	return s.provider.Usage(ctx)
}

func (s *Sampler) notify(snap Snapshot) {
	s.obsMu.RLock()
	observers := s.observers
	s.obsMu.RUnlock()

	for _, fn := range observers {
		func() {
			defer func() {
				if p := recover(); p != nil {
					s.logger.Error("tick observer panicked", zap.Any("panic", p))
				}
			}()
			fn(snap)
		}()
	}
}
