package alert

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"perf-monitor-go/internal/perf"
)

// ErrQueueFull 异步队列已满，告警被丢弃
var ErrQueueFull = errors.New("alert queue full")

// Dispatcher 有界异步告警队列：采样 goroutine 只负责入队，
// 由单独的 goroutine 调用 Manager 发送，慢通道不会拖慢采样。
type Dispatcher struct {
	manager  *Manager
	capacity int
	logger   *zap.Logger
	onDrop   func()

	mu     sync.Mutex
	q      *queue.Queue
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher 创建异步分发器，capacity<=0 时取64
func NewDispatcher(manager *Manager, capacity int, logger *zap.Logger) *Dispatcher {
	if capacity <= 0 {
		capacity = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		manager:  manager,
		capacity: capacity,
		logger:   logger,
		q:        queue.New(),
		wake:     make(chan struct{}, 1),
	}
}

// SetDropHook 设置丢弃时的回调（例如指标计数）
func (d *Dispatcher) SetDropHook(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDrop = fn
}

// Enqueue 入队，队列已满时丢弃并返回 false
func (d *Dispatcher) Enqueue(a Alert) bool {
	d.mu.Lock()
	if d.q.Length() >= d.capacity {
		onDrop := d.onDrop
		d.mu.Unlock()
		d.dropped.Add(1)
		if onDrop != nil {
			onDrop()
		}
		return false
	}
	d.q.Add(a)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Callback 适配为 perf.AlertFunc；队列满时返回 ErrQueueFull
func (d *Dispatcher) Callback() perf.AlertFunc {
	return func(kind perf.AlertKind, message string) error {
		if !d.Enqueue(fromPerf(kind, message)) {
			return ErrQueueFull
		}
		return nil
	}
}

// Start 启动消费 goroutine
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(ctx, d.done)
	return nil
}

// Stop 停止消费并把剩余告警同步发完
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Health 未启动时返回错误
func (d *Dispatcher) Health() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done == nil {
		return errors.New("alert dispatcher not started")
	}
	return nil
}

// Pending 队列中待发送数量
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.Length()
}

// Dropped 已丢弃数量
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Delivered 已送出数量
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

func (d *Dispatcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		d.drain()
		select {
		case <-ctx.Done():
			d.drain()
			return
		case <-d.wake:
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if d.q.Length() == 0 {
			d.mu.Unlock()
			return
		}
		a := d.q.Remove().(Alert)
		d.mu.Unlock()

		if err := d.manager.SendAlert(a); err != nil {
			d.logger.Error("alert delivery failed", zap.String("kind", a.Kind), zap.Error(err))
			continue
		}
		d.delivered.Add(1)
	}
}
