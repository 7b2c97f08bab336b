package perf

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T, p ResourceProvider) *Monitor {
	t.Helper()
	m := New(nil, p)
	require.NoError(t, m.Initialize(2*time.Millisecond))
	t.Cleanup(m.Stop)
	return m
}

func TestMonitor_InitializeOnce(t *testing.T) {
	m := New(nil, nil)
	assert.Error(t, m.Initialize(0))
	assert.False(t, m.Initialized())

	require.NoError(t, m.Initialize(time.Second))
	assert.ErrorIs(t, m.Initialize(time.Second), ErrAlreadyInitialized)
	assert.True(t, m.Initialized())
}

func TestMonitor_UseBeforeInitializePanics(t *testing.T) {
	m := New(nil, nil)

	assert.PanicsWithValue(t, ErrNotInitialized, func() { m.Start() })
	assert.PanicsWithValue(t, ErrNotInitialized, func() { m.Snapshot() })
	assert.PanicsWithValue(t, ErrNotInitialized, func() { m.Reset() })
	assert.PanicsWithValue(t, ErrNotInitialized, func() { m.RecordLatency(1) })
	assert.PanicsWithValue(t, ErrNotInitialized, func() { m.IncrementCounter(TradesExecuted) })
	assert.PanicsWithValue(t, ErrNotInitialized, func() {
		m.SetThreshold(CPUAlert, 1, nil)
	})

	// Stop/Close 在未初始化时是安全的
	assert.NotPanics(t, func() { m.Stop() })
	assert.NoError(t, m.Close())
	assert.Equal(t, StateIdle, m.State())
}

func TestMonitor_BasicCounters(t *testing.T) {
	m := newTestMonitor(t, nil)

	snap := m.Snapshot()
	assert.Zero(t, snap.MessagesProcessed)
	assert.Zero(t, snap.OpportunitiesDetected)
	assert.Zero(t, snap.TradesExecuted)

	m.RecordMessageProcessed()
	m.RecordOpportunityDetected()
	m.RecordTradeExecuted()

	snap = m.Snapshot()
	assert.Equal(t, uint64(1), snap.MessagesProcessed)
	assert.Equal(t, uint64(1), snap.OpportunitiesDetected)
	assert.Equal(t, uint64(1), snap.TradesExecuted)
}

func TestMonitor_ThresholdChecks(t *testing.T) {
	m := newTestMonitor(t, nil)
	m.RecordLatency(5)
	m.RecordMemoryUsage(100)
	m.RecordCPUUsage(40)

	assert.True(t, m.WithinThreshold(LatencyAlert, 10))
	assert.False(t, m.WithinThreshold(LatencyAlert, 3))
	assert.True(t, m.WithinThreshold(MemoryAlert, 200))
	assert.False(t, m.WithinThreshold(MemoryAlert, 50))
	assert.True(t, m.WithinThreshold(CPUAlert, 40))
}

func TestMonitor_Reset(t *testing.T) {
	m := newTestMonitor(t, nil)
	m.RecordMessageProcessed()
	m.RecordOpportunityDetected()
	m.RecordLatency(15)

	snap := m.Snapshot()
	require.Positive(t, snap.MessagesProcessed)
	require.Positive(t, snap.AverageLatencyMs)

	m.Reset()

	snap = m.Snapshot()
	assert.Zero(t, snap.MessagesProcessed)
	assert.Zero(t, snap.OpportunitiesDetected)
	assert.Zero(t, snap.AverageLatencyMs)
	assert.Zero(t, snap.MaxLatencyMs)
}

func TestMonitor_Lifecycle(t *testing.T) {
	m := newTestMonitor(t, &fakeProvider{usage: Usage{MemoryMB: 64, CPUPercent: 5}})
	assert.Equal(t, StateIdle, m.State())
	assert.Error(t, m.Health())

	m.Start()
	m.Start()
	assert.Equal(t, StateRunning, m.State())
	assert.NoError(t, m.Health())

	require.Eventually(t, func() bool {
		return m.Snapshot().MemoryMB == 64
	}, 2*time.Second, 2*time.Millisecond)

	m.Stop()
	assert.Equal(t, StateStopped, m.State())
	m.Stop()
	assert.Equal(t, StateStopped, m.State())
}

func TestMonitor_AlertsFireFromSampler(t *testing.T) {
	m := newTestMonitor(t, &fakeProvider{usage: Usage{CPUPercent: 95}})
	rec := &alertRecorder{}
	m.SetThreshold(CPUAlert, 90, rec.fn)
	m.SetThreshold(LatencyAlert, 10, rec.fn)
	m.RecordLatency(10) // 等于阈值，不触发

	m.Start()
	require.Eventually(t, func() bool { return rec.count() >= 2 }, 2*time.Second, 2*time.Millisecond)
	m.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, a := range rec.alerts {
		assert.Equal(t, CPUAlert, a.kind)
	}
}

func TestMonitor_ProducersWhileRunning(t *testing.T) {
	const workers, perWorker = 8, 1000
	m := newTestMonitor(t, &fakeProvider{})
	m.Start()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.RecordMessageProcessed()
				m.RecordLatency(float64(j % 10))
				if j%100 == 0 {
					_ = m.Snapshot()
				}
			}
		}()
	}
	wg.Wait()
	m.Stop()

	snap := m.Snapshot()
	assert.Equal(t, uint64(workers*perWorker), snap.MessagesProcessed)
	assert.Equal(t, uint64(workers*perWorker), snap.LatencyCount)
	assert.Equal(t, 9.0, snap.MaxLatencyMs)
	assert.InDelta(t, 4.5, snap.AverageLatencyMs, 1e-9)
}

func TestMonitor_StopWhileCallbackQueriesHealth(t *testing.T) {
	m := newTestMonitor(t, &fakeProvider{usage: Usage{CPUPercent: 95}})

	entered := make(chan struct{})
	var once sync.Once
	healthErr := make(chan error, 1)
	m.SetThreshold(CPUAlert, 90, func(AlertKind, string) error {
		once.Do(func() {
			close(entered)
			time.Sleep(20 * time.Millisecond)
			healthErr <- m.Health()
		})
		return nil
	})

	m.Start()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("alert callback never ran")
	}

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a callback was querying Health")
	}
	assert.Equal(t, StateStopped, m.State())
	// 回调运行期间 Stop 已经发出，回调看到的状态是 STOPPED 或 RUNNING 都可以，关键是不阻塞
	select {
	case <-healthErr:
	default:
		t.Fatal("callback did not finish before Stop returned")
	}
}

func TestMonitor_ConcurrentStopWaitsForLoop(t *testing.T) {
	release := make(chan struct{})
	inTick := make(chan struct{}, 1)
	m := newTestMonitor(t, ResourceProviderFunc(func(context.Context) (Usage, error) {
		select {
		case inTick <- struct{}{}:
		default:
		}
		<-release
		return Usage{}, nil
	}))
	var ticks atomic.Int64
	m.OnTick(func(Snapshot) { ticks.Add(1) })

	m.Start()
	<-inTick

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Stop()
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	// 两个 Stop 返回时循环都已退出，不会再有新的周期
	n := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, ticks.Load())
	assert.Equal(t, StateStopped, m.State())

	// 停止后可以再次启动
	m.Start()
	assert.Equal(t, StateRunning, m.State())
}
