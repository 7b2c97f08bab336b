package alert

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"perf-monitor-go/infrastructure/logger"
	"perf-monitor-go/internal/perf"
)

func TestNewManager(t *testing.T) {
	ch := NewMockChannel("test")
	mgr := NewManager(ch)

	channels := mgr.GetChannels()
	if len(channels) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(channels))
	}
	if channels[0] != "test" {
		t.Errorf("channel name = %s, want test", channels[0])
	}
}

func TestSendAlert(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager(mock)

	err := mgr.SendAlert(Alert{
		Level:   LevelWarning,
		Kind:    "CPU_ALERT",
		Message: "test message",
		Fields:  map[string]interface{}{"key": "value"},
	})
	if err != nil {
		t.Fatalf("SendAlert failed: %v", err)
	}

	if mock.Count() != 1 {
		t.Fatalf("expected 1 alert, got %d", mock.Count())
	}
	alert := mock.GetAlerts()[0]
	if alert.Kind != "CPU_ALERT" {
		t.Errorf("kind = %s, want CPU_ALERT", alert.Kind)
	}
	if alert.Fields["key"] != "value" {
		t.Errorf("field key = %v, want value", alert.Fields["key"])
	}
	if alert.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestRepeatedAlertsNotThrottled(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager(mock)

	for i := 0; i < 5; i++ {
		if err := mgr.SendAlert(Alert{Level: LevelWarning, Message: "same"}); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}
	if mock.Count() != 5 {
		t.Errorf("expected every alert delivered, got %d", mock.Count())
	}
}

func TestCallbackAdaptsPerfAlert(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager(mock)

	var observed []string
	mgr.SetObserver(func(a Alert) { observed = append(observed, a.Kind) })

	fn := mgr.Callback()
	if err := fn(perf.MemoryAlert, "Memory usage 2048.00MB exceeds threshold 1024.00MB"); err != nil {
		t.Fatalf("callback failed: %v", err)
	}

	alerts := mock.GetAlerts()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Level != LevelWarning || alerts[0].Kind != "MEMORY_ALERT" {
		t.Errorf("unexpected alert %+v", alerts[0])
	}
	if len(observed) != 1 || observed[0] != "MEMORY_ALERT" {
		t.Errorf("observer not called: %v", observed)
	}
}

func TestMultipleChannels(t *testing.T) {
	mock1 := NewMockChannel("mock1")
	mock2 := NewMockChannel("mock2")
	mgr := NewManager(mock1, mock2)

	if err := mgr.SendAlert(Alert{Level: LevelInfo, Message: "test"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if mock1.Count() != 1 || mock2.Count() != 1 {
		t.Errorf("both channels should receive alert: %d %d", mock1.Count(), mock2.Count())
	}
}

func TestChannelError(t *testing.T) {
	mock := NewMockChannel("mock")
	mock.SetShouldError(true)
	mgr := NewManager(mock)

	if err := mgr.SendAlert(Alert{Message: "test"}); err == nil {
		t.Error("expected error when all channels fail")
	}
}

func TestPartialChannelFailure(t *testing.T) {
	mock1 := NewMockChannel("mock1")
	mock1.SetShouldError(true)
	mock2 := NewMockChannel("mock2")
	mgr := NewManager(mock1, mock2)

	if err := mgr.SendAlert(Alert{Message: "test"}); err != nil {
		t.Errorf("should not return error when some channels succeed: %v", err)
	}
	if mock2.Count() != 1 {
		t.Errorf("successful channel should receive alert")
	}
}

func TestAddRemoveChannel(t *testing.T) {
	mock1 := NewMockChannel("mock1")
	mgr := NewManager(mock1)

	// 添加通道
	mock2 := NewMockChannel("mock2")
	mgr.AddChannel(mock2)
	if n := len(mgr.GetChannels()); n != 2 {
		t.Errorf("expected 2 channels, got %d", n)
	}

	// 移除通道
	mgr.RemoveChannel("mock1")
	channels := mgr.GetChannels()
	if len(channels) != 1 || channels[0] != "mock2" {
		t.Errorf("remaining channels = %v, want [mock2]", channels)
	}
}

func TestLogChannel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ch := NewLogChannel("log", logger.FromZap(zap.New(core)))

	if ch.Name() != "log" {
		t.Errorf("name = %s, want log", ch.Name())
	}
	err := ch.Send(Alert{Level: LevelWarning, Kind: "LATENCY_ALERT", Message: "slow", Fields: map[string]interface{}{"x": 1}})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	entries := logs.FilterMessage("perf_alert").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["kind"] != "LATENCY_ALERT" || ctx["alert_level"] != LevelWarning {
		t.Errorf("unexpected fields %v", ctx)
	}
}

func TestConsoleChannel(t *testing.T) {
	var buf bytes.Buffer
	ch := NewConsoleChannel("console", &buf)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := ch.Send(Alert{
		Level:     LevelCritical,
		Kind:      "CPU_ALERT",
		Message:   "hot",
		Timestamp: ts,
		Fields:    map[string]interface{}{"b": 2, "a": 1},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[CRITICAL]") || !strings.Contains(out, "2026-01-02 03:04:05 CPU_ALERT - hot") {
		t.Errorf("unexpected console output %q", out)
	}
	if !strings.HasSuffix(out, "| a=1 b=2\n") {
		t.Errorf("fields should be sorted: %q", out)
	}
}

func TestMockChannel(t *testing.T) {
	mock := NewMockChannel("mock")
	_ = mock.Send(Alert{Message: "one"})
	_ = mock.Send(Alert{Message: "two"})
	if mock.Count() != 2 {
		t.Errorf("count = %d, want 2", mock.Count())
	}

	mock.SetShouldError(true)
	if err := mock.Send(Alert{Message: "three"}); err == nil {
		t.Error("expected error")
	}

	mock.Clear()
	if mock.Count() != 0 {
		t.Errorf("count after clear = %d, want 0", mock.Count())
	}
}

func TestConcurrentAlerts(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager(mock)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_ = mgr.SendAlert(Alert{Level: LevelInfo, Message: "test", Fields: map[string]interface{}{"id": id}})
		}(i)
	}
	wg.Wait()

	if mock.Count() != 10 {
		t.Errorf("expected 10 alerts, got %d", mock.Count())
	}
}

// 基准测试
func BenchmarkSendAlert(b *testing.B) {
	mock := NewMockChannel("mock")
	mgr := NewManager(mock)

	alert := Alert{
		Level:   LevelInfo,
		Message: "benchmark",
		Fields:  map[string]interface{}{"key": "value"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mgr.SendAlert(alert)
	}
}
