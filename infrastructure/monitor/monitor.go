package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perf-monitor-go/internal/perf"
)

// SnapshotSource 指标快照来源（perf.Monitor）
type SnapshotSource interface {
	Snapshot() perf.Snapshot
}

// Monitor Prometheus导出器：抓取时读取 perf 快照，另外统计告警与采样次数
type Monitor struct {
	registry *prometheus.Registry
	source   SnapshotSource

	// 快照指标（抓取时生成）
	messagesDesc      *prometheus.Desc
	opportunitiesDesc *prometheus.Desc
	tradesDesc        *prometheus.Desc
	avgLatencyDesc    *prometheus.Desc
	maxLatencyDesc    *prometheus.Desc
	latencyCountDesc  *prometheus.Desc
	memoryDesc        *prometheus.Desc
	cpuDesc           *prometheus.Desc

	// 告警指标
	alertsFired   *prometheus.CounterVec
	alertsDropped prometheus.Counter

	// 采样指标
	sampleTicks prometheus.Counter
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "perf",
		Subsystem: "monitor",
	}
}

// New 创建新的Monitor实例并注册到独立的registry
func New(cfg Config, source SnapshotSource) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(cfg.Namespace, cfg.Subsystem, name), help, nil, nil)
	}

	m := &Monitor{
		registry: reg,
		source:   source,

		messagesDesc:      desc("messages_processed_total", "已处理消息总数"),
		opportunitiesDesc: desc("opportunities_detected_total", "发现机会总数"),
		tradesDesc:        desc("trades_executed_total", "执行交易总数"),
		avgLatencyDesc:    desc("latency_average_ms", "平均延迟（毫秒）"),
		maxLatencyDesc:    desc("latency_max_ms", "最大延迟（毫秒）"),
		latencyCountDesc:  desc("latency_observations_total", "延迟样本数"),
		memoryDesc:        desc("memory_usage_mb", "进程内存占用（MB）"),
		cpuDesc:           desc("cpu_usage_percent", "CPU使用率（%）"),

		alertsFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "alerts_fired_total",
				Help:      "触发的阈值告警总数",
			},
			[]string{"kind"},
		),
		alertsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "alerts_dropped_total",
			Help:      "异步队列已满被丢弃的告警数",
		}),
		sampleTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "sample_ticks_total",
			Help:      "资源采样周期数",
		}),
	}

	if source != nil {
		reg.MustRegister(m)
	}
	return m
}

// Describe 实现 prometheus.Collector
func (m *Monitor) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.messagesDesc
	ch <- m.opportunitiesDesc
	ch <- m.tradesDesc
	ch <- m.avgLatencyDesc
	ch <- m.maxLatencyDesc
	ch <- m.latencyCountDesc
	ch <- m.memoryDesc
	ch <- m.cpuDesc
}

// Collect 实现 prometheus.Collector，每次抓取读取一次快照
func (m *Monitor) Collect(ch chan<- prometheus.Metric) {
	s := m.source.Snapshot()

	ch <- prometheus.MustNewConstMetric(m.messagesDesc, prometheus.CounterValue, float64(s.MessagesProcessed))
	ch <- prometheus.MustNewConstMetric(m.opportunitiesDesc, prometheus.CounterValue, float64(s.OpportunitiesDetected))
	ch <- prometheus.MustNewConstMetric(m.tradesDesc, prometheus.CounterValue, float64(s.TradesExecuted))
	ch <- prometheus.MustNewConstMetric(m.avgLatencyDesc, prometheus.GaugeValue, s.AverageLatencyMs)
	ch <- prometheus.MustNewConstMetric(m.maxLatencyDesc, prometheus.GaugeValue, s.MaxLatencyMs)
	ch <- prometheus.MustNewConstMetric(m.latencyCountDesc, prometheus.CounterValue, float64(s.LatencyCount))
	ch <- prometheus.MustNewConstMetric(m.memoryDesc, prometheus.GaugeValue, s.MemoryMB)
	ch <- prometheus.MustNewConstMetric(m.cpuDesc, prometheus.GaugeValue, s.CPUPercent)
}

// RecordAlert 告警触发计数
func (m *Monitor) RecordAlert(kind string) {
	m.alertsFired.WithLabelValues(kind).Inc()
}

// RecordAlertDropped 告警丢弃计数
func (m *Monitor) RecordAlertDropped() {
	m.alertsDropped.Inc()
}

// RecordTick 采样周期计数
func (m *Monitor) RecordTick() {
	m.sampleTicks.Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
