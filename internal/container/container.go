package container

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"perf-monitor-go/config"
	"perf-monitor-go/infrastructure/alert"
	"perf-monitor-go/infrastructure/logger"
	"perf-monitor-go/infrastructure/monitor"
	"perf-monitor-go/internal/feed"
	"perf-monitor-go/internal/perf"
	"perf-monitor-go/internal/resource"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg config.AppConfig

	// 基础设施
	logger   *logger.Logger
	exporter *monitor.Monitor

	// 性能监控
	provider perf.ResourceProvider
	perf     *perf.Monitor

	// 告警
	alerts     *alert.Manager
	dispatcher *alert.Dispatcher

	// 快照推送与HTTP服务器
	hub    *feed.Hub
	server *httpServerComponent

	// 生命周期管理
	lifecycle *LifecycleManager
}

// Option 构建选项
type Option func(*Container)

// WithLogger 使用外部日志器，不再按配置创建
func WithLogger(l *logger.Logger) Option {
	return func(c *Container) { c.logger = l }
}

// WithProvider 替换默认的进程资源读取
func WithProvider(p perf.ResourceProvider) Option {
	return func(c *Container) { c.provider = p }
}

// New 加载配置并创建Container实例
func New(configPath string, opts ...Option) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewWithConfig(cfg, opts...), nil
}

// NewWithConfig 使用已加载的配置创建Container实例
func NewWithConfig(cfg config.AppConfig, opts ...Option) *Container {
	c := &Container{
		cfg:       cfg,
		lifecycle: NewLifecycleManager(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	if err := c.buildMonitor(); err != nil {
		return fmt.Errorf("build monitor failed: %w", err)
	}

	c.buildAlerts()
	c.buildFeed()

	c.registerLifecycleComponents()
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	if c.logger == nil {
		lg, err := logger.New(c.cfg.Log)
		if err != nil {
			return fmt.Errorf("create logger failed: %w", err)
		}
		c.logger = lg
	}

	if c.provider == nil {
		p, err := resource.NewProvider()
		if err != nil {
			return fmt.Errorf("create resource provider failed: %w", err)
		}
		c.provider = p
	}

	c.logger.Info("infrastructure built")
	return nil
}

func (c *Container) buildMonitor() error {
	c.perf = perf.New(c.logger.Logger, c.provider)
	if err := c.perf.Initialize(c.cfg.Monitor.Interval()); err != nil {
		return err
	}

	c.exporter = monitor.New(monitor.Config{
		Namespace: c.cfg.Server.Namespace,
		Subsystem: c.cfg.Server.Subsystem,
	}, c.perf)
	return nil
}

func (c *Container) buildAlerts() {
	c.alerts = alert.NewManager(alert.NewLogChannel("log", c.logger))
	if c.cfg.Alerts.Console {
		c.alerts.AddChannel(alert.NewConsoleChannel("console", os.Stdout))
	}
	c.alerts.SetObserver(func(a alert.Alert) {
		c.exporter.RecordAlert(a.Kind)
	})

	if c.cfg.Alerts.Async {
		c.dispatcher = alert.NewDispatcher(c.alerts, c.cfg.Alerts.QueueSize, c.logger.Named("alert"))
		c.dispatcher.SetDropHook(c.exporter.RecordAlertDropped)
	}

	c.ApplyThresholds(c.cfg.Monitor.Thresholds)
}

func (c *Container) buildFeed() {
	c.hub = feed.NewHub(c.logger.Named("feed"))
	c.perf.OnTick(func(s perf.Snapshot) {
		c.exporter.RecordTick()
		c.hub.Publish(s)
	})
}

// registerLifecycleComponents 注册顺序即启动顺序，停止时逆序
func (c *Container) registerLifecycleComponents() {
	if c.dispatcher != nil {
		c.lifecycle.Register(c.dispatcher)
	}
	c.lifecycle.Register(&perfComponent{monitor: c.perf})
	c.lifecycle.Register(&hookComponent{name: "snapshot_feed", onStop: c.hub.Close})

	if c.cfg.Server.Addr != "" {
		c.server = &httpServerComponent{
			name:    "status_server",
			handler: c.Handler(),
			addr:    c.cfg.Server.Addr,
			logger:  c.logger,
		}
		c.lifecycle.Register(c.server)
	}
}

// ApplyThresholds 按配置设置三类告警阈值，<=0 关闭对应告警
func (c *Container) ApplyThresholds(th config.Thresholds) {
	fn := c.alertCallback()
	c.perf.SetThreshold(perf.LatencyAlert, th.LatencyMs, fn)
	c.perf.SetThreshold(perf.MemoryAlert, th.MemoryMB, fn)
	c.perf.SetThreshold(perf.CPUAlert, th.CPUPercent, fn)
}

func (c *Container) alertCallback() perf.AlertFunc {
	if c.dispatcher != nil {
		return c.dispatcher.Callback()
	}
	return c.alerts.Callback()
}

// Handler 状态服务路由：/metrics /snapshot /healthz /ws/snapshot
func (c *Container) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.exporter.Handler())
	mux.HandleFunc("/snapshot", c.serveSnapshot)
	mux.HandleFunc("/healthz", c.serveHealth)
	mux.Handle("/ws/snapshot", c.hub)
	return mux
}

func (c *Container) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.perf.Snapshot()); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "encode_snapshot"})
	}
}

func (c *Container) serveHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.HealthCheck(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ok"))
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

// Stop 逆序停止全部组件；可重复调用
func (c *Container) Stop() error {
	if c.logger == nil {
		return nil
	}
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}

	c.logger.Info("container stopped")
	_ = c.logger.Close()
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// Config 当前配置
func (c *Container) Config() config.AppConfig { return c.cfg }

// Logger 容器日志器
func (c *Container) Logger() *logger.Logger { return c.logger }

// Monitor 性能监控实例，供生产者记录指标
func (c *Container) Monitor() *perf.Monitor { return c.perf }

// Exporter Prometheus导出器
func (c *Container) Exporter() *monitor.Monitor { return c.exporter }

// Dispatcher 异步告警分发器，同步模式下为 nil
func (c *Container) Dispatcher() *alert.Dispatcher { return c.dispatcher }

// Addr 状态服务实际监听地址，未启用时为空
func (c *Container) Addr() string {
	if c.server == nil {
		return ""
	}
	return c.server.Addr()
}
