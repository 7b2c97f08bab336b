package container

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"

	"perf-monitor-go/infrastructure/logger"
	"perf-monitor-go/internal/perf"
)

// Lifecycle 生命周期接口
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// named 可选接口，用于错误信息里标识组件
type named interface {
	Name() string
}

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	components []Lifecycle
	mu         sync.RWMutex
}

// NewLifecycleManager 创建新的生命周期管理器
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		components: make([]Lifecycle, 0),
	}
}

// Register 注册组件
func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// Len 已注册组件数
func (m *LifecycleManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.components)
}

// StartAll 按顺序启动所有组件
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			// 启动失败，回滚已启动的组件
			for j := i - 1; j >= 0; j-- {
				err = multierr.Append(err, m.components[j].Stop())
			}
			return fmt.Errorf("start component %s failed: %w", componentName(i, component), err)
		}
	}
	return nil
}

// StopAll 逆序停止所有组件，汇总全部错误
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs error
	for i := len(m.components) - 1; i >= 0; i-- {
		if err := m.components[i].Stop(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stop component %s: %w", componentName(i, m.components[i]), err))
		}
	}
	return errs
}

// CheckHealth 检查所有组件健康状态
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Health(); err != nil {
			return fmt.Errorf("component %s unhealthy: %w", componentName(i, component), err)
		}
	}
	return nil
}

func componentName(i int, c Lifecycle) string {
	if n, ok := c.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%d", i)
}

// perfComponent 把 perf.Monitor 适配为生命周期组件
type perfComponent struct {
	monitor *perf.Monitor
}

func (p *perfComponent) Name() string { return "perf_monitor" }

func (p *perfComponent) Start(ctx context.Context) error {
	if !p.monitor.Initialized() {
		return perf.ErrNotInitialized
	}
	p.monitor.Start()
	return nil
}

func (p *perfComponent) Stop() error {
	return p.monitor.Close()
}

func (p *perfComponent) Health() error {
	return p.monitor.Health()
}

// hookComponent 只在停止时执行清理
type hookComponent struct {
	name   string
	onStop func()
}

func (h *hookComponent) Name() string                    { return h.name }
func (h *hookComponent) Start(ctx context.Context) error { return nil }
func (h *hookComponent) Health() error                   { return nil }

func (h *hookComponent) Stop() error {
	if h.onStop != nil {
		h.onStop()
	}
	return nil
}

// httpServerComponent HTTP服务器组件
type httpServerComponent struct {
	name    string
	handler http.Handler
	addr    string
	logger  *logger.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	started  bool
}

func (h *httpServerComponent) Name() string { return h.name }

// Start 同步监听端口，端口占用等错误直接返回
func (h *httpServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("%s listen %s: %w", h.name, h.addr, err)
	}

	srv := &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	h.server = srv
	h.listener = ln

	// 在后台启动服务器
	go func() {
		h.logger.Logger.Info(fmt.Sprintf("%s listening on %s", h.name, ln.Addr()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.LogError(err, map[string]interface{}{
				"component": h.name,
				"action":    "serve",
			})
		}
	}()

	h.started = true
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.started = false
	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", h.name, err)
	}

	h.logger.Logger.Info(fmt.Sprintf("%s stopped", h.name))
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return fmt.Errorf("%s not started", h.name)
	}
	return nil
}

// Addr 实际监听地址，未启动时为空
func (h *httpServerComponent) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil || !h.started {
		return ""
	}
	return h.listener.Addr().String()
}
