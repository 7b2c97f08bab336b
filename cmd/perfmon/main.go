package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"perf-monitor-go/config"
	"perf-monitor-go/internal/container"
)

func main() {
	cfgPath := flag.String("config", "configs/perfmon.yaml", "配置文件路径")
	sim := flag.Bool("simulate", false, "生成模拟负载（消息、延迟、机会）")
	watch := flag.Bool("watch", true, "配置文件变更时热更新告警阈值")
	flag.Parse()

	if err := run(*cfgPath, *sim, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "perfmon: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string, sim, watch bool) error {
	fmt.Printf("perfmon loading configuration from: %s\n", cfgPath)

	c, err := container.New(cfgPath)
	if err != nil {
		return err
	}
	if err := c.Build(); err != nil {
		return err
	}
	defer func() {
		logFinalStatistics(c)
		_ = c.Stop()
	}()

	lg := c.Logger()
	logSystemInfo(lg.Logger, c.Config())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := c.Start(ctx); err != nil {
		return err
	}
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warn("systemd notify failed", zap.Error(err))
	} else if ok {
		lg.Info("systemd notified ready")
	}

	if watch {
		w := config.Watcher{
			Path: cfgPath,
			OnError: func(err error) {
				lg.Warn("config reload failed", zap.Error(err))
			},
		}
		go func() {
			err := w.Start(ctx, func(cfg config.AppConfig) {
				c.ApplyThresholds(cfg.Monitor.Thresholds)
				lg.Info("alert thresholds reloaded",
					zap.Float64("latency_ms", cfg.Monitor.Thresholds.LatencyMs),
					zap.Float64("memory_mb", cfg.Monitor.Thresholds.MemoryMB),
					zap.Float64("cpu_percent", cfg.Monitor.Thresholds.CPUPercent))
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				lg.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}

	if sim {
		go simulate(ctx, c.Monitor(), 100*time.Millisecond, lg.Named("simulate"))
	}

	lg.Info("perfmon running, press Ctrl+C to stop")
	<-ctx.Done()
	lg.Info("shutdown signal received")

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	return nil
}

func logSystemInfo(lg *zap.Logger, cfg config.AppConfig) {
	wd, _ := os.Getwd()
	lg.Info("system information",
		zap.Int("cpu_cores", runtime.NumCPU()),
		zap.Int("page_size", os.Getpagesize()),
		zap.Int("pid", os.Getpid()),
		zap.String("working_dir", wd))
	lg.Info("configuration",
		zap.String("env", cfg.Env),
		zap.String("log_level", cfg.Log.Level),
		zap.Duration("interval", cfg.Monitor.Interval()),
		zap.Float64("latency_threshold_ms", cfg.Monitor.Thresholds.LatencyMs),
		zap.Float64("memory_threshold_mb", cfg.Monitor.Thresholds.MemoryMB),
		zap.Float64("cpu_threshold_percent", cfg.Monitor.Thresholds.CPUPercent),
		zap.Bool("async_alerts", cfg.Alerts.Async),
		zap.String("server_addr", cfg.Server.Addr))
}

func logFinalStatistics(c *container.Container) {
	m := c.Monitor()
	if m == nil || !m.Initialized() {
		return
	}
	m.Stop()
	s := m.Snapshot()
	c.Logger().Info("final statistics",
		zap.Uint64("messages_processed", s.MessagesProcessed),
		zap.Uint64("opportunities_detected", s.OpportunitiesDetected),
		zap.Uint64("trades_executed", s.TradesExecuted),
		zap.Float64("avg_latency_ms", s.AverageLatencyMs),
		zap.Float64("max_latency_ms", s.MaxLatencyMs),
		zap.Float64("memory_mb", s.MemoryMB),
		zap.Float64("cpu_percent", s.CPUPercent))
}
