// Package resource 通过 gopsutil 读取当前进程内存与整机 CPU 使用率。
package resource

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/process"

	"perf-monitor-go/internal/perf"
)

const bytesPerMB = 1024 * 1024

// CPUTimes 累计 CPU 时间（秒）
type CPUTimes struct {
	Idle  float64
	Total float64
}

// Provider 实现 perf.ResourceProvider
type Provider struct {
	cpu CPUTracker

	// 以下函数便于测试替换
	readRSS      func(ctx context.Context) (uint64, error)
	readCPUTimes func(ctx context.Context) (CPUTimes, error)
}

var _ perf.ResourceProvider = (*Provider)(nil)

// NewProvider 创建读取当前进程的 Provider
func NewProvider() (*Provider, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("open self process: %w", err)
	}
	return &Provider{
		readRSS: func(ctx context.Context) (uint64, error) {
			info, err := proc.MemoryInfoWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return info.RSS, nil
		},
		readCPUTimes: systemCPUTimes,
	}, nil
}

// Usage 返回 RSS（MB）与自上次有效采样以来的 CPU 使用率。
// 任一读取失败都会返回错误，由采样器记录并按0处理。
func (p *Provider) Usage(ctx context.Context) (perf.Usage, error) {
	rss, err := p.readRSS(ctx)
	if err != nil {
		return perf.Usage{}, fmt.Errorf("read memory: %w", err)
	}
	times, err := p.readCPUTimes(ctx)
	if err != nil {
		return perf.Usage{}, fmt.Errorf("read cpu times: %w", err)
	}
	return perf.Usage{
		MemoryMB:   float64(rss) / bytesPerMB,
		CPUPercent: p.cpu.Observe(times.Idle, times.Total),
	}, nil
}

// systemCPUTimes 汇总全部核心：idle = idle+iowait，total 为各项之和
func systemCPUTimes(ctx context.Context) (CPUTimes, error) {
	stats, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return CPUTimes{}, err
	}
	if len(stats) == 0 {
		return CPUTimes{}, errors.New("no cpu stats")
	}
	st := stats[0]
	idle := st.Idle + st.Iowait
	total := st.User + st.Nice + st.System + st.Idle + st.Iowait + st.Irq + st.Softirq + st.Steal
	return CPUTimes{Idle: idle, Total: total}, nil
}
