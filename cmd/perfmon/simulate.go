package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// recorder 生产者侧接口，由 perf.Monitor 实现
type recorder interface {
	RecordMessageProcessed()
	RecordLatency(ms float64)
	RecordOpportunityDetected()
}

// simulate 产生模拟负载：每 10 个步长处理一条消息并记录 5~14ms 延迟，
// 每 100 个步长发现一次机会，直到 ctx 取消。
func simulate(ctx context.Context, rec recorder, step time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	counter := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		counter++
		if counter%10 != 0 {
			continue
		}
		rec.RecordMessageProcessed()
		rec.RecordLatency(5 + float64((counter/10)%10))

		if counter%100 == 0 {
			rec.RecordOpportunityDetected()
			logger.Info("simulated opportunity detected", zap.Int("counter", counter))
		}
	}
}
