package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"perf-monitor-go/internal/perf"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9100", "perfmon 状态服务地址")
	ws := flag.Bool("ws", false, "订阅 /ws/snapshot 而不是轮询 /snapshot")
	once := flag.Bool("once", false, "只输出一次快照")
	interval := flag.Duration("interval", 5*time.Second, "轮询间隔")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if *ws {
		err = subscribe(ctx, *addr, *once, os.Stdout)
	} else {
		err = poll(ctx, *addr, *interval, *once, os.Stdout)
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "metrics_probe: %v\n", err)
		os.Exit(1)
	}
}

// poll 周期性请求 /snapshot 并输出状态行
func poll(ctx context.Context, addr string, interval time.Duration, once bool, out io.Writer) error {
	client := &http.Client{Timeout: 5 * time.Second}
	endpoint := (&url.URL{Scheme: "http", Host: addr, Path: "/snapshot"}).String()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s, err := fetchSnapshot(ctx, client, endpoint)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s.StatusLine())
		if once {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func fetchSnapshot(ctx context.Context, client *http.Client, endpoint string) (perf.Snapshot, error) {
	var s perf.Snapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return s, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return s, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return s, fmt.Errorf("fetch snapshot: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return s, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// subscribe 订阅快照推送，每收到一次输出一行
func subscribe(ctx context.Context, addr string, once bool, out io.Writer) error {
	endpoint := (&url.URL{Scheme: "ws", Host: addr, Path: "/ws/snapshot"}).String()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var s perf.Snapshot
		if err := conn.ReadJSON(&s); err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		fmt.Fprintln(out, s.StatusLine())
		if once {
			return nil
		}
	}
}
