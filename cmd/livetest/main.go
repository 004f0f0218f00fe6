// Command livetest drives the live subscription socket under load. Every
// client subscribes to the global chat topic and posts to it on an interval,
// so each post fans out as a snapshot to all connected clients.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type counters struct {
	dialed    atomic.Int64
	connected atomic.Int64
	failed    atomic.Int64
	sent      atomic.Int64
	snapshots atomic.Int64
	errors    atomic.Int64
}

func (c *counters) log() {
	slog.Info("live load test finished",
		slog.Int64("connections_attempted", c.dialed.Load()),
		slog.Int64("connections_successful", c.connected.Load()),
		slog.Int64("connections_failed", c.failed.Load()),
		slog.Int64("messages_sent", c.sent.Load()),
		slog.Int64("snapshots_received", c.snapshots.Load()),
		slog.Int64("errors", c.errors.Load()),
	)
}

// api is a minimal client for the board's REST endpoints.
type api struct {
	host  string
	token string
	http  *http.Client
}

func (a *api) post(ctx context.Context, path string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+a.host+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (a *api) login(ctx context.Context, email, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	status, err := a.post(ctx, "/api/auth/login", map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login returned %d", status)
	}
	a.token = out.Token
	return nil
}

func (a *api) dial(ctx context.Context) (*websocket.Conn, error) {
	var out struct {
		Ticket string `json:"ticket"`
	}
	status, err := a.post(ctx, "/api/ws/ticket", nil, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("ticket request returned %d", status)
	}
	u := url.URL{Scheme: "ws", Host: a.host, Path: "/api/ws", RawQuery: "ticket=" + url.QueryEscape(out.Ticket)}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

func runClient(ctx context.Context, a *api, id int, interval time.Duration, stats *counters) {
	stats.dialed.Add(1)
	conn, err := a.dial(ctx)
	if err != nil {
		stats.failed.Add(1)
		stats.errors.Add(1)
		slog.Debug("dial failed", slog.Int("client", id), slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.Close() }()
	stats.connected.Add(1)

	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "topic": "globalChat"}); err != nil {
		stats.errors.Add(1)
		return
	}

	go func() {
		for {
			var env struct {
				Type string `json:"type"`
			}
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if env.Type == "snapshot" {
				stats.snapshots.Add(1)
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			msg := map[string]string{"content": fmt.Sprintf("load test message from client %d", id)}
			status, err := a.post(context.WithoutCancel(ctx), "/api/chat/global", msg, nil)
			if err != nil || status != http.StatusCreated {
				stats.errors.Add(1)
				continue
			}
			stats.sent.Add(1)
		}
	}
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "demo@example.com", "Test user email")
	password := flag.String("password", "password123", "Test user password")
	clients := flag.Int("clients", 50, "Number of concurrent clients")
	interval := flag.Duration("interval", 5*time.Second, "Delay between posts per client")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	slog.Info("starting live load test",
		slog.String("target", *host), slog.Int("clients", *clients), slog.Duration("duration", *duration))

	a := &api{host: *host, http: &http.Client{Timeout: 5 * time.Second}}
	if err := a.login(ctx, *email, *password); err != nil {
		slog.Error("login failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var (
		stats counters
		wg    sync.WaitGroup
	)
	for i := 0; i < *clients && ctx.Err() == nil; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runClient(ctx, a, i, *interval, &stats)
		}()
		// Spread ticket requests out.
		time.Sleep(50 * time.Millisecond)
	}

	<-ctx.Done()
	wg.Wait()
	stats.log()
}
