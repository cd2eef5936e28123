package histdata

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"stockrobotv1/internal/model"
)

const (
	streamHeartbeat  = 10 * time.Second
	streamReadLimit  = 1 << 20
	maxReconnectWait = 60 * time.Second
)

// StreamConfig configures the live bar stream.
type StreamConfig struct {
	URL        string // wss endpoint
	APIKey     string
	ClientCode string
	FeedToken  string
	Symbols    []string
}

// Stream consumes live bars over a websocket and pushes them to a channel.
// It reconnects with exponential backoff and resubscribes on every connect.
type Stream struct {
	cfg    StreamConfig
	dialer *websocket.Dialer

	// OnReconnect is called once per reconnection attempt, for metrics.
	OnReconnect func()
}

// NewStream creates a live bar stream.
func NewStream(cfg StreamConfig) *Stream {
	return &Stream{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
	}
}

// Run connects, subscribes, and feeds bars into out until ctx is cancelled.
// Connection failures trigger exponential backoff and reconnection.
func (s *Stream) Run(ctx context.Context, out chan<- model.Bar) error {
	wait := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := s.runConn(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[histdata-stream] connection lost: %v (reconnecting in %v)", err, wait)
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > maxReconnectWait {
			wait = maxReconnectWait
		}
	}
}

// runConn handles a single websocket session: dial, subscribe, read until error.
func (s *Stream) runConn(ctx context.Context, out chan<- model.Bar) error {
	header := http.Header{}
	header.Set("x-api-key", s.cfg.APIKey)
	header.Set("x-client-code", s.cfg.ClientCode)
	header.Set("x-feed-token", s.cfg.FeedToken)

	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		if resp != nil {
			log.Printf("[histdata-stream] dial failed, status: %s", resp.Status)
		}
		return err
	}
	defer conn.Close()
	conn.SetReadLimit(streamReadLimit)

	log.Printf("[histdata-stream] connected, subscribing to %s", strings.Join(s.cfg.Symbols, ","))
	if err := conn.WriteJSON(map[string]interface{}{
		"action":  "subscribe",
		"symbols": s.cfg.Symbols,
	}); err != nil {
		return err
	}

	// Heartbeat keeps the broker from dropping idle connections.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamHeartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var bar model.Bar
		if err := json.Unmarshal(data, &bar); err != nil {
			log.Printf("[histdata-stream] unmarshal error: %v", err)
			continue
		}
		if bar.Symbol == "" || bar.TS.IsZero() {
			continue // heartbeat or control frame
		}

		select {
		case out <- bar:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
