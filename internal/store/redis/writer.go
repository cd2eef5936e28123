package redis

import (
	"context"
	"fmt"
	"log"
	"time"
	"unsafe"

	"stockrobotv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: ~5 trading days of minute bars + buffer
	barStreamMaxLen   = 2000
	valueStreamMaxLen = 2000
	defaultLatestTTL  = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer writes bars and indicator values to Redis.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// RunBars reads bars from barCh and writes them to Redis.
// Blocks until ctx is cancelled or barCh is closed.
func (w *Writer) RunBars(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			w.writeBar(ctx, bar)
		}
	}
}

// WriteValueBatch writes multiple indicator values in a single Redis pipeline.
// This batches XADD + SET + PUBLISH for all values into one network roundtrip.
// Zero-copy []byte→string on the hot path, no fmt.Sprintf.
func (w *Writer) WriteValueBatch(ctx context.Context, values []model.IndicatorValue) {
	if len(values) == 0 {
		return
	}

	pipe := w.client.Pipeline()
	for i := range values {
		v := &values[i]
		if !v.Defined {
			continue // warmup rows carry no value worth publishing
		}

		jsonBytes := v.JSON()
		// Zero-copy []byte→string (safe: jsonBytes is not mutated after this)
		jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: v.StreamKey(),
			MaxLen: valueStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": jsonData},
		})
		pipe.Set(ctx, v.LatestKey(), jsonData, defaultLatestTTL)
		pipe.Publish(ctx, v.PubSubChannel(), jsonData)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("[redis] value batch pipeline error (%d values): %v", len(values), err)
	}
}

// writeBar performs pipelined writes for one bar.
func (w *Writer) writeBar(ctx context.Context, bar model.Bar) {
	streamKey := bar.StreamKey()
	latestKey := "bars:latest:" + bar.Symbol
	jsonData := string(bar.JSON())

	pipe := w.client.Pipeline()

	// SET latest bar with TTL
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)

	// XADD to stream with auto-trimming
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: barStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})

	// PUBLISH for real-time subscribers
	pipe.Publish(ctx, "pub:"+streamKey, jsonData)

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("[redis] pipeline error for %s: %v", bar.Key(), err)
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
