// cmd/barfeed bridges the broker's live bar stream into Redis Streams and
// SQLite. The frame engine consumes the Redis streams this process writes,
// so barfeed and frameengine together form the live pipeline:
//
//	[Broker WS] → [barfeed] → [Redis Streams] → [frameengine]
//	                  └──────→ [SQLite]
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockrobotv1/config"
	"stockrobotv1/internal/metrics"
	"stockrobotv1/internal/model"
	redisstore "stockrobotv1/internal/store/redis"
	sqlitestore "stockrobotv1/internal/store/sqlite"
	"stockrobotv1/pkg/histdata"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	_ = godotenv.Load()
	log.Println("[barfeed] starting...")

	cfg := config.Load()
	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[barfeed] no symbols configured")
	}
	if cfg.BrokerStreamURL == "" {
		log.Fatal("[barfeed] BROKER_STREAM_URL not set")
	}

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite writer (off hot path) ----
	os.MkdirAll("data", 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[barfeed] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	health.SetSQLiteOK(true)
	log.Println("[barfeed] sqlite writer ready")

	// ---- Redis writer (mandatory: the frame engine consumes from it) ----
	redisWriter, err := redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatalf("[barfeed] redis init failed: %v", err)
	}
	health.SetRedisConnected(true)
	log.Println("[barfeed] redis writer ready")

	health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)

	// ---- Broker session ----
	client := histdata.NewClient(histdata.Config{
		APIKey:     cfg.BrokerAPIKey,
		ClientCode: cfg.BrokerClientCode,
		Password:   cfg.BrokerPassword,
		TOTPSecret: cfg.BrokerTOTPSecret,
		BaseURL:    cfg.BrokerBaseURL,
	})
	if err := client.GenerateSession(ctx); err != nil {
		log.Fatalf("[barfeed] broker session failed: %v", err)
	}
	log.Println("[barfeed] broker session ready")

	// ---- Fan out stream bars to Redis + SQLite ----
	barCh := make(chan model.Bar, 10000)
	redisCh := make(chan model.Bar, 5000)
	sqliteCh := make(chan model.Bar, 5000)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case bar, ok := <-barCh:
				if !ok {
					return
				}
				health.SetLastBarTime(bar.TS)
				select {
				case redisCh <- bar:
				default:
				}
				select {
				case sqliteCh <- bar:
				default:
				}
			}
		}
	}()
	go redisWriter.RunBars(ctx, redisCh)
	go sqlWriter.Run(ctx, sqliteCh)

	// ---- Live stream ----
	stream := histdata.NewStream(histdata.StreamConfig{
		URL:        cfg.BrokerStreamURL,
		APIKey:     cfg.BrokerAPIKey,
		ClientCode: cfg.BrokerClientCode,
		FeedToken:  client.FeedToken(),
		Symbols:    symbols,
	})
	stream.OnReconnect = func() {
		prom.WSReconnects.Inc()
	}
	health.SetStreamConnected(true)
	go func() {
		if err := stream.Run(ctx, barCh); err != nil {
			log.Printf("[barfeed] stream ended: %v", err)
			health.SetStreamConnected(false)
		}
	}()

	log.Printf("[barfeed] streaming %d symbols into redis + sqlite", len(symbols))

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[barfeed] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	redisWriter.Close()

	log.Println("[barfeed] shutdown complete.")
}
