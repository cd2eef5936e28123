// Package frameservice is the top-level orchestrator for the frame engine
// microservice: it consumes bars from Redis Streams, maintains the
// symbol-partitioned frame, replays registered indicators on every append,
// and publishes the resulting values back to Redis.
package frameservice

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"stockrobotv1/internal/frame"
	"stockrobotv1/internal/indicator"
	"stockrobotv1/internal/metrics"
	"stockrobotv1/internal/model"
	"stockrobotv1/internal/portfolio"
	redisstore "stockrobotv1/internal/store/redis"
	sqlitestore "stockrobotv1/internal/store/sqlite"
)

// Service wires all dependencies, manages lifecycle, and coordinates
// goroutines. The frame and engine are mutated only inside processLoop;
// every other goroutine reaches them through barCh or cmdCh.
type Service struct {
	cfg Config

	engine    *indicator.Engine
	holdings  *portfolio.Portfolio
	redisRead *redisstore.Reader
	redisWrit *redisstore.Writer
	sqlReader *sqlitestore.Reader
	sqlWriter *sqlitestore.Writer

	prom       *metrics.Metrics
	health     *metrics.HealthStatus
	metricsSrv *metrics.Server

	streams []string
	barCh   chan model.Bar
	cmdCh   chan command

	// Last published value per (symbol, indicator), served by GET /values.
	valMu        sync.RWMutex
	latestValues map[string]map[string]model.IndicatorValue
}

// command carries a registration request from the HTTP API into processLoop.
type command struct {
	rec   indicator.Record
	reply chan error
}

// New creates a new Service from the given Config.
// It connects to Redis and SQLite; the frame itself is built in Run.
func New(cfg Config) (*Service, error) {
	svc := &Service{
		cfg:          cfg,
		holdings:     portfolio.New(),
		prom:         metrics.NewMetrics(),
		health:       metrics.NewHealthStatus(),
		barCh:        make(chan model.Bar, 5000),
		cmdCh:        make(chan command, 16),
		latestValues: make(map[string]map[string]model.IndicatorValue),
	}

	// ---- Connect to Redis ----
	var err error
	svc.redisRead, err = redisstore.NewReader(redisstore.ReaderConfig{
		Addr:          cfg.RedisAddr,
		Password:      cfg.RedisPassword,
		ConsumerGroup: cfg.ConsumerGroup,
		ConsumerName:  cfg.ConsumerName,
	})
	if err != nil {
		return nil, err
	}

	svc.redisWrit, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		svc.redisRead.Close()
		return nil, err
	}

	// ---- Open SQLite ----
	os.MkdirAll("data", 0o755)
	svc.sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Printf("[frameservice] WARNING: sqlite writer init failed: %v", err)
	}
	svc.sqlReader, err = sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Printf("[frameservice] WARNING: sqlite reader init failed: %v (continuing without history reload)", err)
	}

	return svc, nil
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	log.Println("[frameservice] starting Frame Engine microservice...")

	// ---- Reload history and restore the registry ----
	if err := svc.buildEngine(ctx); err != nil {
		return err
	}

	// ---- Streams to consume ----
	svc.streams = svc.buildStreams()
	log.Printf("[frameservice] consuming from %d streams: %v", len(svc.streams), svc.streams)

	// ---- Ensure consumer groups ----
	if len(svc.streams) > 0 {
		if err := svc.redisRead.EnsureConsumerGroup(ctx, svc.streams); err != nil {
			log.Printf("[frameservice] WARNING: consumer group setup: %v", err)
		}
	}

	// ---- Start subsystems ----
	go svc.processLoop(ctx)
	svc.startConsumer(ctx)
	go svc.snapshotLoop(ctx)
	svc.startHTTP(ctx)

	svc.metricsSrv = metrics.NewServer(cfg.MetricsAddr, svc.health)
	svc.metricsSrv.Start()
	var sqlDB *sql.DB
	if svc.sqlWriter != nil {
		sqlDB = svc.sqlWriter.DB()
	}
	svc.health.StartLivenessChecker(ctx, svc.redisWrit.Client(), sqlDB, 10*time.Second)

	log.Printf("[frameservice] registry holds %d indicators, frame holds %d rows across %d symbols",
		svc.engine.Registry().Len(), svc.engine.Frame().Len(), len(svc.engine.Frame().Symbols()))
	log.Printf("[frameservice] snapshot checkpoint every %ds", cfg.SnapshotIntervalS)
	log.Println("[frameservice] all systems running. Press Ctrl+C to stop.")

	// Block until context cancelled
	<-ctx.Done()

	svc.shutdown()
	return nil
}

// buildEngine reloads stored bars into a fresh frame, restores the indicator
// registry from the most recent snapshot (Redis first, SQLite fallback, cold
// config defaults last), and replays everything once.
func (svc *Service) buildEngine(ctx context.Context) error {
	var bars []model.Bar
	if svc.sqlReader != nil {
		var err error
		bars, err = svc.sqlReader.ReadAllBars(0)
		if err != nil {
			log.Printf("[frameservice] history reload error: %v", err)
		}
	}
	if len(bars) > 0 {
		log.Printf("[frameservice] reloaded %d bars from SQLite", len(bars))
	}
	bars = append(bars, svc.replayStreamGap(ctx, bars)...)
	svc.engine = indicator.NewEngine(frame.New(bars))
	svc.prom.FrameRows.Set(float64(svc.engine.Frame().Len()))

	// Try Redis snapshot first
	snap, err := svc.redisRead.ReadSnapshot(ctx, svc.cfg.SnapshotKey)
	if err != nil {
		log.Printf("[frameservice] redis snapshot read error: %v", err)
	}

	// Fallback to SQLite
	if snap == nil && svc.sqlReader != nil {
		snap, err = svc.sqlReader.ReadLatestSnapshot()
		if err != nil {
			log.Printf("[frameservice] sqlite snapshot read error: %v", err)
		}
	}

	if snap != nil {
		if err := svc.engine.RestoreRegistry(snap); err != nil {
			log.Printf("[frameservice] snapshot restore rejected: %v (falling back to configured indicators)", err)
			svc.engine = indicator.NewEngine(frame.New(bars))
			snap = nil
		} else {
			log.Printf("[frameservice] restored %d indicators from snapshot (saved %s)",
				len(snap.Records), snap.SavedAt.Format(time.RFC3339))
		}
	}

	// Cold start: register the configured indicators
	if snap == nil {
		for _, rec := range svc.cfg.IndicatorSpecs {
			if err := svc.engine.Invoke(rec); err != nil {
				return err
			}
		}
		log.Printf("[frameservice] cold start with %d configured indicators", len(svc.cfg.IndicatorSpecs))
	} else if err := svc.engine.Refresh(); err != nil {
		return err
	}

	svc.prom.RegisteredIndicators.Set(float64(svc.engine.Registry().Len()))
	return nil
}

// replayStreamGap reads bars published to the Redis streams after the last
// stored bar per symbol. Covers bars written while this service was down but
// after the last SQLite commit; duplicates are harmless since appends with an
// existing (symbol, ts) replace the row.
func (svc *Service) replayStreamGap(ctx context.Context, stored []model.Bar) []model.Bar {
	lastTS := make(map[string]time.Time, len(svc.cfg.Symbols))
	for _, b := range stored {
		if b.TS.After(lastTS[b.Symbol]) {
			lastTS[b.Symbol] = b.TS
		}
	}

	ch := make(chan model.Bar, 256)
	var gap []model.Bar
	done := make(chan struct{})
	go func() {
		for b := range ch {
			gap = append(gap, b)
		}
		close(done)
	}()

	for _, sym := range svc.cfg.Symbols {
		startID := "0-0"
		if ts, ok := lastTS[sym]; ok {
			startID = fmt.Sprintf("%d-0", ts.UnixMilli())
		}
		b := model.Bar{Symbol: sym}
		if _, err := svc.redisRead.ReplayFromID(ctx, b.StreamKey(), startID, ch); err != nil {
			log.Printf("[frameservice] stream replay %s: %v", sym, err)
		}
	}
	close(ch)
	<-done

	if len(gap) > 0 {
		log.Printf("[frameservice] gap-filled %d bars from redis streams", len(gap))
	}
	return gap
}

// buildStreams constructs the Redis bar stream names to consume.
func (svc *Service) buildStreams() []string {
	streams := make([]string, 0, len(svc.cfg.Symbols))
	for _, sym := range svc.cfg.Symbols {
		b := model.Bar{Symbol: sym}
		streams = append(streams, b.StreamKey())
	}
	return streams
}

// Portfolio returns the service's holdings tracker.
func (svc *Service) Portfolio() *portfolio.Portfolio { return svc.holdings }

// shutdown saves a final snapshot and closes connections.
func (svc *Service) shutdown() {
	log.Println("[frameservice] shutdown signal received, saving final snapshot...")

	finalSnap := indicator.SnapshotRegistry(svc.engine)
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()

	if err := svc.redisRead.WriteSnapshot(shutCtx, svc.cfg.SnapshotKey, finalSnap); err != nil {
		log.Printf("[frameservice] final redis snapshot error: %v", err)
	}
	if svc.sqlWriter != nil {
		if err := svc.sqlWriter.SaveSnapshot(finalSnap); err != nil {
			log.Printf("[frameservice] final sqlite snapshot error: %v", err)
		}
	}
	log.Println("[frameservice] final snapshot saved")

	if svc.metricsSrv != nil {
		svc.metricsSrv.Stop(shutCtx)
	}
	if svc.sqlReader != nil {
		svc.sqlReader.Close()
	}
	if svc.sqlWriter != nil {
		svc.sqlWriter.Close()
	}
	svc.redisWrit.Close()
	svc.redisRead.Close()

	log.Println("[frameservice] shutdown complete.")
}
