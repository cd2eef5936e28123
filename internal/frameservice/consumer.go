package frameservice

import (
	"context"
	"log"
	"time"

	"stockrobotv1/internal/frame"
	"stockrobotv1/internal/indicator"
	"stockrobotv1/internal/model"
)

const (
	// Bars arriving within this window are appended as one batch so a burst
	// triggers a single replay instead of one per bar.
	appendDebounce = 50 * time.Millisecond
	maxAppendBatch = 500
)

// startConsumer starts the Redis stream XREADGROUP consumer in a goroutine.
func (svc *Service) startConsumer(ctx context.Context) {
	if len(svc.streams) == 0 {
		log.Println("[frameservice] WARNING: no symbols configured, consumer not started")
		return
	}
	svc.health.SetStreamConnected(true)
	go func() {
		if err := svc.redisRead.ConsumeBars(ctx, svc.streams, svc.barCh); err != nil {
			log.Printf("[frameservice] consumer error: %v", err)
		}
		svc.health.SetStreamConnected(false)
	}()
}

// processLoop is the only goroutine that mutates the frame and the registry.
// It batches incoming bars, appends them, replays every registered indicator,
// and publishes the fresh values. Registration commands from the HTTP API are
// interleaved here so they never race an append.
func (svc *Service) processLoop(ctx context.Context) {
	batch := make([]model.Bar, 0, maxAppendBatch)
	timer := time.NewTimer(appendDebounce)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		svc.appendAndRefresh(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case bar, ok := <-svc.barCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, bar)
			svc.health.SetLastBarTime(bar.TS)
			if len(batch) >= maxAppendBatch {
				flush()
				timer.Reset(appendDebounce)
			}

		case <-timer.C:
			flush()
			timer.Reset(appendDebounce)

		case cmd := <-svc.cmdCh:
			// Apply pending bars first so the new indicator sees them.
			flush()
			err := svc.engine.Invoke(cmd.rec)
			if err == nil {
				svc.prom.RegisteredIndicators.Set(float64(svc.engine.Registry().Len()))
				svc.publishValues(ctx, svc.engine.Frame().Symbols())
			}
			cmd.reply <- err
		}
	}
}

// appendAndRefresh applies one batch of bars to the frame, replays all
// registered indicators, and publishes the resulting values.
func (svc *Service) appendAndRefresh(ctx context.Context, bars []model.Bar) {
	f := svc.engine.Frame()
	f.AppendRows(bars)
	svc.prom.BarsAppended.Add(float64(len(bars)))
	svc.prom.FrameRows.Set(float64(f.Len()))

	touched := make(map[string]bool, 4)
	for _, b := range bars {
		touched[b.Symbol] = true
		svc.holdings.UpdatePrice(b)
	}

	start := time.Now()
	err := svc.engine.Refresh()
	svc.prom.RefreshDur.Observe(time.Since(start).Seconds())
	svc.prom.RefreshTotal.Inc()
	if err != nil {
		svc.prom.RefreshFailures.Inc()
		svc.health.SetRefreshOK(false)
		log.Printf("[frameservice] refresh failed, values not published: %v", err)
		return
	}
	svc.health.SetRefreshOK(true)

	symbols := make([]string, 0, len(touched))
	for sym := range touched {
		symbols = append(symbols, sym)
	}
	svc.publishValues(ctx, symbols)

	// Persist the appended bars
	if svc.sqlWriter != nil {
		commitStart := time.Now()
		if err := svc.sqlWriter.InsertBars(bars); err != nil {
			log.Printf("[frameservice] sqlite insert error: %v", err)
		} else {
			svc.prom.SQLiteCommitDur.Observe(time.Since(commitStart).Seconds())
		}
	}
}

// publishValues reads the latest row of every registered indicator for the
// given symbols and pushes the values to Redis in one pipeline.
func (svc *Service) publishValues(ctx context.Context, symbols []string) {
	records := svc.engine.Registry().Records()
	if len(records) == 0 || len(symbols) == 0 {
		return
	}
	f := svc.engine.Frame()

	values := make([]model.IndicatorValue, 0, len(symbols)*len(records))
	for _, sym := range symbols {
		row, ok := f.Last(sym)
		if !ok {
			continue
		}
		for _, rec := range records {
			v := row.Value(rec.Name)
			iv := model.IndicatorValue{
				Indicator: rec.Name,
				Symbol:    sym,
				TS:        row.TS,
				Value:     v,
				Defined:   frame.Defined(v),
			}
			if !iv.Defined {
				iv.Value = 0 // NaN is not JSON-encodable
			}
			values = append(values, iv)
		}
	}
	if len(values) == 0 {
		return
	}

	start := time.Now()
	svc.redisWrit.WriteValueBatch(ctx, values)
	svc.prom.RedisWriteDur.Observe(time.Since(start).Seconds())
	svc.prom.ValuesPublished.Add(float64(len(values)))

	svc.cacheValues(values)
}

// cacheValues stores the latest published values for the HTTP API.
func (svc *Service) cacheValues(values []model.IndicatorValue) {
	svc.valMu.Lock()
	defer svc.valMu.Unlock()
	for _, v := range values {
		bySymbol, ok := svc.latestValues[v.Symbol]
		if !ok {
			bySymbol = make(map[string]model.IndicatorValue, 8)
			svc.latestValues[v.Symbol] = bySymbol
		}
		bySymbol[v.Indicator] = v
	}
}

// RegisterIndicator routes a registration request through the process loop
// and waits for the outcome. Safe to call from any goroutine.
func (svc *Service) RegisterIndicator(ctx context.Context, rec indicator.Record) error {
	cmd := command{rec: rec, reply: make(chan error, 1)}
	select {
	case svc.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
