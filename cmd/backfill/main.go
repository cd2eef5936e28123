// cmd/backfill pulls historical candles from the broker API, stores them in
// SQLite, and runs the configured indicators over the result to validate the
// data before the live engine starts.
//
// Usage:
//
//	go run ./cmd/backfill --symbols=AAPL,MSFT --days=30 --interval=ONE_MINUTE
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockrobotv1/config"
	"stockrobotv1/internal/frame"
	"stockrobotv1/internal/frameservice"
	"stockrobotv1/internal/indicator"
	"stockrobotv1/internal/model"
	sqlitestore "stockrobotv1/internal/store/sqlite"
	"stockrobotv1/pkg/histdata"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	_ = godotenv.Load()

	// Flags
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols (default: SYMBOLS env)")
	days := flag.Int("days", 30, "Days of history to fetch")
	interval := flag.String("interval", "ONE_MINUTE", "Broker bar size label")
	dbPath := flag.String("db", "", "Path to SQLite database (default: SQLITE_PATH env)")
	indicatorCfg := flag.String("indicators", "", "Indicator specs: KIND:PERIOD,... (default: INDICATOR_CONFIGS env)")
	flag.Parse()

	cfg := config.Load()
	symbols := cfg.ParseSymbols()
	if *symbolsFlag != "" {
		symbols = parseSymbols(*symbolsFlag)
	}
	if len(symbols) == 0 {
		log.Fatal("[backfill] no symbols specified")
	}
	path := cfg.SQLitePath
	if *dbPath != "" {
		path = *dbPath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// ---- Broker session ----
	client := histdata.NewClient(histdata.Config{
		APIKey:     cfg.BrokerAPIKey,
		ClientCode: cfg.BrokerClientCode,
		Password:   cfg.BrokerPassword,
		TOTPSecret: cfg.BrokerTOTPSecret,
		BaseURL:    cfg.BrokerBaseURL,
	})
	if err := client.GenerateSession(ctx); err != nil {
		log.Fatalf("[backfill] session failed: %v", err)
	}

	// ---- Open SQLite ----
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: path})
	if err != nil {
		log.Fatalf("[backfill] sqlite open failed: %v", err)
	}
	defer writer.Close()

	// ---- Fetch and persist ----
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -*days)
	var all []model.Bar
	for _, sym := range symbols {
		bars, err := client.GetCandles(ctx, sym, *interval, from, to)
		if err != nil {
			log.Fatalf("[backfill] fetch %s failed: %v", sym, err)
		}
		if err := writer.InsertBars(bars); err != nil {
			log.Fatalf("[backfill] insert %s failed: %v", sym, err)
		}
		log.Printf("[backfill] %s: stored %d bars", sym, len(bars))
		all = append(all, bars...)
	}

	// ---- Validate: run the configured indicators over the fetched data ----
	specStr := *indicatorCfg
	if specStr == "" {
		specStr = os.Getenv("INDICATOR_CONFIGS")
	}
	engine := indicator.NewEngine(frame.New(all))
	for _, rec := range frameservice.ParseIndicatorSpecs(specStr) {
		if err := engine.Invoke(rec); err != nil {
			log.Fatalf("[backfill] indicator %s failed: %v", rec.Name, err)
		}
	}

	// ---- Print summary ----
	fmt.Println()
	fmt.Println("backfill complete")
	fmt.Printf("  symbols:    %v\n", symbols)
	fmt.Printf("  bars:       %d (%s .. %s)\n", len(all), from.Format("2006-01-02"), to.Format("2006-01-02"))
	fmt.Printf("  indicators: %d registered\n", engine.Registry().Len())
	for _, sym := range engine.Frame().Symbols() {
		row, ok := engine.Frame().Last(sym)
		if !ok {
			continue
		}
		fmt.Printf("  %-8s close=%.2f", sym, row.Close)
		for _, rec := range engine.Registry().Records() {
			v := row.Value(rec.Name)
			if frame.Defined(v) {
				fmt.Printf("  %s=%.4f", rec.Name, v)
			}
		}
		fmt.Println()
	}
}

func parseSymbols(s string) []string {
	var symbols []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			symbols = append(symbols, p)
		}
	}
	return symbols
}
