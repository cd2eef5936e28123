package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"stockrobotv1/internal/frameservice"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	_ = godotenv.Load()

	cfg := frameservice.LoadConfig()
	log.Printf("[frameengine] symbols: %v, snapshot interval: %ds", cfg.Symbols, cfg.SnapshotIntervalS)

	svc, err := frameservice.New(cfg)
	if err != nil {
		log.Fatalf("[frameengine] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[frameengine] fatal: %v", err)
	}
}
