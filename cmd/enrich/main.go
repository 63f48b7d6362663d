// cmd/enrich recomputes indicators, order blocks and breadth for stored
// symbols through the refresh queue.
//
// Usage:
//
//	go run ./cmd/enrich --symbols=AAPL,MSFT
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trading-backtest/config"
	"trading-backtest/internal/logger"
	"trading-backtest/internal/metrics"
	"trading-backtest/internal/progress"
	"trading-backtest/internal/refresh"
	redisstore "trading-backtest/internal/store/redis"
	sqlitestore "trading-backtest/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	symbolsStr := flag.String("symbols", "", "Comma-separated symbols (default: every stored symbol)")
	skipBreadth := flag.Bool("skip-breadth", false, "Do not rebuild market and sector breadth")
	flag.Parse()

	cfg := config.Load()
	slogger := logger.Init("enrich", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[enrich] shutting down...")
		cancel()
	}()

	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[enrich] %v", err)
	}
	defer reader.Close()
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[enrich] %v", err)
	}
	defer writer.Close()

	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	health.CheckStore(ctx, reader.DB())
	tracker := progress.NewTracker()
	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr, health, nil)
		srv.Handle("/ws/progress", progress.NewHub(tracker))
		srv.Start()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			srv.Stop(stopCtx)
		}()
	}

	var symbols []string
	for _, s := range strings.Split(*symbolsStr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, strings.ToUpper(s))
		}
	}
	if len(symbols) == 0 {
		if symbols, err = reader.ListSymbols(ctx); err != nil {
			log.Fatalf("[enrich] list symbols: %v", err)
		}
	}

	runID := logger.NewRunID()
	tracker.StartRefresh(runID, len(symbols))
	queue := refresh.NewQueue(reader, writer,
		refresh.WithWorkers(cfg.RefreshWorkers),
		refresh.WithQueueSize(cfg.RefreshQueueSize),
		refresh.WithLogger(slogger.With("run_id", runID)),
		refresh.WithObserver(m),
		refresh.WithObserver(tracker),
	)
	queue.Start(ctx)

	start := time.Now()
	for _, sym := range symbols {
		for {
			err := queue.Enqueue(sym)
			if !errors.Is(err, refresh.ErrQueueFull) {
				break
			}
			// back off until a worker frees a slot
			time.Sleep(50 * time.Millisecond)
		}
	}
	queue.Close()

	snap := tracker.Snapshot()
	log.Printf("[enrich] refreshed %d symbols (%d failed) in %v", snap.Done, snap.Failed, time.Since(start).Round(time.Millisecond))

	if !*skipBreadth {
		all, err := reader.ListSymbols(ctx)
		if err != nil {
			log.Fatalf("[enrich] list symbols: %v", err)
		}
		n, err := refresh.RebuildBreadth(ctx, reader, writer, all)
		if err != nil {
			log.Fatalf("[enrich] %v", err)
		}
		log.Printf("[enrich] wrote %d breadth rows", n)
	}

	if cfg.RedisAddr != "" {
		client, err := redisstore.NewClient(redisstore.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("[enrich] WARNING: cache not invalidated: %v", err)
			return
		}
		defer client.Close()
		cache := redisstore.NewCachedRepository(client, reader, cfg.CacheTTL)
		if err := cache.Invalidate(ctx, symbols...); err != nil {
			log.Printf("[enrich] cache invalidate: %v", err)
		}
	}
}
