// cmd/backtest runs a YAML-defined strategy over stored daily quotes,
// journals the run, publishes its trades and prints a summary.
//
// Usage:
//
//	go run ./cmd/backtest --strategy=strategies/plan-alpha.yaml --symbols=AAPL,MSFT,TQQQ \
//	    --after=2024-01-01 --before=2024-12-31 --max-positions=5 --cooldown=3
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trading-backtest/config"
	"trading-backtest/internal/backtest"
	"trading-backtest/internal/logger"
	"trading-backtest/internal/metrics"
	"trading-backtest/internal/model"
	"trading-backtest/internal/notification"
	"trading-backtest/internal/progress"
	"trading-backtest/internal/publish"
	"trading-backtest/internal/store/postgres"
	redisstore "trading-backtest/internal/store/redis"
	sqlitestore "trading-backtest/internal/store/sqlite"
	"trading-backtest/internal/strategy"
)

// quoteStore is what both the sqlite and postgres readers offer.
type quoteStore interface {
	model.StockRepository
	model.BreadthRepository
	model.SymbolLister
	DB() *sql.DB
	Close() error
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	strategyPath := flag.String("strategy", "", "Path to the strategy YAML (required)")
	symbolsStr := flag.String("symbols", "", "Comma-separated symbols (default: every stored symbol)")
	afterStr := flag.String("after", "", "First simulated date YYYY-MM-DD (default: one year ago)")
	beforeStr := flag.String("before", "", "Last simulated date YYYY-MM-DD (default: today)")
	maxPositions := flag.Int("max-positions", 0, "Max concurrently open trades (0=unlimited)")
	cooldown := flag.Int("cooldown", 0, "Trading days without entries after an accepted exit")
	delay := flag.Int("delay", 0, "Shift every entry this many trading days later")
	ignoreUnderlying := flag.Bool("ignore-underlying", false, "Evaluate leveraged ETFs on their own quotes")
	underlyingStr := flag.String("underlying", "", "Underlying overrides: SYM=UNDERLYING,...")
	rankerName := flag.String("ranker", "", "Override the strategy's ranker")
	outPath := flag.String("out", "", "Write the full result as JSON to this file")
	hold := flag.Bool("hold", false, "Keep the metrics and progress server up after the run until interrupted")
	flag.Parse()

	if *strategyPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	slogger := logger.Init("backtest", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[backtest] shutting down...")
		cancel()
	}()

	// Strategy
	stratCfg, err := strategy.LoadConfig(*strategyPath)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	if *rankerName != "" {
		stratCfg.Ranker = *rankerName
	}
	built, err := stratCfg.Build()
	if err != nil {
		log.Fatalf("[backtest] strategy %s: %v", stratCfg.Name, err)
	}
	log.Printf("[backtest] strategy %s: entry [%s] exit [%s]",
		stratCfg.Name, built.Entry.Description(), built.Exit.Description())

	// Telemetry
	m := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	tracker := progress.NewTracker()
	var metricsSrv *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = metrics.NewServer(cfg.MetricsAddr, health, nil)
		metricsSrv.Handle("/ws/progress", progress.NewHub(tracker))
		metricsSrv.Start()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			metricsSrv.Stop(stopCtx)
		}()
	}

	// Storage
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	defer store.Close()
	health.CheckStore(ctx, store.DB())

	var stocks model.StockRepository = store
	if cfg.RedisAddr != "" {
		client, err := redisstore.NewClient(redisstore.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("[backtest] WARNING: cache disabled: %v", err)
			health.SetCacheConnected(false)
		} else {
			defer client.Close()
			cb := redisstore.NewCircuitBreaker(5, 30*time.Second)
			cb.OnStateChange = func(from, to redisstore.State) {
				log.Printf("[redis] cache circuit %s -> %s", from, to)
				m.BreakerStateChanged(int(to))
				health.SetCacheConnected(to != redisstore.StateOpen)
			}
			stocks = redisstore.NewCachedRepository(client, store, cfg.CacheTTL,
				redisstore.WithBreaker(cb), redisstore.WithCacheObserver(m))
			health.SetCacheConnected(true)
			health.StartLivenessChecker(ctx, client, store.DB(), 15*time.Second)
		}
	}

	// Request
	symbols := splitList(*symbolsStr)
	if len(symbols) == 0 {
		symbols, err = store.ListSymbols(ctx)
		if err != nil {
			log.Fatalf("[backtest] list symbols: %v", err)
		}
	}
	after, before := parseRange(*afterStr, *beforeStr)

	runID := logger.NewRunID()
	req := backtest.Request{
		Entry:            built.Entry,
		Exit:             built.Exit,
		Ranker:           built.Ranker,
		Symbols:          symbols,
		After:            after,
		Before:           before,
		MaxPositions:     *maxPositions,
		CooldownDays:     *cooldown,
		EntryDelayDays:   *delay,
		IgnoreUnderlying: *ignoreUnderlying,
		CustomUnderlying: parseUnderlying(*underlyingStr),
		RunID:            runID,
	}

	engine := backtest.NewEngine(stocks, store,
		backtest.WithLogger(slogger),
		backtest.WithObserver(m, tracker),
		backtest.WithBatchSize(cfg.BatchSize),
		backtest.WithWorkers(cfg.Workers),
	)

	notifier := buildNotifier(cfg)
	runCtx := logger.WithRunID(ctx, runID)
	runLog := logger.FromContext(runCtx, slogger)
	runLog.Info("backtest: starting", "strategy", stratCfg.Name, "symbols", len(symbols),
		"after", after.Format(model.DateLayout), "before", before.Format(model.DateLayout))

	result, err := engine.Run(runCtx, req)
	health.SetLastRun(runID, time.Now())
	if err != nil {
		runLog.Error("backtest: run failed", "error", err)
		var missing *backtest.MissingUnderlyingError
		if errors.As(err, &missing) {
			log.Printf("[backtest] add quotes for %s or pass --ignore-underlying", strings.Join(missing.Symbols, ", "))
		}
		if nerr := notifier.Send(ctx, notification.RunFailedAlert(runID, stratCfg.Name, err)); nerr != nil {
			log.Printf("[backtest] alert failed: %v", nerr)
		}
		os.Exit(1)
	}

	// Journal
	journal, err := sqlitestore.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Printf("[backtest] WARNING: journal unavailable: %v", err)
	} else {
		defer journal.Close()
		if err := journal.SaveRun(ctx, runRecord(stratCfg.Name, req, result), result.Trades, result.MissedTrades); err != nil {
			log.Printf("[backtest] journal save failed: %v", err)
		}
	}

	// Trade stream
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		pub, err := publish.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		if err != nil {
			log.Printf("[backtest] WARNING: kafka publisher: %v", err)
			health.SetPublisherOK(false)
		} else {
			if err := pub.PublishRun(ctx, runID, result.Trades, result.MissedTrades); err != nil {
				log.Printf("[backtest] kafka publish failed: %v", err)
				health.SetPublisherOK(false)
			}
			pub.Close()
		}
	}

	stats := result.Stats
	if err := notifier.Send(ctx, notification.RunCompleteAlert(notification.RunSummary{
		RunID:        runID,
		Strategy:     stratCfg.Name,
		Mode:         string(stats.Mode),
		Symbols:      stats.Symbols,
		Trades:       stats.Trades,
		MissedTrades: stats.MissedTrades,
		WinRate:      stats.Summary.WinRate,
		AvgProfit:    stats.Summary.AvgProfitPercent,
		Duration:     stats.Duration,
	})); err != nil {
		log.Printf("[backtest] alert failed: %v", err)
	}

	if *outPath != "" {
		if err := writeJSON(*outPath, result); err != nil {
			log.Printf("[backtest] write %s: %v", *outPath, err)
		}
	}

	printTrades(result.Trades)
	printSummary(stratCfg.Name, stats)

	if *hold && metricsSrv != nil {
		log.Printf("[backtest] holding %s open, Ctrl-C to exit", cfg.MetricsAddr)
		<-ctx.Done()
	}
}

func openStore(ctx context.Context, cfg *config.Config) (quoteStore, error) {
	if cfg.UsePostgres() {
		r, err := postgres.NewReader(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return r, nil
	}
	r, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return r, nil
}

func buildNotifier(cfg *config.Config) notification.Notifier {
	n := notification.Multi{notification.NewLogNotifier()}
	if cfg.AlertWebhookURL != "" {
		n = append(n, notification.NewWebhookNotifier(cfg.AlertWebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		n = append(n, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	return n
}

func runRecord(name string, req backtest.Request, res *backtest.Result) sqlitestore.RunRecord {
	s := res.Stats
	return sqlitestore.RunRecord{
		RunID:            s.RunID,
		Strategy:         name,
		Mode:             string(s.Mode),
		Symbols:          s.Symbols,
		After:            req.After,
		Before:           req.Before,
		MaxPositions:     req.MaxPositions,
		CooldownDays:     req.CooldownDays,
		EntryDelayDays:   req.EntryDelayDays,
		Trades:           s.Trades,
		MissedTrades:     s.MissedTrades,
		FailedStocks:     s.FailedStocks,
		WinRate:          s.Summary.WinRate,
		TotalProfit:      s.Summary.TotalProfit,
		AvgProfitPercent: s.Summary.AvgProfitPercent,
		Duration:         s.Duration,
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseRange(afterStr, beforeStr string) (after, before time.Time) {
	before = model.Day(time.Now())
	if beforeStr != "" {
		d, err := model.ParseDay(beforeStr)
		if err != nil {
			log.Fatalf("[backtest] bad --before %q: %v", beforeStr, err)
		}
		before = d
	}
	after = before.AddDate(-1, 0, 0)
	if afterStr != "" {
		d, err := model.ParseDay(afterStr)
		if err != nil {
			log.Fatalf("[backtest] bad --after %q: %v", afterStr, err)
		}
		after = d
	}
	return after, before
}

// parseUnderlying reads "TQQQ=QQQ,SOXL=SOXX".
func parseUnderlying(s string) map[string]string {
	pairs := splitList(s)
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		sym, under, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(under) == "" {
			log.Printf("[backtest] WARNING: ignoring underlying override %q", p)
			continue
		}
		out[strings.TrimSpace(sym)] = strings.TrimSpace(under)
	}
	return out
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTrades(trades []model.Trade) {
	const shown = 20
	for i := range trades {
		if i == shown {
			fmt.Printf("  ... %d more\n", len(trades)-shown)
			break
		}
		t := &trades[i]
		fmt.Printf("  %-6s %s -> %s  %8.2f -> %8.2f  %+6.2f%%  %s\n",
			t.Symbol, t.EntryQuote.Date.Format(model.DateLayout), t.ExitDate().Format(model.DateLayout),
			t.EntryQuote.Close, t.EntryQuote.Close+t.Profit, t.ProfitPercent(), t.ExitReason)
	}
}

func printSummary(name string, s backtest.Stats) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Strategy:      %-20s ║\n", truncate(name, 20))
	fmt.Printf("║  Mode:          %-20s ║\n", s.Mode)
	fmt.Printf("║  Symbols:       %-20d ║\n", s.Symbols)
	fmt.Printf("║  Failed stocks: %-20d ║\n", s.FailedStocks)
	fmt.Printf("║  Trades:        %-20d ║\n", s.Trades)
	fmt.Printf("║  Missed trades: %-20d ║\n", s.MissedTrades)
	fmt.Printf("║  Win rate:      %-20s ║\n", fmt.Sprintf("%.1f%%", s.Summary.WinRate))
	fmt.Printf("║  Avg profit:    %-20s ║\n", fmt.Sprintf("%+.2f%%", s.Summary.AvgProfitPercent))
	fmt.Printf("║  Total profit:  %-20.2f ║\n", s.Summary.TotalProfit)
	fmt.Printf("║  Duration:      %-20s ║\n", s.Duration.Round(time.Millisecond))
	fmt.Println("╚══════════════════════════════════════╝")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
