// cmd/seed fills the SQLite database with synthetic daily quotes so the
// backtester can run without a market data feed. Quotes follow a seeded
// random walk over NYSE trading days and are enriched after writing.
//
// Usage:
//
//	go run ./cmd/seed --from=2023-01-03 --to=2024-12-31 --seed=42
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"trading-backtest/config"
	"trading-backtest/internal/logger"
	"trading-backtest/internal/markethours"
	"trading-backtest/internal/model"
	"trading-backtest/internal/refresh"
	sqlitestore "trading-backtest/internal/store/sqlite"
)

// Default universe: single names, the index ETFs they map to and a
// leveraged ETF.
var defaultSectors = map[string]string{
	"AAPL": "XLK",
	"MSFT": "XLK",
	"NVDA": "XLK",
	"XLK":  "XLK",
	"SPY":  "",
	"QQQ":  "",
	"TQQQ": "",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	symbolsStr := flag.String("symbols", "", "SYM[:SECTOR],... (default: AAPL MSFT NVDA XLK SPY QQQ TQQQ)")
	fromStr := flag.String("from", "2023-01-03", "First date YYYY-MM-DD")
	toStr := flag.String("to", "2024-12-31", "Last date YYYY-MM-DD")
	seed := flag.Int64("seed", 42, "Random seed")
	noEnrich := flag.Bool("no-enrich", false, "Write raw quotes only")
	flag.Parse()

	cfg := config.Load()
	slogger := logger.Init("seed", logger.ParseLevel(cfg.LogLevel))

	from, err := model.ParseDay(*fromStr)
	if err != nil {
		log.Fatalf("[seed] bad --from: %v", err)
	}
	to, err := model.ParseDay(*toStr)
	if err != nil {
		log.Fatalf("[seed] bad --to: %v", err)
	}
	days := markethours.TradingDays(from, to)
	if len(days) == 0 {
		log.Fatalf("[seed] no trading days between %s and %s", *fromStr, *toStr)
	}

	universe := parseUniverse(*symbolsStr)

	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("[seed] %v", err)
		}
	}
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[seed] %v", err)
	}
	defer writer.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(*seed))

	quoteCh := make(chan model.Quote, 1000)
	done := make(chan struct{})
	go func() {
		writer.Run(ctx, quoteCh)
		close(done)
	}()

	symbols := make([]string, 0, len(universe))
	for sym := range universe {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		if err := writer.UpsertStock(ctx, sym, universe[sym]); err != nil {
			log.Fatalf("[seed] %v", err)
		}
		for _, q := range randomWalk(rng, sym, days) {
			quoteCh <- q
		}
	}
	close(quoteCh)
	<-done
	log.Printf("[seed] wrote %d symbols x %d days to %s", len(symbols), len(days), cfg.SQLitePath)

	if *noEnrich {
		return
	}

	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[seed] %v", err)
	}
	defer reader.Close()

	q := refresh.NewQueue(reader, writer, refresh.WithLogger(slogger))
	for _, sym := range symbols {
		if err := q.Process(ctx, sym); err != nil {
			log.Printf("[seed] enrich %s: %v", sym, err)
		}
	}
	n, err := refresh.RebuildBreadth(ctx, reader, writer, symbols)
	if err != nil {
		log.Fatalf("[seed] %v", err)
	}
	log.Printf("[seed] enriched %d symbols, %d breadth rows", len(symbols), n)
}

// parseUniverse reads "AAPL:XLK,SPY" into symbol -> sector.
func parseUniverse(s string) map[string]string {
	if strings.TrimSpace(s) == "" {
		return defaultSectors
	}
	out := map[string]string{}
	for _, p := range strings.Split(s, ",") {
		sym, sector, _ := strings.Cut(strings.TrimSpace(p), ":")
		if sym = strings.ToUpper(sym); sym != "" {
			out[sym] = strings.ToUpper(sector)
		}
	}
	return out
}

// randomWalk draws daily log returns with a small upward drift.
func randomWalk(rng *rand.Rand, symbol string, days []time.Time) []model.Quote {
	price := 50 + rng.Float64()*250
	out := make([]model.Quote, len(days))
	for i, d := range days {
		open := price * (1 + rng.NormFloat64()*0.005)
		price *= math.Exp(0.0004 + rng.NormFloat64()*0.018)
		hi := math.Max(open, price) * (1 + math.Abs(rng.NormFloat64())*0.008)
		lo := math.Min(open, price) * (1 - math.Abs(rng.NormFloat64())*0.008)
		out[i] = model.Quote{
			Symbol: symbol,
			Date:   d,
			Open:   round2(open),
			High:   round2(hi),
			Low:    round2(lo),
			Close:  round2(price),
			Volume: int64(500_000 + rng.Intn(4_500_000)),
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: seed [flags]\n")
		flag.PrintDefaults()
	}
}
