// Package backtest replays entry and exit strategies over stored daily
// quotes and produces the trades they would have taken.
//
// Runs without a position limit or cooldown evaluate every stock on its
// own, in parallel. Runs with either constraint collect signals first and
// then walk the trading calendar one date at a time so that same-day
// candidates compete for the free slots.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"trading-backtest/internal/model"
	"trading-backtest/internal/portfolio"
	"trading-backtest/internal/strategy"
)

const (
	// DefaultBatchSize bounds how many trading symbols are held in memory
	// at once.
	DefaultBatchSize = 150
	maxWorkers       = 16
	spySymbol        = "SPY"
	sampleSize       = 5
)

// Observer receives run telemetry. Implementations must be safe for
// concurrent use; progress and failures arrive from worker goroutines.
type Observer interface {
	RunStarted(runID string, mode string, symbols int)
	RunProgress(runID string, percent float64)
	StockFailed(runID, symbol string, err error)
	RunFinished(runID string, mode string, signals, trades, missed int, elapsed time.Duration, err error)
}

// Engine runs backtests against a stock repository.
type Engine struct {
	stocks    model.StockRepository
	breadth   model.BreadthRepository
	log       *slog.Logger
	observers []Observer
	batchSize int
	workers   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver registers telemetry observers.
func WithObserver(obs ...Observer) Option {
	return func(e *Engine) {
		for _, o := range obs {
			if o != nil {
				e.observers = append(e.observers, o)
			}
		}
	}
}

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithWorkers caps the worker pool. n <= 0 uses min(NumCPU, 16).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an Engine. breadth may be nil, in which case every run
// sees an empty breadth context.
func NewEngine(stocks model.StockRepository, breadth model.BreadthRepository, opts ...Option) *Engine {
	workers := runtime.NumCPU()
	if workers > maxWorkers {
		workers = maxWorkers
	}
	e := &Engine{
		stocks:    stocks,
		breadth:   breadth,
		log:       slog.Default(),
		batchSize: DefaultBatchSize,
		workers:   workers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes req and returns its trades.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	req.Symbols = normalizeSymbols(req.Symbols)
	req.CustomUnderlying = normalizeUnderlying(req.CustomUnderlying)
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	req.After = model.Day(req.After)
	if req.Before.IsZero() {
		req.Before = model.Day(time.Now())
	} else {
		req.Before = model.Day(req.Before)
	}
	if req.Ranker == nil {
		req.Ranker = strategy.NewCompositeRanker()
	}

	r := &run{
		Engine: e,
		req:    req,
		log:    e.log.With("run_id", req.RunID),
		start:  time.Now(),
		stats: Stats{
			RunID:   req.RunID,
			Mode:    req.Mode(),
			Symbols: len(req.Symbols),
		},
	}
	for _, o := range e.observers {
		o.RunStarted(req.RunID, string(r.stats.Mode), len(req.Symbols))
	}
	r.log.Info("backtest started",
		"mode", r.stats.Mode,
		"symbols", len(req.Symbols),
		"after", req.After.Format(model.DateLayout),
		"before", req.Before.Format(model.DateLayout),
		"entry", req.Entry.Description(),
		"exit", req.Exit.Description(),
		"max_positions", req.MaxPositions,
		"cooldown_days", req.CooldownDays,
		"entry_delay_days", req.EntryDelayDays,
		"ranker", req.Ranker.Description(),
	)

	res, err := r.execute(ctx)
	elapsed := time.Since(r.start)
	trades, missed := 0, 0
	if res != nil {
		trades, missed = len(res.Trades), len(res.MissedTrades)
		res.Stats.Duration = elapsed
	}
	for _, o := range e.observers {
		o.RunFinished(req.RunID, string(r.stats.Mode), r.stats.Signals, trades, missed, elapsed, err)
	}
	if err != nil {
		r.log.Error("backtest failed", "error", err, "elapsed", elapsed)
		return nil, err
	}
	r.log.Info("backtest finished",
		"trades", trades,
		"missed", missed,
		"failed_stocks", res.Stats.FailedStocks,
		"elapsed", elapsed,
	)
	return res, nil
}

// run holds the state of a single Run call.
type run struct {
	*Engine
	req   Request
	log   *slog.Logger
	bc    *model.BacktestContext
	start time.Time
	stats Stats
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	bc, err := r.loadContext(ctx)
	if err != nil {
		return nil, err
	}
	r.bc = bc

	var trades, missed []model.Trade
	if r.stats.Mode == ModeUnlimited {
		trades, err = r.runUnlimited(ctx)
	} else {
		trades, missed, err = r.runConstrained(ctx)
	}
	if err != nil {
		return nil, err
	}

	if len(trades) == 0 && len(missed) == 0 {
		if err := r.checkStockData(ctx); err != nil {
			return nil, err
		}
	}

	sortTrades(trades)
	sortTrades(missed)
	r.stats.Trades = len(trades)
	r.stats.MissedTrades = len(missed)
	r.stats.Summary = portfolio.Summarize(trades)
	if trades == nil {
		trades = []model.Trade{}
	}
	if missed == nil {
		missed = []model.Trade{}
	}
	return &Result{Trades: trades, MissedTrades: missed, Stats: r.stats}, nil
}

// loadContext builds the breadth and SPY context shared by every stock.
// Missing breadth is not fatal; conditions that need it evaluate false.
func (r *run) loadContext(ctx context.Context) (*model.BacktestContext, error) {
	var spyQuotes []model.Quote
	spy, err := r.stocks.FindBySymbol(ctx, spySymbol, r.req.After)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", spySymbol, err)
	}
	if spy == nil || len(spy.Quotes) == 0 {
		r.log.Warn("SPY data not found; SPY conditions will evaluate false")
	} else {
		spyQuotes = spy.Quotes
	}

	if r.breadth == nil {
		return model.NewBacktestContext(nil, nil, spyQuotes), nil
	}
	sectors, err := r.breadth.SectorBreadth(ctx)
	if err != nil {
		r.log.Warn("sector breadth unavailable", "error", err)
		sectors = nil
	}
	market, err := r.breadth.MarketBreadth(ctx)
	if err != nil {
		r.log.Warn("market breadth unavailable", "error", err)
		market = nil
	}
	return model.NewBacktestContext(sectors, market, spyQuotes), nil
}

// checkStockData distinguishes "no signals" from "no data" for a run that
// produced nothing.
func (r *run) checkStockData(ctx context.Context) error {
	sample := r.req.Symbols
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	stocks, err := r.stocks.FindBySymbols(ctx, sample, r.req.After)
	if err != nil {
		return fmt.Errorf("sample stock data: %w", err)
	}
	for _, s := range stocks {
		if s != nil && len(s.Quotes) > 0 {
			return nil
		}
	}
	return ErrNoStockData
}

func (r *run) progress(percent float64) {
	for _, o := range r.observers {
		o.RunProgress(r.req.RunID, percent)
	}
}

func (r *run) stockFailed(symbol string, err error) {
	r.log.Warn("stock failed", "symbol", symbol, "error", err)
	for _, o := range r.observers {
		o.StockFailed(r.req.RunID, symbol, err)
	}
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// normalizeUnderlying upper-cases both sides of the mapping and drops
// blank entries. It returns a new map so the caller's is left untouched.
func normalizeUnderlying(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		k = strings.ToUpper(strings.TrimSpace(k))
		v = strings.ToUpper(strings.TrimSpace(v))
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func sortTrades(trades []model.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].StartDate.Equal(trades[j].StartDate) {
			return trades[i].StartDate.Before(trades[j].StartDate)
		}
		return trades[i].Symbol < trades[j].Symbol
	})
}
