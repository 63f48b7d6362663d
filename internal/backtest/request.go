package backtest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"trading-backtest/internal/model"
	"trading-backtest/internal/portfolio"
	"trading-backtest/internal/strategy"
)

var (
	// ErrNoSymbols is returned when a request names no symbols.
	ErrNoSymbols = errors.New("backtest: no symbols requested")
	// ErrNoStrategy is returned when the entry or exit strategy is nil.
	ErrNoStrategy = errors.New("backtest: entry and exit strategies are required")
	// ErrNoStockData is returned when a run finds no trades and the
	// requested symbols have no stored quotes at all.
	ErrNoStockData = errors.New("backtest: no stock data found for the requested symbols")
)

// MissingUnderlyingError names underlying symbols that had no data.
type MissingUnderlyingError struct {
	Symbols []string
}

func (e *MissingUnderlyingError) Error() string {
	return "missing underlying asset data for: " + strings.Join(e.Symbols, ", ")
}

// Mode is the execution strategy chosen for a run.
type Mode string

const (
	// ModeUnlimited processes stocks independently and in parallel.
	ModeUnlimited Mode = "unlimited"
	// ModeConstrained simulates dates in order under a position limit
	// and/or a cooldown.
	ModeConstrained Mode = "constrained"
)

// Request describes one backtest run.
type Request struct {
	Entry   strategy.EntryStrategy
	Exit    strategy.ExitStrategy
	Symbols []string
	After   time.Time // inclusive
	Before  time.Time // inclusive

	// MaxPositions caps concurrently open trades. 0 means unlimited.
	MaxPositions int
	// Ranker orders same-day candidates. nil means the composite ranker.
	Ranker strategy.StockRanker
	// IgnoreUnderlying evaluates every symbol on its own quotes instead of
	// mapping leveraged ETFs to their underlying.
	IgnoreUnderlying bool
	// CustomUnderlying overrides the built-in underlying table.
	CustomUnderlying map[string]string
	// CooldownDays blocks new entries for this many trading days after an
	// accepted trade exits.
	CooldownDays int
	// EntryDelayDays shifts every entry this many trading days later.
	EntryDelayDays int

	// RunID tags logs, telemetry and the journal. Generated when empty.
	RunID string
}

// Mode returns the execution mode the request selects.
func (r *Request) Mode() Mode {
	if r.MaxPositions <= 0 && r.CooldownDays <= 0 {
		return ModeUnlimited
	}
	return ModeConstrained
}

func (r *Request) validate() error {
	if len(r.Symbols) == 0 {
		return ErrNoSymbols
	}
	if r.Entry == nil || r.Exit == nil {
		return ErrNoStrategy
	}
	if r.MaxPositions < 0 || r.CooldownDays < 0 || r.EntryDelayDays < 0 {
		return fmt.Errorf("backtest: negative limits (maxPositions=%d cooldown=%d delay=%d)",
			r.MaxPositions, r.CooldownDays, r.EntryDelayDays)
	}
	if !r.Before.IsZero() && r.Before.Before(r.After) {
		return fmt.Errorf("backtest: before %s is earlier than after %s",
			r.Before.Format(model.DateLayout), r.After.Format(model.DateLayout))
	}
	return nil
}

// strategySymbol returns the symbol whose quotes drive symbol's signals.
func (r *Request) strategySymbol(symbol string) string {
	if r.IgnoreUnderlying {
		return symbol
	}
	if u, ok := r.CustomUnderlying[symbol]; ok && u != "" {
		return u
	}
	return strategy.UnderlyingSymbol(symbol)
}

// Result is the outcome of a run.
type Result struct {
	Trades       []model.Trade `json:"trades"`
	MissedTrades []model.Trade `json:"missed_trades"`
	Stats        Stats         `json:"stats"`
}

// Stats describes how a run went.
type Stats struct {
	RunID        string            `json:"run_id"`
	Mode         Mode              `json:"mode"`
	Symbols      int               `json:"symbols"`
	Batches      int               `json:"batches"`
	FailedStocks int               `json:"failed_stocks"`
	Signals      int               `json:"signals"`
	Trades       int               `json:"trades"`
	MissedTrades int               `json:"missed_trades"`
	Summary      portfolio.Summary `json:"summary"`
	Duration     time.Duration     `json:"duration"`
}

// Signal is a lightweight entry record collected before simulation.
type Signal struct {
	Date             time.Time
	TradingSymbol    string
	UnderlyingSymbol string
	Score            float64
}
