package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// The backtest engine depends only on these; sqlite, postgres and the
// redis cache implement them.

// StockRepository loads stocks with their quotes and order blocks.
type StockRepository interface {
	// FindBySymbol returns the stock with quotes dated on or after
	// quotesAfter (zero time = all). Returns nil, nil when unknown.
	FindBySymbol(ctx context.Context, symbol string, quotesAfter time.Time) (*Stock, error)

	// FindBySymbols returns the known stocks among symbols. Unknown
	// symbols are omitted, not reported as errors.
	FindBySymbols(ctx context.Context, symbols []string, quotesAfter time.Time) ([]*Stock, error)
}

// BreadthRepository returns precomputed breadth series.
type BreadthRepository interface {
	// SectorBreadth returns breadth series keyed by sector code.
	SectorBreadth(ctx context.Context) (map[string][]Breadth, error)

	// MarketBreadth returns the market breadth series.
	MarketBreadth(ctx context.Context) ([]Breadth, error)
}

// StockWriter persists enriched stocks and breadth.
type StockWriter interface {
	UpsertStock(ctx context.Context, symbol, sector string) error
	SaveQuotes(ctx context.Context, quotes []Quote) error
	ReplaceOrderBlocks(ctx context.Context, symbol string, blocks []OrderBlock) error
	// SaveEnriched saves quotes and replaces the symbol's order blocks
	// atomically.
	SaveEnriched(ctx context.Context, symbol string, quotes []Quote, blocks []OrderBlock) error
	SaveBreadth(ctx context.Context, rows []Breadth) error
}

// SymbolLister enumerates stored symbols.
type SymbolLister interface {
	ListSymbols(ctx context.Context) ([]string, error)
}
