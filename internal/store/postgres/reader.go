// Package postgres is a read-only stock and breadth repository for shared
// deployments that keep market data in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"trading-backtest/internal/model"
)

// Schema mirrors the sqlite market tables with native date columns.
const Schema = `
CREATE TABLE IF NOT EXISTS stocks (
	symbol TEXT PRIMARY KEY,
	sector TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS quotes (
	symbol         TEXT   NOT NULL,
	date           DATE   NOT NULL,
	open           DOUBLE PRECISION NOT NULL,
	high           DOUBLE PRECISION NOT NULL,
	low            DOUBLE PRECISION NOT NULL,
	close          DOUBLE PRECISION NOT NULL,
	volume         BIGINT NOT NULL DEFAULT 0,
	ema5           DOUBLE PRECISION NOT NULL DEFAULT 0,
	ema10          DOUBLE PRECISION NOT NULL DEFAULT 0,
	ema20          DOUBLE PRECISION NOT NULL DEFAULT 0,
	ema50          DOUBLE PRECISION NOT NULL DEFAULT 0,
	ema100         DOUBLE PRECISION NOT NULL DEFAULT 0,
	atr            DOUBLE PRECISION NOT NULL DEFAULT 0,
	adx            DOUBLE PRECISION NOT NULL DEFAULT 0,
	donchian_upper DOUBLE PRECISION NOT NULL DEFAULT 0,
	donchian_lower DOUBLE PRECISION NOT NULL DEFAULT 0,
	trend          TEXT   NOT NULL DEFAULT '',
	PRIMARY KEY (symbol, date)
);
CREATE TABLE IF NOT EXISTS order_blocks (
	id              BIGSERIAL PRIMARY KEY,
	symbol          TEXT   NOT NULL,
	low             DOUBLE PRECISION NOT NULL,
	high            DOUBLE PRECISION NOT NULL,
	start_date      DATE   NOT NULL,
	end_date        DATE,
	type            TEXT   NOT NULL,
	volume          BIGINT NOT NULL DEFAULT 0,
	volume_strength DOUBLE PRECISION NOT NULL DEFAULT 0,
	sensitivity     TEXT   NOT NULL,
	rate_of_change  DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_order_blocks_symbol ON order_blocks(symbol);
CREATE TABLE IF NOT EXISTS breadth (
	scope          TEXT NOT NULL,
	date           DATE NOT NULL,
	bull_percent   DOUBLE PRECISION NOT NULL,
	ema5           DOUBLE PRECISION NOT NULL DEFAULT 0,
	ema10          DOUBLE PRECISION NOT NULL DEFAULT 0,
	ema20          DOUBLE PRECISION NOT NULL DEFAULT 0,
	donchian_upper DOUBLE PRECISION NOT NULL DEFAULT 0,
	donchian_lower DOUBLE PRECISION NOT NULL DEFAULT 0,
	total          INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (scope, date)
);
`

// Reader implements model.StockRepository, model.BreadthRepository and
// model.SymbolLister over PostgreSQL.
type Reader struct {
	db *sql.DB
}

// NewReader connects to dsn and verifies the connection.
func NewReader(ctx context.Context, dsn string) (*Reader, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	log.Printf("[postgres] connected")
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Migrate creates the market tables if they do not exist.
func (r *Reader) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// FindBySymbol returns the stock with quotes dated on or after quotesAfter,
// or nil when the symbol is unknown.
func (r *Reader) FindBySymbol(ctx context.Context, symbol string, quotesAfter time.Time) (*model.Stock, error) {
	stocks, err := r.FindBySymbols(ctx, []string{symbol}, quotesAfter)
	if err != nil || len(stocks) == 0 {
		return nil, err
	}
	return stocks[0], nil
}

// FindBySymbols returns the known stocks among symbols, in the order given.
func (r *Reader) FindBySymbols(ctx context.Context, symbols []string, quotesAfter time.Time) ([]*model.Stock, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	arr := pq.Array(symbols)
	bySymbol := make(map[string]*model.Stock, len(symbols))

	rows, err := r.db.QueryContext(ctx, `SELECT symbol, sector FROM stocks WHERE symbol = ANY($1)`, arr)
	if err != nil {
		return nil, fmt.Errorf("postgres query stocks: %w", err)
	}
	for rows.Next() {
		s := &model.Stock{}
		if err := rows.Scan(&s.Symbol, &s.Sector); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres scan stocks: %w", err)
		}
		bySymbol[s.Symbol] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT symbol, date, open, high, low, close, volume,
			ema5, ema10, ema20, ema50, ema100, atr, adx, donchian_upper, donchian_lower, trend
		FROM quotes
		WHERE symbol = ANY($1) AND date >= $2
		ORDER BY symbol, date ASC
	`, arr, quotesAfter.Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("postgres query quotes: %w", err)
	}
	for rows.Next() {
		var q model.Quote
		if err := rows.Scan(&q.Symbol, &q.Date, &q.Open, &q.High, &q.Low, &q.Close, &q.Volume,
			&q.EMA5, &q.EMA10, &q.EMA20, &q.EMA50, &q.EMA100, &q.ATR, &q.ADX,
			&q.DonchianUpper, &q.DonchianLower, &q.Trend); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres scan quotes: %w", err)
		}
		q.Date = model.Day(q.Date)
		s := bySymbol[q.Symbol]
		if s == nil {
			s = &model.Stock{Symbol: q.Symbol}
			bySymbol[q.Symbol] = s
		}
		s.Quotes = append(s.Quotes, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadOrderBlocks(ctx, arr, bySymbol); err != nil {
		return nil, err
	}

	out := make([]*model.Stock, 0, len(bySymbol))
	for _, sym := range symbols {
		if s, ok := bySymbol[sym]; ok {
			out = append(out, s)
			delete(bySymbol, sym)
		}
	}
	return out, nil
}

func (r *Reader) loadOrderBlocks(ctx context.Context, arr interface{}, into map[string]*model.Stock) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, low, high, start_date, end_date, type, volume, volume_strength, sensitivity, rate_of_change
		FROM order_blocks
		WHERE symbol = ANY($1)
		ORDER BY symbol, start_date ASC, id ASC
	`, arr)
	if err != nil {
		return fmt.Errorf("postgres query order_blocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b model.OrderBlock
		var typ, sens string
		var end sql.NullTime
		if err := rows.Scan(&b.Symbol, &b.Low, &b.High, &b.StartDate, &end, &typ, &b.Volume,
			&b.VolumeStrength, &sens, &b.RateOfChange); err != nil {
			return fmt.Errorf("postgres scan order_blocks: %w", err)
		}
		b.StartDate = model.Day(b.StartDate)
		if end.Valid {
			d := model.Day(end.Time)
			b.EndDate = &d
		}
		b.Type = model.OrderBlockType(typ)
		b.Sensitivity = model.Sensitivity(sens)
		if s := into[b.Symbol]; s != nil {
			s.OrderBlocks = append(s.OrderBlocks, b)
		}
	}
	return rows.Err()
}

// SectorBreadth returns breadth series keyed by sector, dates ascending.
func (r *Reader) SectorBreadth(ctx context.Context) (map[string][]model.Breadth, error) {
	rows, err := r.breadth(ctx, `scope <> $1`)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]model.Breadth)
	for _, b := range rows {
		out[b.Scope] = append(out[b.Scope], b)
	}
	return out, nil
}

// MarketBreadth returns the market breadth series, dates ascending.
func (r *Reader) MarketBreadth(ctx context.Context) ([]model.Breadth, error) {
	return r.breadth(ctx, `scope = $1`)
}

func (r *Reader) breadth(ctx context.Context, where string) ([]model.Breadth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT scope, date, bull_percent, ema5, ema10, ema20, donchian_upper, donchian_lower, total
		FROM breadth WHERE `+where+`
		ORDER BY scope, date ASC
	`, model.MarketScope)
	if err != nil {
		return nil, fmt.Errorf("postgres query breadth: %w", err)
	}
	defer rows.Close()

	var out []model.Breadth
	for rows.Next() {
		var b model.Breadth
		if err := rows.Scan(&b.Scope, &b.Date, &b.BullPercent, &b.EMA5, &b.EMA10, &b.EMA20,
			&b.DonchianUpper, &b.DonchianLower, &b.Total); err != nil {
			return nil, fmt.Errorf("postgres scan breadth: %w", err)
		}
		b.Date = model.Day(b.Date)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListSymbols returns every stored symbol, sorted.
func (r *Reader) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol FROM stocks
		UNION
		SELECT DISTINCT symbol FROM quotes
		ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres list symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("postgres scan symbol: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the connection pool.
func (r *Reader) Close() error {
	return r.db.Close()
}
