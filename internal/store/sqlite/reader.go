package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"trading-backtest/internal/model"
)

// Reader loads stocks and breadth for the backtest engine and the refresh
// pipeline. It implements model.StockRepository, model.BreadthRepository
// and model.SymbolLister.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := open(dbPath, 4)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// FindBySymbol returns the stock with quotes dated on or after quotesAfter,
// or nil when the symbol is unknown.
func (r *Reader) FindBySymbol(ctx context.Context, symbol string, quotesAfter time.Time) (*model.Stock, error) {
	stocks, err := r.FindBySymbols(ctx, []string{symbol}, quotesAfter)
	if err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		return nil, nil
	}
	return stocks[0], nil
}

// FindBySymbols returns the known stocks among symbols, in the order given.
func (r *Reader) FindBySymbols(ctx context.Context, symbols []string, quotesAfter time.Time) ([]*model.Stock, error) {
	bySymbol := make(map[string]*model.Stock, len(symbols))
	for start := 0; start < len(symbols); start += maxParams {
		end := start + maxParams
		if end > len(symbols) {
			end = len(symbols)
		}
		if err := r.loadChunk(ctx, symbols[start:end], quotesAfter, bySymbol); err != nil {
			return nil, err
		}
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

func (r *Reader) loadChunk(ctx context.Context, symbols []string, after time.Time, into map[string]*model.Stock) error {
	args := make([]any, len(symbols))
	for i, s := range symbols {
		args[i] = s
	}
	in := placeholders(len(symbols))

	rows, err := r.db.QueryContext(ctx, `SELECT symbol, sector FROM stocks WHERE symbol IN (`+in+`)`, args...)
	if err != nil {
		return fmt.Errorf("sqlite query stocks: %w", err)
	}
	for rows.Next() {
		s := &model.Stock{}
		if err := rows.Scan(&s.Symbol, &s.Sector); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite scan stocks: %w", err)
		}
		into[s.Symbol] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	qargs := append(args, after.Format(model.DateLayout))
	rows, err = r.db.QueryContext(ctx, `
		SELECT symbol, date, open, high, low, close, volume,
			ema5, ema10, ema20, ema50, ema100, atr, adx, donchian_upper, donchian_lower, trend
		FROM quotes
		WHERE symbol IN (`+in+`) AND date >= ?
		ORDER BY symbol, date ASC
	`, qargs...)
	if err != nil {
		return fmt.Errorf("sqlite query quotes: %w", err)
	}
	for rows.Next() {
		var q model.Quote
		var date string
		if err := rows.Scan(&q.Symbol, &date, &q.Open, &q.High, &q.Low, &q.Close, &q.Volume,
			&q.EMA5, &q.EMA10, &q.EMA20, &q.EMA50, &q.EMA100, &q.ATR, &q.ADX,
			&q.DonchianUpper, &q.DonchianLower, &q.Trend); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite scan quotes: %w", err)
		}
		if q.Date, err = model.ParseDay(date); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite quote date %q: %w", date, err)
		}
		s := into[q.Symbol]
		if s == nil {
			// quotes without a stocks row
			s = &model.Stock{Symbol: q.Symbol}
			into[q.Symbol] = s
		}
		s.Quotes = append(s.Quotes, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT symbol, low, high, start_date, end_date, type, volume, volume_strength, sensitivity, rate_of_change
		FROM order_blocks
		WHERE symbol IN (`+in+`)
		ORDER BY symbol, start_date ASC, id ASC
	`, args...)
	if err != nil {
		return fmt.Errorf("sqlite query order_blocks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b model.OrderBlock
		var start, typ, sens string
		var end sql.NullString
		if err := rows.Scan(&b.Symbol, &b.Low, &b.High, &start, &end, &typ, &b.Volume,
			&b.VolumeStrength, &sens, &b.RateOfChange); err != nil {
			return fmt.Errorf("sqlite scan order_blocks: %w", err)
		}
		if b.StartDate, err = model.ParseDay(start); err != nil {
			return fmt.Errorf("sqlite block start %q: %w", start, err)
		}
		if end.Valid {
			d, err := model.ParseDay(end.String)
			if err != nil {
				return fmt.Errorf("sqlite block end %q: %w", end.String, err)
			}
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
	rows, err := r.breadth(ctx, `WHERE scope <> ?`)
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
	return r.breadth(ctx, `WHERE scope = ?`)
}

func (r *Reader) breadth(ctx context.Context, where string) ([]model.Breadth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT scope, date, bull_percent, ema5, ema10, ema20, donchian_upper, donchian_lower, total
		FROM breadth `+where+`
		ORDER BY scope, date ASC
	`, model.MarketScope)
	if err != nil {
		return nil, fmt.Errorf("sqlite query breadth: %w", err)
	}
	defer rows.Close()

	var out []model.Breadth
	for rows.Next() {
		var b model.Breadth
		var date string
		if err := rows.Scan(&b.Scope, &date, &b.BullPercent, &b.EMA5, &b.EMA10, &b.EMA20,
			&b.DonchianUpper, &b.DonchianLower, &b.Total); err != nil {
			return nil, fmt.Errorf("sqlite scan breadth: %w", err)
		}
		if b.Date, err = model.ParseDay(date); err != nil {
			return nil, fmt.Errorf("sqlite breadth date %q: %w", date, err)
		}
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
		return nil, fmt.Errorf("sqlite list symbols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
