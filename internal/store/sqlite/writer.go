package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"trading-backtest/internal/model"
)

const (
	defaultBatchSize  = 500
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/market.db"
}

// Writer persists stocks, enriched quotes, order blocks and breadth.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	// single writer connection
	db, err := open(cfg.DBPath, 1)
	if err != nil {
		return nil, err
	}
	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

// UpsertStock inserts or updates a stock's sector.
func (w *Writer) UpsertStock(ctx context.Context, symbol, sector string) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO stocks (symbol, sector) VALUES (?, ?)
		ON CONFLICT(symbol) DO UPDATE SET sector = excluded.sector
	`, symbol, sector)
	if err != nil {
		return fmt.Errorf("sqlite upsert stock %s: %w", symbol, err)
	}
	return nil
}

// Run reads quotes from quoteCh and inserts them in batched transactions.
// Flushes every batch size quotes OR every flush delay, whichever first.
// Blocks until ctx is cancelled or quoteCh is closed.
func (w *Writer) Run(ctx context.Context, quoteCh <-chan model.Quote) {
	batch := make([]model.Quote, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		// ctx may already be cancelled on the final flush
		if err := w.SaveQuotes(context.Background(), batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d quotes in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case q, ok := <-quoteCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, q)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// SaveQuotes inserts or replaces quotes in a single transaction.
func (w *Writer) SaveQuotes(ctx context.Context, quotes []model.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	return w.inTx(ctx, func(tx *sql.Tx) error {
		return insertQuotes(ctx, tx, quotes)
	})
}

// ReplaceOrderBlocks swaps a symbol's stored order blocks for blocks.
func (w *Writer) ReplaceOrderBlocks(ctx context.Context, symbol string, blocks []model.OrderBlock) error {
	return w.inTx(ctx, func(tx *sql.Tx) error {
		return replaceOrderBlocks(ctx, tx, symbol, blocks)
	})
}

// SaveEnriched writes a symbol's quotes and replaces its order blocks in one
// transaction, so readers never see new indicators next to old blocks.
func (w *Writer) SaveEnriched(ctx context.Context, symbol string, quotes []model.Quote, blocks []model.OrderBlock) error {
	return w.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertQuotes(ctx, tx, quotes); err != nil {
			return err
		}
		return replaceOrderBlocks(ctx, tx, symbol, blocks)
	})
}

func (w *Writer) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertQuotes(ctx context.Context, tx *sql.Tx, quotes []model.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO quotes (symbol, date, open, high, low, close, volume,
			ema5, ema10, ema20, ema50, ema100, atr, adx, donchian_upper, donchian_lower, trend)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, q := range quotes {
		_, err := stmt.ExecContext(ctx, q.Symbol, q.Date.Format(model.DateLayout),
			q.Open, q.High, q.Low, q.Close, q.Volume,
			q.EMA5, q.EMA10, q.EMA20, q.EMA50, q.EMA100,
			q.ATR, q.ADX, q.DonchianUpper, q.DonchianLower, q.Trend)
		if err != nil {
			return fmt.Errorf("sqlite insert quote %s %s: %w", q.Symbol, q.Date.Format(model.DateLayout), err)
		}
	}
	return nil
}

func replaceOrderBlocks(ctx context.Context, tx *sql.Tx, symbol string, blocks []model.OrderBlock) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_blocks WHERE symbol = ?`, symbol); err != nil {
		return fmt.Errorf("sqlite delete order blocks %s: %w", symbol, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_blocks (symbol, low, high, start_date, end_date, type, volume,
			volume_strength, sensitivity, rate_of_change)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range blocks {
		var end sql.NullString
		if b.EndDate != nil {
			end = sql.NullString{String: b.EndDate.Format(model.DateLayout), Valid: true}
		}
		_, err := stmt.ExecContext(ctx, symbol, b.Low, b.High, b.StartDate.Format(model.DateLayout),
			end, string(b.Type), b.Volume, b.VolumeStrength, string(b.Sensitivity), b.RateOfChange)
		if err != nil {
			return fmt.Errorf("sqlite insert order block %s: %w", symbol, err)
		}
	}
	return nil
}

// SaveBreadth inserts or replaces breadth rows.
func (w *Writer) SaveBreadth(ctx context.Context, rows []model.Breadth) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO breadth (scope, date, bull_percent, ema5, ema10, ema20,
			donchian_upper, donchian_lower, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range rows {
		_, err := stmt.ExecContext(ctx, b.Scope, b.Date.Format(model.DateLayout), b.BullPercent,
			b.EMA5, b.EMA10, b.EMA20, b.DonchianUpper, b.DonchianLower, b.Total)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert breadth %s: %w", b.Scope, err)
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
