package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"trading-backtest/internal/model"
)

// Journal persists backtest runs and their trades for later analysis.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// RunRecord is one row of backtest_runs.
type RunRecord struct {
	RunID            string        `json:"run_id"`
	Strategy         string        `json:"strategy"`
	Mode             string        `json:"mode"`
	Symbols          int           `json:"symbols"`
	After            time.Time     `json:"after"`
	Before           time.Time     `json:"before"`
	MaxPositions     int           `json:"max_positions"`
	CooldownDays     int           `json:"cooldown_days"`
	EntryDelayDays   int           `json:"entry_delay_days"`
	Trades           int           `json:"trades"`
	MissedTrades     int           `json:"missed_trades"`
	FailedStocks     int           `json:"failed_stocks"`
	WinRate          float64       `json:"win_rate"`
	TotalProfit      float64       `json:"total_profit"`
	AvgProfitPercent float64       `json:"avg_profit_percent"`
	Duration         time.Duration `json:"duration"`
}

// TradeRecord represents a row from the backtest_trades table.
type TradeRecord struct {
	ID            int64   `json:"id"`
	RunID         string  `json:"run_id"`
	Symbol        string  `json:"symbol"`
	Underlying    string  `json:"underlying"`
	Sector        string  `json:"sector"`
	EntryDate     string  `json:"entry_date"`
	ExitDate      string  `json:"exit_date"`
	EntryPrice    float64 `json:"entry_price"`
	ExitPrice     float64 `json:"exit_price"`
	Profit        float64 `json:"profit"`
	ProfitPercent float64 `json:"profit_percent"`
	TradingDays   int     `json:"trading_days"`
	ExitReason    string  `json:"exit_reason"`
	Missed        bool    `json:"missed"`
}

// NewJournal opens (or creates) the journal tables in the database at dbPath.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := open(dbPath, 1)
	if err != nil {
		return nil, err
	}
	log.Printf("[journal] opened backtest journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// SaveRun writes the run row and one row per trade and missed trade in a
// single transaction.
func (j *Journal) SaveRun(ctx context.Context, run RunRecord, trades, missed []model.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (run_id, strategy, mode, symbols, after_date, before_date,
			max_positions, cooldown_days, entry_delay_days, trades, missed_trades, failed_stocks,
			win_rate, total_profit, avg_profit_percent, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Strategy, run.Mode, run.Symbols,
		run.After.Format(model.DateLayout), run.Before.Format(model.DateLayout),
		run.MaxPositions, run.CooldownDays, run.EntryDelayDays,
		run.Trades, run.MissedTrades, run.FailedStocks,
		run.WinRate, run.TotalProfit, run.AvgProfitPercent, run.Duration.Milliseconds())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("journal insert run %s: %w", run.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades (run_id, symbol, underlying, sector, entry_date, exit_date,
			entry_price, exit_price, profit, profit_percent, trading_days, exit_reason, missed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	insert := func(t *model.Trade, isMissed bool) error {
		exit := t.ExitQuote()
		_, err := stmt.ExecContext(ctx, run.RunID, t.Symbol, t.UnderlyingSymbol, t.Sector,
			t.StartDate.Format(model.DateLayout), exit.Date.Format(model.DateLayout),
			t.EntryQuote.Close, t.EntryQuote.Close+t.Profit, t.Profit, t.ProfitPercent(),
			t.TradingDays(), t.ExitReason, isMissed)
		return err
	}
	for i := range trades {
		if err := insert(&trades[i], false); err != nil {
			tx.Rollback()
			return fmt.Errorf("journal insert trade: %w", err)
		}
	}
	for i := range missed {
		if err := insert(&missed[i], true); err != nil {
			tx.Rollback()
			return fmt.Errorf("journal insert missed trade: %w", err)
		}
	}
	return tx.Commit()
}

// GetTrades returns a run's trades and missed trades in entry order.
func (j *Journal) GetTrades(ctx context.Context, runID string) ([]TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, symbol, underlying, sector, entry_date, exit_date, entry_price, exit_price,
			profit, profit_percent, trading_days, exit_reason, missed
		FROM backtest_trades WHERE run_id = ? ORDER BY entry_date, symbol, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.RunID, &t.Symbol, &t.Underlying, &t.Sector, &t.EntryDate,
			&t.ExitDate, &t.EntryPrice, &t.ExitPrice, &t.Profit, &t.ProfitPercent, &t.TradingDays,
			&t.ExitReason, &t.Missed); err != nil {
			return nil, fmt.Errorf("journal scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// RecentRuns returns the last limit runs, newest first.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, strategy, mode, symbols, after_date, before_date, max_positions, cooldown_days,
			entry_delay_days, trades, missed_trades, failed_stocks, win_rate, total_profit,
			avg_profit_percent, duration_ms
		FROM backtest_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var after, before string
		var ms int64
		if err := rows.Scan(&r.RunID, &r.Strategy, &r.Mode, &r.Symbols, &after, &before,
			&r.MaxPositions, &r.CooldownDays, &r.EntryDelayDays, &r.Trades, &r.MissedTrades,
			&r.FailedStocks, &r.WinRate, &r.TotalProfit, &r.AvgProfitPercent, &ms); err != nil {
			return nil, fmt.Errorf("journal scan run: %w", err)
		}
		r.After, _ = model.ParseDay(after)
		r.Before, _ = model.ParseDay(before)
		r.Duration = time.Duration(ms) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
