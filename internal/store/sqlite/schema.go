package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// maxParams keeps IN lists below SQLite's host parameter limit.
const maxParams = 500

func open(path string, conns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stocks (
			symbol TEXT PRIMARY KEY,
			sector TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS quotes (
			symbol         TEXT    NOT NULL,
			date           TEXT    NOT NULL,
			open           REAL    NOT NULL,
			high           REAL    NOT NULL,
			low            REAL    NOT NULL,
			close          REAL    NOT NULL,
			volume         INTEGER NOT NULL DEFAULT 0,
			ema5           REAL    NOT NULL DEFAULT 0,
			ema10          REAL    NOT NULL DEFAULT 0,
			ema20          REAL    NOT NULL DEFAULT 0,
			ema50          REAL    NOT NULL DEFAULT 0,
			ema100         REAL    NOT NULL DEFAULT 0,
			atr            REAL    NOT NULL DEFAULT 0,
			adx            REAL    NOT NULL DEFAULT 0,
			donchian_upper REAL    NOT NULL DEFAULT 0,
			donchian_lower REAL    NOT NULL DEFAULT 0,
			trend          TEXT    NOT NULL DEFAULT '',
			PRIMARY KEY (symbol, date)
		);

		CREATE TABLE IF NOT EXISTS order_blocks (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol          TEXT    NOT NULL,
			low             REAL    NOT NULL,
			high            REAL    NOT NULL,
			start_date      TEXT    NOT NULL,
			end_date        TEXT,
			type            TEXT    NOT NULL,
			volume          INTEGER NOT NULL DEFAULT 0,
			volume_strength REAL    NOT NULL DEFAULT 0,
			sensitivity     TEXT    NOT NULL,
			rate_of_change  REAL    NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_order_blocks_symbol ON order_blocks(symbol);

		CREATE TABLE IF NOT EXISTS breadth (
			scope          TEXT    NOT NULL,
			date           TEXT    NOT NULL,
			bull_percent   REAL    NOT NULL,
			ema5           REAL    NOT NULL DEFAULT 0,
			ema10          REAL    NOT NULL DEFAULT 0,
			ema20          REAL    NOT NULL DEFAULT 0,
			donchian_upper REAL    NOT NULL DEFAULT 0,
			donchian_lower REAL    NOT NULL DEFAULT 0,
			total          INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (scope, date)
		);

		CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id             TEXT PRIMARY KEY,
			strategy           TEXT    NOT NULL,
			mode               TEXT    NOT NULL,
			symbols            INTEGER NOT NULL,
			after_date         TEXT    NOT NULL,
			before_date        TEXT    NOT NULL,
			max_positions      INTEGER NOT NULL DEFAULT 0,
			cooldown_days      INTEGER NOT NULL DEFAULT 0,
			entry_delay_days   INTEGER NOT NULL DEFAULT 0,
			trades             INTEGER NOT NULL,
			missed_trades      INTEGER NOT NULL,
			failed_stocks      INTEGER NOT NULL DEFAULT 0,
			win_rate           REAL    NOT NULL DEFAULT 0,
			total_profit       REAL    NOT NULL DEFAULT 0,
			avg_profit_percent REAL    NOT NULL DEFAULT 0,
			duration_ms        INTEGER NOT NULL DEFAULT 0,
			created_at         DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS backtest_trades (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT    NOT NULL,
			symbol         TEXT    NOT NULL,
			underlying     TEXT    NOT NULL DEFAULT '',
			sector         TEXT    NOT NULL DEFAULT '',
			entry_date     TEXT    NOT NULL,
			exit_date      TEXT    NOT NULL,
			entry_price    REAL    NOT NULL,
			exit_price     REAL    NOT NULL,
			profit         REAL    NOT NULL,
			profit_percent REAL    NOT NULL,
			trading_days   INTEGER NOT NULL,
			exit_reason    TEXT    NOT NULL,
			missed         INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_backtest_trades_run ON backtest_trades(run_id);
	`)
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
