// Package sqlite persists candles, backtest runs and the live trade journal.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// Store is a single SQLite database shared by the candle cache and the journals.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("SQLite store opened", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			instrument TEXT    NOT NULL,
			timeframe  TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL,
			PRIMARY KEY (instrument, timeframe, ts)
		)`,

		`CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id          TEXT PRIMARY KEY,
			created_at      INTEGER NOT NULL,
			instrument      TEXT,
			timeframe       TEXT,
			bars            INTEGER,
			initial_balance REAL,
			final_balance   REAL,
			total_trades    INTEGER,
			win_rate        REAL,
			max_drawdown    REAL,
			summary_json    TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS backtest_trades (
			run_id      TEXT    NOT NULL,
			trade_id    INTEGER NOT NULL,
			side        TEXT,
			entry_index INTEGER,
			exit_index  INTEGER,
			entry_time  INTEGER,
			exit_time   INTEGER,
			entry_price REAL,
			exit_price  REAL,
			size        REAL,
			stop_loss   REAL,
			take_profit REAL,
			risk_amount REAL,
			pnl         REAL,
			r_multiple  REAL,
			exit_reason TEXT,
			forced      INTEGER,
			PRIMARY KEY (run_id, trade_id)
		)`,

		`CREATE TABLE IF NOT EXISTS journal (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			instrument TEXT    NOT NULL,
			side       TEXT,
			exit_time  INTEGER NOT NULL,
			pnl        REAL    NOT NULL,
			note       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_exit ON journal(exit_time)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
