package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jwtly10/smcplan/internal/account"
	"github.com/jwtly10/smcplan/internal/backtest"
	"github.com/jwtly10/smcplan/internal/performance"
	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/jwtly10/smcplan/internal/types"
)

// SaveReport stores a backtest run and its trades under the report's RunID.
func (s *Store) SaveReport(ctx context.Context, r *backtest.Report) error {
	if r.RunID == "" {
		return fmt.Errorf("save report: empty run id")
	}
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO backtest_runs (run_id, created_at, instrument, timeframe, bars,
				initial_balance, final_balance, total_trades, win_rate, max_drawdown, summary_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, time.Now().Unix(), r.Instrument, r.Timeframe, r.Bars,
			r.InitialBalance, r.FinalBalance, r.Summary.TotalTrades, nullable(r.Summary.WinRate),
			r.Summary.MaxDrawdown, string(summary)); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO backtest_trades (run_id, trade_id, side, entry_index, exit_index, entry_time,
				exit_time, entry_price, exit_price, size, stop_loss, take_profit, risk_amount, pnl,
				r_multiple, exit_reason, forced)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare trade insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range r.Trades {
			if _, err := stmt.ExecContext(ctx, r.RunID, t.ID, string(t.Side), t.EntryIndex, t.ExitIndex,
				t.EntryTime.Unix(), t.ExitTime.Unix(), t.EntryPrice, t.ExitPrice, t.Size, t.StopLoss,
				t.TakeProfit, t.RiskAmount, t.PnL, t.RMultiple, string(t.ExitReason), t.Forced); err != nil {
				return fmt.Errorf("insert trade %d: %w", t.ID, err)
			}
		}
		return nil
	})
}

// nullable maps an undefined or infinite metric to SQL NULL.
func nullable(m performance.Metric) any {
	if !m.Defined || m.Infinite {
		return nil
	}
	return m.Value
}

// LoadTrades returns the trades of a stored run in id order.
func (s *Store) LoadTrades(ctx context.Context, runID string) ([]backtest.SimulatedTrade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trade_id, side, entry_index, exit_index, entry_time, exit_time, entry_price, exit_price,
			size, stop_loss, take_profit, risk_amount, pnl, r_multiple, exit_reason, forced
		 FROM backtest_trades WHERE run_id = ? ORDER BY trade_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []backtest.SimulatedTrade
	for rows.Next() {
		var (
			t                   account.Trade
			side, reason        string
			entryTime, exitTime int64
		)
		if err := rows.Scan(&t.ID, &side, &t.EntryIndex, &t.ExitIndex, &entryTime, &exitTime,
			&t.EntryPrice, &t.ExitPrice, &t.Size, &t.StopLoss, &t.TakeProfit, &t.RiskAmount,
			&t.PnL, &t.RMultiple, &reason, &t.Forced); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = types.Side(side)
		t.ExitReason = account.ExitReason(reason)
		t.EntryTime = time.Unix(entryTime, 0).UTC()
		t.ExitTime = time.Unix(exitTime, 0).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// JournalEntry is a closed live trade recorded by the user.
type JournalEntry struct {
	Instrument string
	Side       types.Side
	ExitTime   time.Time
	PnL        float64
	Note       string
}

func (s *Store) RecordTrade(ctx context.Context, e JournalEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO journal (instrument, side, exit_time, pnl, note) VALUES (?, ?, ?, ?, ?)`,
			e.Instrument, string(e.Side), e.ExitTime.Unix(), e.PnL, e.Note)
		if err != nil {
			return fmt.Errorf("insert journal entry: %w", err)
		}
		return nil
	})
}

// Exposure sums the journal's net realized loss for the UTC day and ISO week
// containing now. Open positions are not journaled, so the caller supplies them.
func (s *Store) Exposure(ctx context.Context, now time.Time, openPositions int) (risk.Exposure, error) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekday := (int(day.Weekday()) + 6) % 7 // Monday = 0
	week := day.AddDate(0, 0, -weekday)

	var daily, weekly sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT
			SUM(CASE WHEN exit_time >= ? THEN pnl ELSE 0 END),
			SUM(pnl)
		 FROM journal WHERE exit_time >= ? AND exit_time <= ?`,
		day.Unix(), week.Unix(), now.Unix()).Scan(&daily, &weekly)
	if err != nil {
		return risk.Exposure{}, fmt.Errorf("query exposure: %w", err)
	}

	return risk.Exposure{
		DailyLoss:     math.Max(0, -daily.Float64),
		WeeklyLoss:    math.Max(0, -weekly.Float64),
		OpenPositions: openPositions,
	}, nil
}
