package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jwtly10/smcplan/internal/marketdata"
	"github.com/jwtly10/smcplan/internal/types"
)

// LoadBars implements marketdata.Store. Bars are returned ascending.
func (s *Store) LoadBars(ctx context.Context, req marketdata.Request) ([]types.Bar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, open, high, low, close, volume FROM candles
		 WHERE instrument = ? AND timeframe = ? AND ts >= ? AND ts <= ?
		 ORDER BY ts ASC`,
		req.Instrument, req.Timeframe, req.From.Unix(), req.To.Unix())
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var bars []types.Bar
	for rows.Next() {
		var (
			ts     int64
			b      types.Bar
			volume sql.NullFloat64
		)
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		b.Timestamp = time.Unix(ts, 0).UTC()
		b.Volume = volume.Float64
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// SaveBars implements marketdata.Store. Existing bars at the same timestamp are replaced.
func (s *Store) SaveBars(ctx context.Context, instrument, timeframe string, bars []types.Bar) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO candles (instrument, timeframe, ts, open, high, low, close, volume)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare candle insert: %w", err)
		}
		defer stmt.Close()

		for _, b := range bars {
			if _, err := stmt.ExecContext(ctx, instrument, timeframe, b.Timestamp.Unix(),
				b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
				return fmt.Errorf("insert candle %s: %w", b.Timestamp, err)
			}
		}
		return nil
	})
}
