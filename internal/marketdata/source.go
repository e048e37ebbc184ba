// Package marketdata defines how the analysis core receives price history.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwtly10/smcplan/internal/types"
)

var timeframes = map[string]time.Duration{
	"M1":  time.Minute,
	"M5":  5 * time.Minute,
	"M15": 15 * time.Minute,
	"M30": 30 * time.Minute,
	"H1":  time.Hour,
	"H4":  4 * time.Hour,
	"H6":  6 * time.Hour,
	"D":   24 * time.Hour,
	"W":   7 * 24 * time.Hour,
}

// Period returns the bar duration of a timeframe code such as "M15" or "D".
func Period(timeframe string) (time.Duration, error) {
	d, ok := timeframes[timeframe]
	if !ok {
		return 0, fmt.Errorf("unknown timeframe %q", timeframe)
	}
	return d, nil
}

type Request struct {
	Instrument string
	Timeframe  string
	From       time.Time
	To         time.Time
}

// Lookback builds a request for the count bars ending at to.
func Lookback(instrument, timeframe string, count int, to time.Time) (Request, error) {
	period, err := Period(timeframe)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Instrument: instrument,
		Timeframe:  timeframe,
		From:       to.Add(-period * time.Duration(count)),
		To:         to,
	}, nil
}

// Source returns a validated Series for a request.
type Source interface {
	Series(ctx context.Context, req Request) (types.Series, error)
}

// Store persists bars so repeated analyses do not refetch history.
type Store interface {
	LoadBars(ctx context.Context, req Request) ([]types.Bar, error)
	SaveBars(ctx context.Context, instrument, timeframe string, bars []types.Bar) error
}

// Cached serves requests from Store when it covers the range, otherwise it
// fetches from Upstream and saves the result.
type Cached struct {
	Upstream Source
	Store    Store
}

func (c *Cached) Series(ctx context.Context, req Request) (types.Series, error) {
	period, err := Period(req.Timeframe)
	if err != nil {
		return types.Series{}, err
	}

	bars, err := c.Store.LoadBars(ctx, req)
	if err != nil {
		return types.Series{}, fmt.Errorf("load cached bars: %w", err)
	}
	if covers(bars, req, period) {
		slog.Debug("Serving bars from cache", "instrument", req.Instrument, "timeframe", req.Timeframe, "count", len(bars))
		return types.NewSeries(req.Instrument, req.Timeframe, bars)
	}

	s, err := c.Upstream.Series(ctx, req)
	if err != nil {
		return types.Series{}, err
	}
	if err := c.Store.SaveBars(ctx, req.Instrument, req.Timeframe, s.Bars()); err != nil {
		slog.Warn("Failed to cache bars", "instrument", req.Instrument, "error", err)
	}
	return s, nil
}

// covers is a cheap completeness check: the cached bars reach both ends of the
// range within one period.
func covers(bars []types.Bar, req Request, period time.Duration) bool {
	if len(bars) == 0 {
		return false
	}
	first, last := bars[0].Timestamp, bars[len(bars)-1].Timestamp
	return !first.After(req.From.Add(period)) && !last.Before(req.To.Add(-period))
}
