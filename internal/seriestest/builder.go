// Package seriestest builds bar fixtures for tests.
package seriestest

import (
	"time"

	"github.com/jwtly10/smcplan/internal/types"
)

// Builder appends bars one period apart starting at Start.
type Builder struct {
	Start  time.Time
	Period time.Duration
	bars   []types.Bar
}

func NewBuilder(start time.Time, period time.Duration) *Builder {
	return &Builder{Start: start, Period: period}
}

// Daily returns a builder for daily bars starting on 2024-01-01 UTC.
func Daily() *Builder {
	return NewBuilder(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 24*time.Hour)
}

// Bar appends an OHLC bar with a fixed volume of 1000.
func (b *Builder) Bar(open, high, low, close float64) *Builder {
	return b.BarV(open, high, low, close, 1000)
}

// BarV appends an OHLCV bar.
func (b *Builder) BarV(open, high, low, close, volume float64) *Builder {
	b.bars = append(b.bars, types.Bar{
		Timestamp: b.Start.Add(time.Duration(len(b.bars)) * b.Period),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	})
	return b
}

// Closes appends one bar per close price. Each bar opens at the previous close
// and its wicks extend by pad beyond the body.
func (b *Builder) Closes(pad float64, closes ...float64) *Builder {
	for _, c := range closes {
		open := c
		if n := len(b.bars); n > 0 {
			open = b.bars[n-1].Close
		}
		high, low := open, c
		if c > open {
			high, low = c, open
		}
		b.Bar(open, high+pad, low-pad, c)
	}
	return b
}

// Len returns the number of bars appended so far.
func (b *Builder) Len() int { return len(b.bars) }

// Bars returns a copy of the built bars.
func (b *Builder) Bars() []types.Bar {
	cp := make([]types.Bar, len(b.bars))
	copy(cp, b.bars)
	return cp
}

// Series validates and returns the built series.
func (b *Builder) Series() types.Series {
	return types.MustSeries("TEST", "D", b.bars)
}
