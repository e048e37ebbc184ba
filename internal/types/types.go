package types

import (
	"fmt"
	"math"
	"time"
)

const (
	LONG  Side = "LONG"
	SHORT Side = "SHORT"

	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Side is the direction of a position.
type Side string

// Direction is the bias of a detected structure or a confluence factor.
type Direction string

// Sign returns +1 for bullish and -1 for bearish.
func (d Direction) Sign() float64 {
	if d == Bearish {
		return -1
	}
	return 1
}

// Side maps a structure direction to the position side that trades with it.
func (d Direction) Side() Side {
	if d == Bearish {
		return SHORT
	}
	return LONG
}

// Sign returns +1 for LONG and -1 for SHORT.
func (s Side) Sign() float64 {
	if s == SHORT {
		return -1
	}
	return 1
}

// Direction maps a position side back to its directional bias.
func (s Side) Direction() Direction {
	if s == SHORT {
		return Bearish
	}
	return Bullish
}

type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Bullish reports whether the candle closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Bearish reports whether the candle closed below its open.
func (b Bar) Bearish() bool { return b.Close < b.Open }

// Body is the absolute distance between open and close.
func (b Bar) Body() float64 {
	if b.Close > b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Series is an immutable, time-ascending run of bars for one instrument and timeframe.
// The zero value is an empty series.
type Series struct {
	Instrument string
	Timeframe  string
	bars       []Bar
}

// NewSeries validates bars and wraps them in a Series. The input slice is copied.
func NewSeries(instrument, timeframe string, bars []Bar) (Series, error) {
	if len(bars) == 0 {
		return Series{}, &InsufficientDataError{Indicator: "series", Need: 1, Have: 0}
	}

	for i, b := range bars {
		if err := validateBar(i, b); err != nil {
			return Series{}, err
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return Series{}, &InvalidParameterError{
				Name:   fmt.Sprintf("bars[%d].Timestamp", i),
				Value:  float64(b.Timestamp.Unix()),
				Reason: "timestamps must be strictly increasing",
			}
		}
	}

	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return Series{Instrument: instrument, Timeframe: timeframe, bars: cp}, nil
}

// MustSeries is NewSeries that panics on invalid input. Intended for fixtures.
func MustSeries(instrument, timeframe string, bars []Bar) Series {
	s, err := NewSeries(instrument, timeframe, bars)
	if err != nil {
		panic(err)
	}
	return s
}

func validateBar(i int, b Bar) error {
	name := func(field string) string { return fmt.Sprintf("bars[%d].%s", i, field) }
	fields := []struct {
		field string
		value float64
	}{{"Open", b.Open}, {"High", b.High}, {"Low", b.Low}, {"Close", b.Close}, {"Volume", b.Volume}}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &InvalidParameterError{Name: name(f.field), Value: f.value, Reason: "must be a finite number"}
		}
	}

	switch {
	case b.Open <= 0:
		return &InvalidParameterError{Name: name("Open"), Value: b.Open, Reason: "price must be positive"}
	case b.High <= 0:
		return &InvalidParameterError{Name: name("High"), Value: b.High, Reason: "price must be positive"}
	case b.Low <= 0:
		return &InvalidParameterError{Name: name("Low"), Value: b.Low, Reason: "price must be positive"}
	case b.Close <= 0:
		return &InvalidParameterError{Name: name("Close"), Value: b.Close, Reason: "price must be positive"}
	case b.Volume < 0:
		return &InvalidParameterError{Name: name("Volume"), Value: b.Volume, Reason: "volume must not be negative"}
	case b.High < b.Low || b.High < b.Open || b.High < b.Close:
		return &InvalidParameterError{Name: name("High"), Value: b.High, Reason: "high must be the highest price of the bar"}
	case b.Low > b.Open || b.Low > b.Close:
		return &InvalidParameterError{Name: name("Low"), Value: b.Low, Reason: "low must be the lowest price of the bar"}
	}
	return nil
}

func (s Series) Len() int { return len(s.bars) }

// At returns the bar at index i. It panics when i is out of range, like a slice.
func (s Series) At(i int) Bar { return s.bars[i] }

// Last returns the most recent bar.
func (s Series) Last() Bar { return s.bars[len(s.bars)-1] }

// Bars returns a copy of the underlying bars.
func (s Series) Bars() []Bar {
	cp := make([]Bar, len(s.bars))
	copy(cp, s.bars)
	return cp
}

// Head returns the first n bars as a Series sharing storage with s.
// Used by the backtest engine to expose only the bars visible at a given index.
func (s Series) Head(n int) Series {
	if n > len(s.bars) {
		n = len(s.bars)
	}
	if n < 0 {
		n = 0
	}
	return Series{Instrument: s.Instrument, Timeframe: s.Timeframe, bars: s.bars[:n:n]}
}

// Tail returns the last n bars and the absolute index of the first returned bar.
func (s Series) Tail(n int) (Series, int) {
	if n >= len(s.bars) || n <= 0 {
		return s, 0
	}
	start := len(s.bars) - n
	return Series{Instrument: s.Instrument, Timeframe: s.Timeframe, bars: s.bars[start:]}, start
}

// Closes extracts close prices.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}
