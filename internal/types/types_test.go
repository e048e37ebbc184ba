package types

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TimeFromString(timeStr string) (t time.Time) {
	t, _ = time.Parse(time.RFC3339, timeStr)
	return
}

func TestNewSeries_ValidBars(t *testing.T) {
	bars := []Bar{
		{Timestamp: TimeFromString("2024-01-01T00:00:00Z"), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{Timestamp: TimeFromString("2024-01-01T00:15:00Z"), Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 12},
	}

	s, err := NewSeries("NAS100_USD", "M15", bars)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 101.0, s.Last().Close)

	// Mutating the input must not leak into the series
	bars[0].Close = 1
	assert.Equal(t, 100.5, s.At(0).Close, "series should own a copy of its bars")
}

func TestNewSeries_RejectsEmpty(t *testing.T) {
	_, err := NewSeries("X", "D", nil)

	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 1, insufficient.Need)
}

func TestNewSeries_RejectsDuplicateTimestamps(t *testing.T) {
	ts := TimeFromString("2024-01-01T00:00:00Z")
	bars := []Bar{
		{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100},
		{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100},
	}

	_, err := NewSeries("X", "D", bars)

	var invalid *InvalidParameterError
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, invalid.Reason, "strictly increasing")
}

func TestNewSeries_RejectsBadPrices(t *testing.T) {
	ts := TimeFromString("2024-01-01T00:00:00Z")

	cases := map[string]Bar{
		"zero open":    {Timestamp: ts, Open: 0, High: 1, Low: 1, Close: 1},
		"negative vol": {Timestamp: ts, Open: 1, High: 1, Low: 1, Close: 1, Volume: -1},
		"high too low": {Timestamp: ts, Open: 2, High: 1.5, Low: 1, Close: 1.2},
		"low too high": {Timestamp: ts, Open: 2, High: 3, Low: 2.5, Close: 2.8},
		"nan close":    {Timestamp: ts, Open: 1, High: 1, Low: 1, Close: math.NaN()},
		"nan volume":   {Timestamp: ts, Open: 1, High: 1, Low: 1, Close: 1, Volume: math.NaN()},
		"inf volume":   {Timestamp: ts, Open: 1, High: 1, Low: 1, Close: 1, Volume: math.Inf(1)},
		"inf high":     {Timestamp: ts, Open: 1, High: math.Inf(1), Low: 1, Close: 1},
	}

	for name, bar := range cases {
		_, err := NewSeries("X", "D", []Bar{bar})
		var invalid *InvalidParameterError
		assert.True(t, errors.As(err, &invalid), "%s should be rejected", name)
	}
}

func TestSeries_HeadAndTail(t *testing.T) {
	var bars []Bar
	start := TimeFromString("2024-01-01T00:00:00Z")
	for i := 0; i < 10; i++ {
		p := 100 + float64(i)
		bars = append(bars, Bar{Timestamp: start.Add(time.Duration(i) * time.Hour), Open: p, High: p + 1, Low: p - 1, Close: p})
	}
	s := MustSeries("X", "H1", bars)

	head := s.Head(3)
	assert.Equal(t, 3, head.Len())
	assert.Equal(t, 102.0, head.Last().Close)

	tail, offset := s.Tail(4)
	assert.Equal(t, 4, tail.Len())
	assert.Equal(t, 6, offset)
	assert.Equal(t, 106.0, tail.At(0).Close)

	whole, offset := s.Tail(50)
	assert.Equal(t, 10, whole.Len())
	assert.Equal(t, 0, offset)
}

func TestDirectionAndSide(t *testing.T) {
	assert.Equal(t, LONG, Bullish.Side())
	assert.Equal(t, SHORT, Bearish.Side())
	assert.Equal(t, -1.0, SHORT.Sign())
	assert.Equal(t, Bearish, SHORT.Direction())
}
