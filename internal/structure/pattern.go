package structure

import (
	"math"

	"github.com/jwtly10/smcplan/internal/types"
)

// engulfing finds candles whose body fully covers the opposite-colored body before them.
func (d *Detector) engulfing(v view) []Pattern {
	var out []Pattern
	for i := 1; i < v.bars.Len(); i++ {
		prev, cur := v.bars.At(i-1), v.bars.At(i)
		if cur.Body() <= prev.Body() {
			continue
		}

		var dir types.Direction
		switch {
		case prev.Bearish() && cur.Bullish() && cur.Open <= prev.Close && cur.Close >= prev.Open:
			dir = types.Bullish
		case prev.Bullish() && cur.Bearish() && cur.Open >= prev.Close && cur.Close <= prev.Open:
			dir = types.Bearish
		default:
			continue
		}

		out = append(out, Pattern{
			Zone: Zone{
				Dir:   dir,
				Low:   math.Min(prev.Low, cur.Low),
				High:  math.Max(prev.High, cur.High),
				Start: v.abs(i - 1),
				End:   v.abs(i),
				Time:  cur.Timestamp,
			},
			Name: Engulfing,
		})
	}
	return out
}

// SwingPoint is a bar whose high (or low) exceeds Strength bars on either side.
type SwingPoint struct {
	Index int
	Price float64
	High  bool
}

// Trend summarises swing structure: higher highs and higher lows are bullish,
// lower highs and lower lows bearish. Direction is empty when neither holds.
type Trend struct {
	Direction types.Direction
	Highs     []SwingPoint
	Lows      []SwingPoint
}

// MarketStructure finds swing points confirmed by strength bars on each side and
// classifies the last two swing highs and lows.
func MarketStructure(s types.Series, strength int) Trend {
	if strength < 1 {
		strength = 1
	}

	var t Trend
	for i := strength; i < s.Len()-strength; i++ {
		bar := s.At(i)
		isHigh, isLow := true, true
		for k := 1; k <= strength; k++ {
			l, r := s.At(i-k), s.At(i+k)
			if bar.High <= l.High || bar.High <= r.High {
				isHigh = false
			}
			if bar.Low >= l.Low || bar.Low >= r.Low {
				isLow = false
			}
		}
		if isHigh {
			t.Highs = append(t.Highs, SwingPoint{Index: i, Price: bar.High, High: true})
		}
		if isLow {
			t.Lows = append(t.Lows, SwingPoint{Index: i, Price: bar.Low})
		}
	}

	if len(t.Highs) < 2 || len(t.Lows) < 2 {
		return t
	}
	h1, h2 := t.Highs[len(t.Highs)-2], t.Highs[len(t.Highs)-1]
	l1, l2 := t.Lows[len(t.Lows)-2], t.Lows[len(t.Lows)-1]
	switch {
	case h2.Price > h1.Price && l2.Price > l1.Price:
		t.Direction = types.Bullish
	case h2.Price < h1.Price && l2.Price < l1.Price:
		t.Direction = types.Bearish
	}
	return t
}
