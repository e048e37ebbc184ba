// Package indicator computes trend, momentum, volatility and volume indicators.
//
// Every calculator is causal: the value at bar i is built only from bars 0..i.
// The batch functions below replay a Series through the streaming calculators
// and return a Line aligned to the series by index.
package indicator

import (
	"math"

	"github.com/jwtly10/smcplan/internal/types"
)

// Line holds indicator output for bars Offset..Offset+len(Values)-1 of the input series.
type Line struct {
	Offset int
	Values []float64
}

// At returns the value for series index i, or false during warm-up or past the end.
func (l Line) At(i int) (float64, bool) {
	k := i - l.Offset
	if k < 0 || k >= len(l.Values) {
		return 0, false
	}
	return l.Values[k], true
}

// Last returns the value for the most recent bar.
func (l Line) Last() float64 {
	if len(l.Values) == 0 {
		return math.NaN()
	}
	return l.Values[len(l.Values)-1]
}

// Len is the number of computed values.
func (l Line) Len() int { return len(l.Values) }

type updater interface {
	Update(float64)
	Value() float64
	Ready() bool
}

func needBars(name string, s types.Series, need int) error {
	if s.Len() < need {
		return &types.InsufficientDataError{Indicator: name, Need: need, Have: s.Len()}
	}
	return nil
}

func replayCloses(s types.Series, ind updater) Line {
	line := Line{Offset: -1}
	for i := 0; i < s.Len(); i++ {
		ind.Update(s.At(i).Close)
		if ind.Ready() {
			if line.Offset < 0 {
				line.Offset = i
				line.Values = make([]float64, 0, s.Len()-i)
			}
			line.Values = append(line.Values, ind.Value())
		}
	}
	return line
}

// SMALine computes the simple moving average of closes.
func SMALine(s types.Series, period int) (Line, error) {
	if err := types.CheckPeriod("SMA", period); err != nil {
		return Line{}, err
	}
	if err := needBars("SMA", s, period); err != nil {
		return Line{}, err
	}
	return replayCloses(s, NewSMA(period)), nil
}

// EMALine computes the exponential moving average of closes.
func EMALine(s types.Series, period int) (Line, error) {
	if err := types.CheckPeriod("EMA", period); err != nil {
		return Line{}, err
	}
	if err := needBars("EMA", s, period); err != nil {
		return Line{}, err
	}
	return replayCloses(s, NewEMA(period)), nil
}

// WMALine computes the linearly weighted moving average of closes.
func WMALine(s types.Series, period int) (Line, error) {
	if err := types.CheckPeriod("WMA", period); err != nil {
		return Line{}, err
	}
	if err := needBars("WMA", s, period); err != nil {
		return Line{}, err
	}
	return replayCloses(s, NewWMA(period)), nil
}

// RSILine computes the Wilder RSI of closes. Needs period+1 bars.
func RSILine(s types.Series, period int) (Line, error) {
	if err := types.CheckPeriod("RSI", period); err != nil {
		return Line{}, err
	}
	if err := needBars("RSI", s, period+1); err != nil {
		return Line{}, err
	}
	return replayCloses(s, NewRSI(period)), nil
}

// MACDLines groups the three MACD outputs. MACD starts earlier than Signal
// and Histogram, which share an offset.
type MACDLines struct {
	MACD      Line
	Signal    Line
	Histogram Line
}

// MACDLine computes the MACD line, its signal EMA and the histogram.
// Needs slow+signal-1 bars.
func MACDLine(s types.Series, fast, slow, signal int) (MACDLines, error) {
	periods := []struct {
		name   string
		period int
	}{{"MACD.fast", fast}, {"MACD.slow", slow}, {"MACD.signal", signal}}
	for _, p := range periods {
		if err := types.CheckPeriod(p.name, p.period); err != nil {
			return MACDLines{}, err
		}
	}
	if fast >= slow {
		return MACDLines{}, &types.InvalidParameterError{Name: "MACD.fast", Value: float64(fast), Reason: "fast period must be shorter than slow period"}
	}
	if err := needBars("MACD", s, slow+signal-1); err != nil {
		return MACDLines{}, err
	}

	m := NewMACD(fast, slow, signal)
	out := MACDLines{MACD: Line{Offset: slow - 1}, Signal: Line{Offset: slow + signal - 2}, Histogram: Line{Offset: slow + signal - 2}}
	for i := 0; i < s.Len(); i++ {
		m.Update(s.At(i).Close)
		if m.LineReady() {
			out.MACD.Values = append(out.MACD.Values, m.Value())
		}
		if m.Ready() {
			out.Signal.Values = append(out.Signal.Values, m.Signal())
			out.Histogram.Values = append(out.Histogram.Values, m.Histogram())
		}
	}
	return out, nil
}

// Bands holds Bollinger band output, all sharing one offset.
type Bands struct {
	Upper  Line
	Middle Line
	Lower  Line
}

// Bollinger computes SMA(period) +/- k population standard deviations.
func Bollinger(s types.Series, period int, k float64) (Bands, error) {
	if err := types.CheckPeriod("Bollinger", period); err != nil {
		return Bands{}, err
	}
	if k <= 0 {
		return Bands{}, &types.InvalidParameterError{Name: "Bollinger.k", Value: k, Reason: "band width must be positive"}
	}
	if err := needBars("Bollinger", s, period); err != nil {
		return Bands{}, err
	}

	sma := NewSMA(period)
	off := period - 1
	out := Bands{Upper: Line{Offset: off}, Middle: Line{Offset: off}, Lower: Line{Offset: off}}
	for i := 0; i < s.Len(); i++ {
		sma.Update(s.At(i).Close)
		if !sma.Ready() {
			continue
		}
		mean := sma.Value()
		var variance float64
		for _, v := range sma.window() {
			variance += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(variance / float64(period))
		out.Upper.Values = append(out.Upper.Values, mean+k*sd)
		out.Middle.Values = append(out.Middle.Values, mean)
		out.Lower.Values = append(out.Lower.Values, mean-k*sd)
	}
	return out, nil
}

// ATRLine computes the Wilder average true range. Needs period+1 bars.
func ATRLine(s types.Series, period int) (Line, error) {
	if err := types.CheckPeriod("ATR", period); err != nil {
		return Line{}, err
	}
	if err := needBars("ATR", s, period+1); err != nil {
		return Line{}, err
	}

	atr := NewATR(period)
	line := Line{Offset: period, Values: make([]float64, 0, s.Len()-period)}
	for i := 0; i < s.Len(); i++ {
		atr.Update(s.At(i))
		if atr.Ready() {
			line.Values = append(line.Values, atr.Value())
		}
	}
	return line, nil
}

// OBV computes on-balance volume starting from zero at the first bar.
func OBV(s types.Series) (Line, error) {
	if err := needBars("OBV", s, 1); err != nil {
		return Line{}, err
	}

	line := Line{Values: make([]float64, s.Len())}
	for i := 1; i < s.Len(); i++ {
		prev, cur := s.At(i-1), s.At(i)
		obv := line.Values[i-1]
		switch {
		case cur.Close > prev.Close:
			obv += cur.Volume
		case cur.Close < prev.Close:
			obv -= cur.Volume
		}
		line.Values[i] = obv
	}
	return line, nil
}
