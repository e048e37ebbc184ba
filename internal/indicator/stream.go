package indicator

import (
	"math"

	"github.com/jwtly10/smcplan/internal/logging"
	"github.com/jwtly10/smcplan/internal/types"
)

var (
	atrLog = logging.New("atr")
	emaLog = logging.New("ema")
	smaLog = logging.New("sma")
	rsiLog = logging.New("rsi")
)

// EMA - Exponential Moving Average, seeded with the SMA of the first period values
type EMA struct {
	period int
	alpha  float64
	seed   *SMA
	value  float64
	init   bool
}

func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
		seed:   NewSMA(period),
	}
}

func (e *EMA) Update(price float64) {
	if !e.init {
		e.seed.Update(price)
		if e.seed.Ready() {
			e.value = e.seed.Value()
			e.init = true
			emaLog.Debug("EMA initialized", "period", e.period, "price", price, "value", e.value)
		}
		return
	}

	oldValue := e.value
	e.value = (price * e.alpha) + (e.value * (1 - e.alpha))
	emaLog.Debug("EMA updated", "period", e.period, "price", price, "oldValue", oldValue, "newValue", e.value)
}

func (e *EMA) Value() float64 {
	return e.value
}

func (e *EMA) Ready() bool {
	return e.init
}

// SMA - Simple Moving Average over a fixed ring of values
type SMA struct {
	period int
	values []float64
	next   int
	count  int
	sum    float64
}

func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		values: make([]float64, period),
	}
}

func (s *SMA) Update(price float64) {
	s.sum -= s.values[s.next]
	s.values[s.next] = price
	s.sum += price
	s.next = (s.next + 1) % s.period
	if s.count < s.period {
		s.count++
	}
	smaLog.Debug("SMA updated", "period", s.period, "price", price, "value", s.Value(), "ready", s.Ready())
}

func (s *SMA) Value() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

func (s *SMA) Ready() bool {
	return s.count >= s.period
}

// window returns the buffered values, oldest first.
func (s *SMA) window() []float64 {
	out := make([]float64, 0, s.count)
	start := s.next - s.count
	if start < 0 {
		start += s.period
	}
	for i := 0; i < s.count; i++ {
		out = append(out, s.values[(start+i)%s.period])
	}
	return out
}

// WMA - Linearly Weighted Moving Average, newest value weighted by period
type WMA struct {
	sma *SMA
}

func NewWMA(period int) *WMA {
	return &WMA{sma: NewSMA(period)}
}

func (w *WMA) Update(price float64) { w.sma.Update(price) }

func (w *WMA) Value() float64 {
	vals := w.sma.window()
	var num, den float64
	for i, v := range vals {
		weight := float64(i + 1)
		num += v * weight
		den += weight
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func (w *WMA) Ready() bool { return w.sma.Ready() }

// Wilder implements Wilder's smoothing: the first value is the mean of the first
// period inputs, then avg = (prev*(period-1) + x) / period.
type Wilder struct {
	period int
	count  int
	sum    float64
	value  float64
}

func NewWilder(period int) *Wilder {
	return &Wilder{period: period}
}

func (w *Wilder) Update(x float64) {
	w.count++
	if w.count <= w.period {
		w.sum += x
		if w.count == w.period {
			w.value = w.sum / float64(w.period)
		}
		return
	}
	p := float64(w.period)
	w.value = (w.value*(p-1) + x) / p
}

func (w *Wilder) Value() float64 { return w.value }
func (w *Wilder) Ready() bool    { return w.count >= w.period }

// RSI - Relative Strength Index with Wilder smoothing of gains and losses
type RSI struct {
	period    int
	gain      *Wilder
	loss      *Wilder
	prevClose float64
	seen      bool
}

func NewRSI(period int) *RSI {
	return &RSI{period: period, gain: NewWilder(period), loss: NewWilder(period)}
}

func (r *RSI) Update(price float64) {
	if !r.seen {
		r.prevClose = price
		r.seen = true
		return
	}

	delta := price - r.prevClose
	r.prevClose = price
	r.gain.Update(math.Max(delta, 0))
	r.loss.Update(math.Max(-delta, 0))

	rsiLog.Debug("RSI updated", "period", r.period, "price", price, "delta", delta, "value", r.Value(), "ready", r.Ready())
}

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	avgGain, avgLoss := r.gain.Value(), r.loss.Value()
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func (r *RSI) Ready() bool { return r.gain.Ready() }

// MACD - difference of a fast and slow EMA, with an EMA signal line
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	macd   float64
}

func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: NewEMA(fast), slow: NewEMA(slow), signal: NewEMA(signal)}
}

func (m *MACD) Update(price float64) {
	m.fast.Update(price)
	m.slow.Update(price)
	if !m.slow.Ready() || !m.fast.Ready() {
		return
	}
	m.macd = m.fast.Value() - m.slow.Value()
	m.signal.Update(m.macd)
}

// Value returns the MACD line.
func (m *MACD) Value() float64 { return m.macd }

// Signal returns the signal line.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Histogram returns MACD minus signal.
func (m *MACD) Histogram() float64 { return m.macd - m.signal.Value() }

// LineReady reports whether the MACD line (but not necessarily the signal) is available.
func (m *MACD) LineReady() bool { return m.slow.Ready() && m.fast.Ready() }

func (m *MACD) Ready() bool { return m.signal.Ready() }

// ATR - Average True Range with Wilder smoothing
type ATR struct {
	period  int
	wilder  *Wilder
	prevBar *types.Bar
}

func NewATR(period int) *ATR {
	return &ATR{
		period: period,
		wilder: NewWilder(period),
	}
}

func (a *ATR) Update(bar types.Bar) {
	if a.prevBar == nil {
		a.prevBar = &bar
		atrLog.Debug("ATR first bar", "timestamp", bar.Timestamp, "close", bar.Close)
		return
	}

	tr := TrueRange(bar, a.prevBar.Close)
	atrLog.Debug("ATR calculation",
		"timestamp", bar.Timestamp,
		"trueRange", tr,
		"prevATR", a.wilder.Value())

	a.wilder.Update(tr)
	a.prevBar = &bar

	atrLog.Debug("ATR updated",
		"timestamp", bar.Timestamp,
		"value", a.Value(),
		"ready", a.Ready())
}

func (a *ATR) Value() float64 {
	return a.wilder.Value()
}

func (a *ATR) Ready() bool {
	return a.wilder.Ready()
}

// TrueRange is the max of:
// 1. Current High - Current Low
// 2. |Current High - Previous Close|
// 3. |Current Low - Previous Close|
func TrueRange(bar types.Bar, prevClose float64) float64 {
	tr1 := bar.High - bar.Low
	tr2 := math.Abs(bar.High - prevClose)
	tr3 := math.Abs(bar.Low - prevClose)
	return math.Max(tr1, math.Max(tr2, tr3))
}
