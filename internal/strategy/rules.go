package strategy

import (
	"math"

	"github.com/jwtly10/smcplan/internal/account"
	"github.com/jwtly10/smcplan/internal/backtest"
	"github.com/jwtly10/smcplan/internal/indicator"
	"github.com/jwtly10/smcplan/internal/logging"
	"github.com/jwtly10/smcplan/internal/planner"
	"github.com/jwtly10/smcplan/internal/types"
)

var ruleLog = logging.New("strategy")

// StructureEntry enters whenever the analyzer produces a trade setup, using its
// stop and the take profit at TargetIndex.
type StructureEntry struct {
	Analyzer *planner.Analyzer
	// Balance is a nominal account used for composition; the engine re-sizes every fill.
	Balance float64
	// Lookback bounds how much history each analysis sees. Zero means all of it.
	Lookback    int
	TargetIndex int
}

func (r StructureEntry) Entry(visible types.Series) (backtest.Signal, bool) {
	if visible.Len() < r.Analyzer.MinBars() {
		return backtest.Signal{}, false
	}
	if r.Lookback > 0 {
		visible, _ = visible.Tail(r.Lookback)
	}

	balance := r.Balance
	if balance <= 0 {
		balance = 10000
	}
	analysis, err := r.Analyzer.Analyze(visible, planner.Account{Balance: balance})
	if err != nil {
		ruleLog.Debug("Analysis failed", "bars", visible.Len(), "error", err)
		return backtest.Signal{}, false
	}
	setup := analysis.Result.Setup
	if setup == nil {
		return backtest.Signal{}, false
	}

	idx := min(max(r.TargetIndex, 0), len(setup.TakeProfits)-1)
	return backtest.Signal{
		Side:       setup.Bias,
		StopLoss:   setup.StopLoss,
		TakeProfit: setup.TakeProfits[idx].Price,
		Reason:     "structure setup",
	}, true
}

// EMACross enters on a fast/slow EMA crossover with an ATR stop, and exits when
// the averages cross back against the position.
type EMACross struct {
	Fast      int
	Slow      int
	ATRPeriod int
	StopATR   float64
	RiskRatio float64
}

func NewEMACross() EMACross {
	return EMACross{Fast: 9, Slow: 21, ATRPeriod: 14, StopATR: 1.5, RiskRatio: 2}
}

// cross returns +1 for a bullish cross on the last bar, -1 for bearish, 0 otherwise.
func (r EMACross) cross(visible types.Series) int {
	fast, err := indicator.EMALine(visible, r.Fast)
	if err != nil {
		return 0
	}
	slow, err := indicator.EMALine(visible, r.Slow)
	if err != nil {
		return 0
	}
	last := visible.Len() - 1
	f0, ok0 := fast.At(last - 1)
	s0, ok1 := slow.At(last - 1)
	if !ok0 || !ok1 {
		return 0
	}
	f1, s1 := fast.Last(), slow.Last()
	switch {
	case f0 <= s0 && f1 > s1:
		return 1
	case f0 >= s0 && f1 < s1:
		return -1
	}
	return 0
}

func (r EMACross) Entry(visible types.Series) (backtest.Signal, bool) {
	dir := r.cross(visible)
	if dir == 0 {
		return backtest.Signal{}, false
	}
	atr, err := indicator.ATRLine(visible, r.ATRPeriod)
	if err != nil {
		return backtest.Signal{}, false
	}

	side := types.LONG
	if dir < 0 {
		side = types.SHORT
	}
	return bracket(side, visible.Last().Close, atr.Last()*r.StopATR, r.RiskRatio, "ema cross"), true
}

func (r EMACross) Exit(visible types.Series, pos account.Position) bool {
	dir := r.cross(visible)
	return (dir < 0 && pos.Side == types.LONG) || (dir > 0 && pos.Side == types.SHORT)
}

// ImpulseCandle enters in the direction of a candle whose body exceeds
// ATRMultiple * ATR and, when RelativeSize is set, RelativeSize times the
// previous body. The stop sits beyond the candle's extreme.
type ImpulseCandle struct {
	ATRPeriod    int
	ATRMultiple  float64
	RelativeSize float64
	RiskRatio    float64
}

func NewImpulseCandle() ImpulseCandle {
	return ImpulseCandle{ATRPeriod: 14, ATRMultiple: 1.5, RelativeSize: 2, RiskRatio: 2}
}

func (r ImpulseCandle) Entry(visible types.Series) (backtest.Signal, bool) {
	atr, err := indicator.ATRLine(visible, r.ATRPeriod)
	if err != nil || visible.Len() < 2 {
		return backtest.Signal{}, false
	}

	cur, prev := visible.Last(), visible.At(visible.Len()-2)
	body := cur.Body()
	threshold := atr.Last() * r.ATRMultiple
	violation := body > threshold

	ruleLog.Debug("Impulse candle check",
		"timestamp", cur.Timestamp,
		"candleSize", body,
		"atrValue", atr.Last(),
		"atrThreshold", threshold,
		"violation", violation)

	if !violation {
		return backtest.Signal{}, false
	}
	if r.RelativeSize > 0 && body <= prev.Body()*r.RelativeSize {
		return backtest.Signal{}, false
	}

	side := types.LONG
	distance := cur.Close - cur.Low
	if cur.Bearish() {
		side = types.SHORT
		distance = cur.High - cur.Close
	}
	distance = math.Max(distance, atr.Last()*0.5)
	return bracket(side, cur.Close, distance, r.RiskRatio, "impulse candle"), true
}

// MaxBars exits a position after it has been open for Bars bars.
type MaxBars struct {
	Bars int
}

func (r MaxBars) Exit(visible types.Series, pos account.Position) bool {
	return visible.Len()-1-pos.EntryIndex >= r.Bars
}
