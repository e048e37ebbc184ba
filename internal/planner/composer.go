// Package planner turns detected structures, indicator readings and account
// limits into a single trade recommendation, or an explicit no-trade result.
package planner

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jwtly10/smcplan/internal/indicator"
	"github.com/jwtly10/smcplan/internal/logging"
	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/jwtly10/smcplan/internal/structure"
	"github.com/jwtly10/smcplan/internal/types"
)

var plannerLog = logging.New("planner")

// Confluence weights.
const (
	weightOrderBlock      = 20
	weightSweep           = 20
	weightFairValueGap    = 15
	weightPriceVsSMA      = 10
	weightSMAAlignment    = 10
	weightMACD            = 10
	weightMarketStructure = 10
	weightRSI             = 5
	weightEngulfing       = 5

	// Engulfing patterns older than this many bars no longer count.
	patternRecency = 5
)

// Input is one composition request. Exposure is the caller's running account state.
type Input struct {
	Series      types.Series
	Indicators  indicator.Snapshot
	Structures  []structure.Structure
	Balance     float64
	RiskPercent float64
	// Price overrides the entry; zero means the last close.
	Price    float64
	Exposure risk.Exposure
	PipSize  float64
	PipValue float64
}

type Composer struct {
	cfg   Config
	sizer *risk.Sizer
}

func NewComposer(cfg Config, sizer *risk.Sizer) (*Composer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sizer == nil {
		return nil, fmt.Errorf("planner: sizer is required")
	}
	return &Composer{cfg: cfg, sizer: sizer}, nil
}

func (c *Composer) Config() Config { return c.cfg }

// Compose builds a TradeSetup or explains why there is none. Errors are only
// returned for malformed input.
func (c *Composer) Compose(in Input) (Result, error) {
	if in.Series.Len() == 0 {
		return Result{}, &types.InsufficientDataError{Indicator: "planner", Need: 1, Have: 0}
	}
	if in.Balance <= 0 {
		return Result{}, &types.InvalidParameterError{Name: "balance", Value: in.Balance, Reason: "must be positive"}
	}
	if in.Price < 0 {
		return Result{}, &types.InvalidParameterError{Name: "price", Value: in.Price, Reason: "must not be negative"}
	}

	if len(in.Structures) == 0 {
		return reject(ReasonNoStructures, 0, "no structures detected in the analysis window"), nil
	}

	factors := c.score(in)
	var net float64
	for _, f := range factors {
		net += f.Weight
	}
	plannerLog.Debug("Confluence score", "instrument", in.Series.Instrument, "net", net, "factors", len(factors))

	if math.Abs(net) < c.cfg.MinScore || net == 0 {
		return reject(ReasonWeakConfluence, net, "net confluence %.0f below minimum %.0f", net, c.cfg.MinScore), nil
	}

	bias := types.LONG
	if net < 0 {
		bias = types.SHORT
	}
	entry := in.Price
	if entry == 0 {
		entry = in.Series.Last().Close
	}

	atr := in.Indicators.ATR.Last()
	if math.IsNaN(atr) || atr <= 0 {
		return Result{}, &types.InsufficientDataError{Indicator: "planner ATR", Need: 2, Have: in.Series.Len()}
	}

	stop := c.placeStop(bias, entry, atr, in.Structures)
	distance := bias.Sign() * (entry - stop)
	if stop <= 0 || distance <= 0 {
		return reject(ReasonInvalidLevels, net, "no valid stop below entry %.5g", entry), nil
	}

	rr := c.cfg.RewardMultiples[0]
	if minRR := c.sizer.Parameters().MinRewardRisk; rr < minRR {
		return reject(ReasonRewardRisk, net, "TP1 reward:risk %.2f below minimum %.2f", rr, minRR), nil
	}

	decision, err := c.sizer.Evaluate(risk.Input{
		Balance:      in.Balance,
		RiskPercent:  in.RiskPercent,
		StopDistance: distance,
		ATR:          atr,
		PipSize:      in.PipSize,
		PipValue:     in.PipValue,
	}, in.Exposure)
	if err != nil {
		return Result{}, err
	}

	downsized := false
	if decision.Breach != nil {
		if !c.cfg.DownsizeOnBreach || !decision.Breach.Downsizable() {
			res := reject(ReasonRiskLimit, net, "%s", decision.Breach.Error())
			res.Rejection.Breach = decision.Breach
			plannerLog.Info("Setup rejected by risk limit", "limit", decision.Breach.Limit, "excess", decision.Breach.Excess)
			return res, nil
		}
		decision = c.sizer.Downsize(decision, in.Balance)
		downsized = true
	}
	if decision.Size <= 0 {
		return reject(ReasonZeroSize, net, "sizing policy %s returned no size", c.sizer.Policy().Name()), nil
	}

	setup := &TradeSetup{
		ID:          uuid.NewString(),
		Instrument:  in.Series.Instrument,
		Timeframe:   in.Series.Timeframe,
		Time:        in.Series.Last().Timestamp,
		Bias:        bias,
		Entry:       entry,
		StopLoss:    stop,
		TakeProfits: c.takeProfits(bias, entry, distance),
		Size:        decision.Size,
		RiskAmount:  decision.RiskAmount,
		Confidence:  math.Min(100, math.Abs(net)),
		Downsized:   downsized,
		Factors:     factors,
		KeyLevels:   keyLevels(in.Structures),
		Warnings:    append([]string(nil), Warnings...),
	}
	if err := setup.Validate(c.sizer.MaxRiskAmount(in.Balance)); err != nil {
		return reject(ReasonInvalidLevels, net, "%v", err), nil
	}

	plannerLog.Debug("Setup composed",
		"bias", setup.Bias,
		"entry", setup.Entry,
		"stop", setup.StopLoss,
		"size", setup.Size,
		"risk", setup.RiskAmount,
		"confidence", setup.Confidence)

	return Result{Setup: setup}, nil
}

func (c *Composer) takeProfits(bias types.Side, entry, distance float64) []TakeProfit {
	out := make([]TakeProfit, len(c.cfg.RewardMultiples))
	for i, m := range c.cfg.RewardMultiples {
		out[i] = TakeProfit{
			Price:      entry + bias.Sign()*m*distance,
			Fraction:   c.cfg.CloseFractions[i],
			RewardRisk: m,
		}
	}
	return out
}

// score collects the signed confluence factors.
func (c *Composer) score(in Input) []Factor {
	var factors []Factor
	add := func(name string, dir types.Direction, weight float64) {
		factors = append(factors, Factor{Name: name, Weight: dir.Sign() * weight})
	}

	if ob, ok := firstActive(structure.OfType[structure.OrderBlock](in.Structures)); ok {
		add("order block", ob.Direction(), weightOrderBlock)
	}
	for _, lz := range structure.OfType[structure.LiquidityZone](in.Structures) {
		if lz.Swept {
			add("liquidity sweep", lz.Direction(), weightSweep)
			break
		}
	}
	if gap, ok := firstActive(structure.OfType[structure.FairValueGap](in.Structures)); ok {
		add("fair value gap", gap.Direction(), weightFairValueGap)
	}
	if patterns := structure.OfType[structure.Pattern](in.Structures); len(patterns) > 0 {
		if p := patterns[0]; p.End >= in.Series.Len()-1-patternRecency {
			add(string(p.Name), p.Direction(), weightEngulfing)
		}
	}

	snap := in.Indicators
	closePrice := in.Series.Last().Close
	if sma := snap.FastSMA.Last(); !math.IsNaN(sma) && closePrice != sma {
		add("price vs SMA", directionOf(closePrice-sma), weightPriceVsSMA)
	}
	if snap.HasSlowSMA {
		if diff := snap.FastSMA.Last() - snap.SlowSMA.Last(); diff != 0 {
			add("SMA alignment", directionOf(diff), weightSMAAlignment)
		}
	}
	if snap.HasMACD {
		if h := snap.MACD.Histogram.Last(); h != 0 {
			add("MACD histogram", directionOf(h), weightMACD)
		}
	}
	if trend := structure.MarketStructure(in.Series, c.cfg.SwingStrength); trend.Direction != "" {
		add("market structure", trend.Direction, weightMarketStructure)
	}
	switch rsi := snap.RSI.Last(); {
	case rsi > 70:
		add("RSI overbought", types.Bearish, weightRSI)
	case rsi < 30:
		add("RSI oversold", types.Bullish, weightRSI)
	}

	return factors
}

// placeStop anchors the stop beyond the nearest same-direction order block or
// swept liquidity zone on the losing side of entry.
func (c *Composer) placeStop(bias types.Side, entry, atr float64, list []structure.Structure) float64 {
	dir := bias.Direction()
	sign := bias.Sign()

	anchor, found := 0.0, false
	consider := func(level float64) {
		// distance from entry on the losing side; smaller is nearer
		if sign*(entry-level) <= 0 {
			return
		}
		if !found || sign*(level-anchor) > 0 {
			anchor, found = level, true
		}
	}

	for _, s := range list {
		switch v := s.(type) {
		case structure.OrderBlock:
			if v.Dir == dir && !v.Mitigated {
				consider(edge(bias, v.Low, v.High))
			}
		case structure.LiquidityZone:
			if v.Dir == dir && v.Swept {
				consider(v.SweepExtreme)
			}
		}
	}

	minDist := c.cfg.MinStopATR * atr
	if !found {
		plannerLog.Debug("No stop anchor, using ATR fallback", "atr", atr)
		return entry - sign*c.cfg.FallbackStopATR*atr
	}

	stop := anchor - sign*c.cfg.StopBufferATR*atr
	if sign*(entry-stop) < minDist {
		stop = entry - sign*minDist
	}
	return stop
}

// edge is the side of a zone that invalidates the bias: the low for longs.
func edge(bias types.Side, low, high float64) float64 {
	if bias == types.SHORT {
		return high
	}
	return low
}

func directionOf(v float64) types.Direction {
	if v < 0 {
		return types.Bearish
	}
	return types.Bullish
}

func firstActive[T structure.Structure](list []T) (T, bool) {
	for _, s := range list {
		if s.Active() {
			return s, true
		}
	}
	var zero T
	return zero, false
}

const maxKeyLevels = 5

func keyLevels(list []structure.Structure) []KeyLevel {
	var out []KeyLevel
	for _, s := range list {
		if !s.Active() || s.Kind() == structure.KindPattern {
			continue
		}
		lo, hi := s.Range()
		out = append(out, KeyLevel{Kind: s.Kind(), Direction: s.Direction(), Low: lo, High: hi})
		if len(out) == maxKeyLevels {
			break
		}
	}
	return out
}
