package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/jwtly10/smcplan/internal/structure"
	"github.com/jwtly10/smcplan/internal/types"
)

// Warnings accompany every setup.
var Warnings = []string{
	"Trading involves substantial risk of loss",
	"Past performance doesn't guarantee future results",
	"Never risk more than you can afford to lose",
	"This analysis is for educational purposes only",
	"Always do your own research before trading",
}

type TakeProfit struct {
	Price      float64 `json:"price"`
	Fraction   float64 `json:"fraction"`
	RewardRisk float64 `json:"reward_risk"`
}

// Factor is one confluence contribution. Weight is signed: positive is bullish.
type Factor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// KeyLevel is an active structure worth watching.
type KeyLevel struct {
	Kind      structure.Kind  `json:"kind"`
	Direction types.Direction `json:"direction"`
	Low       float64         `json:"low"`
	High      float64         `json:"high"`
}

type TradeSetup struct {
	ID          string       `json:"id"`
	Instrument  string       `json:"instrument"`
	Timeframe   string       `json:"timeframe"`
	Time        time.Time    `json:"time"`
	Bias        types.Side   `json:"bias"`
	Entry       float64      `json:"entry"`
	StopLoss    float64      `json:"stop_loss"`
	TakeProfits []TakeProfit `json:"take_profits"`
	Size        float64      `json:"position_size"`
	RiskAmount  float64      `json:"risk_amount"`
	Confidence  float64      `json:"confidence"`
	Downsized   bool         `json:"downsized"`
	Factors     []Factor     `json:"factors"`
	KeyLevels   []KeyLevel   `json:"key_levels"`
	Warnings    []string     `json:"warnings"`
}

// StopDistance is the absolute distance from entry to stop.
func (t *TradeSetup) StopDistance() float64 {
	return t.Bias.Sign() * (t.Entry - t.StopLoss)
}

// Validate checks the price ladder and that risk is within maxRisk.
func (t *TradeSetup) Validate(maxRisk float64) error {
	sign := t.Bias.Sign()
	if t.Entry <= 0 || t.StopLoss <= 0 {
		return &types.InvalidParameterError{Name: "setup.entry", Value: t.Entry, Reason: "entry and stop must be positive"}
	}
	if d := t.StopDistance(); d <= 0 {
		return &types.InvalidStopDistanceError{Distance: d}
	}

	prev, sum := 0.0, 0.0
	for _, tp := range t.TakeProfits {
		dist := sign * (tp.Price - t.Entry)
		if dist <= prev {
			return &types.InvalidParameterError{Name: "setup.take_profit", Value: tp.Price, Reason: "take profits must be on the winning side and move away from entry"}
		}
		prev = dist
		sum += tp.Fraction
	}
	if len(t.TakeProfits) == 0 || sum < 1-1e-9 || sum > 1+1e-9 {
		return &types.InvalidParameterError{Name: "setup.take_profit_fractions", Value: sum, Reason: "must sum to 1"}
	}
	if t.RiskAmount > maxRisk*(1+1e-9) {
		return &types.InvalidParameterError{Name: "setup.risk_amount", Value: t.RiskAmount, Reason: fmt.Sprintf("exceeds max risk %.2f", maxRisk)}
	}
	return nil
}

func (t *TradeSetup) Guidance() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s with %.0f%% confidence. Entry %.5g, stop %.5g, risking %.2f on %.4g units.",
		t.Bias, t.Instrument, t.Confidence, t.Entry, t.StopLoss, t.RiskAmount, t.Size)
	for i, tp := range t.TakeProfits {
		fmt.Fprintf(&b, " TP%d %.5g (1:%.1f, close %.0f%%).", i+1, tp.Price, tp.RewardRisk, tp.Fraction*100)
	}
	return b.String()
}

type Reason string

const (
	ReasonNoStructures   Reason = "no_structures"
	ReasonWeakConfluence Reason = "weak_confluence"
	ReasonZeroSize       Reason = "zero_size"
	ReasonRiskLimit      Reason = "risk_limit"
	ReasonRewardRisk     Reason = "reward_risk"
	ReasonInvalidLevels  Reason = "invalid_levels"
)

// NoViableSetup is the explicit no-trade outcome. It is a normal result, not an error.
type NoViableSetup struct {
	Reason Reason                  `json:"reason"`
	Detail string                  `json:"detail"`
	Score  float64                 `json:"score"`
	Breach *risk.RiskLimitExceeded `json:"breach,omitempty"`
}

func (n *NoViableSetup) Guidance() string {
	switch n.Reason {
	case ReasonNoStructures:
		return "The market has not printed any clear structure yet. Waiting for an order block, gap or liquidity sweep is the patient choice."
	case ReasonWeakConfluence:
		return "Signals are mixed right now, so there is no clear edge. Sitting on the sidelines is a valid position."
	case ReasonZeroSize:
		return "Your recent statistics do not show an edge for this setup, so the sizing rules suggest not taking it."
	case ReasonRiskLimit:
		if n.Breach != nil {
			return n.Breach.Guidance()
		}
	case ReasonRewardRisk:
		return "The potential reward does not justify the risk at current levels. A better entry may come."
	}
	return n.Detail
}

// Result holds exactly one of Setup or Rejection.
type Result struct {
	Setup     *TradeSetup    `json:"setup,omitempty"`
	Rejection *NoViableSetup `json:"rejection,omitempty"`
}

func (r Result) Viable() bool { return r.Setup != nil }

func (r Result) Guidance() string {
	if r.Setup != nil {
		return r.Setup.Guidance()
	}
	if r.Rejection != nil {
		return r.Rejection.Guidance()
	}
	return ""
}

func reject(reason Reason, score float64, format string, args ...any) Result {
	return Result{Rejection: &NoViableSetup{Reason: reason, Score: score, Detail: fmt.Sprintf(format, args...)}}
}
