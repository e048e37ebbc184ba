package risk

import (
	"fmt"

	"github.com/jwtly10/smcplan/internal/logging"
)

var sizerLog = logging.New("sizer")

type Limit string

const (
	LimitRiskPerTrade  Limit = "max_risk_per_trade"
	LimitDailyLoss     Limit = "max_daily_loss"
	LimitWeeklyLoss    Limit = "max_weekly_loss"
	LimitOpenPositions Limit = "max_open_positions"
)

// RiskLimitExceeded describes a breached limit. It is returned as part of a
// Decision, not as a failure; it implements error so callers may propagate it.
type RiskLimitExceeded struct {
	Limit   Limit
	Allowed float64
	Actual  float64
	Excess  float64
}

func (e *RiskLimitExceeded) Error() string {
	return fmt.Sprintf("risk limit %s exceeded: allowed %.2f, actual %.2f (over by %.2f)", e.Limit, e.Allowed, e.Actual, e.Excess)
}

// Downsizable reports whether reducing size alone can clear the breach.
func (e *RiskLimitExceeded) Downsizable() bool {
	return e.Limit == LimitRiskPerTrade
}

// Guidance explains the breach in plain language.
func (e *RiskLimitExceeded) Guidance() string {
	switch e.Limit {
	case LimitRiskPerTrade:
		return fmt.Sprintf("This position would risk %.2f, above your per-trade cap of %.2f. A smaller size keeps you inside your plan.", e.Actual, e.Allowed)
	case LimitDailyLoss:
		return fmt.Sprintf("You have reached your daily loss limit (%.2f of %.2f). Stepping back until tomorrow protects your account.", e.Actual, e.Allowed)
	case LimitWeeklyLoss:
		return fmt.Sprintf("You have reached your weekly loss limit (%.2f of %.2f). Taking a pause for the rest of the week is part of the plan.", e.Actual, e.Allowed)
	case LimitOpenPositions:
		return fmt.Sprintf("You already hold the maximum of %.0f open positions. Consider managing those before adding another.", e.Allowed)
	}
	return e.Error()
}

// Decision is the sized position and any limit it breaches.
type Decision struct {
	Size       float64
	RiskAmount float64
	Breach     *RiskLimitExceeded
}

type Sizer struct {
	params Parameters
	policy Policy
}

func NewSizer(params Parameters, policy Policy) (*Sizer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = FixedFractional{}
	}
	return &Sizer{params: params, policy: policy}, nil
}

func (s *Sizer) Parameters() Parameters { return s.params }
func (s *Sizer) Policy() Policy         { return s.policy }

// MaxRiskAmount is the largest currency risk allowed on one trade.
func (s *Sizer) MaxRiskAmount(balance float64) float64 {
	return balance * s.params.MaxRiskPercent / 100
}

// Evaluate sizes the position with the configured policy and checks the result
// against the limits. Breaches are reported on the Decision, never clipped.
func (s *Sizer) Evaluate(in Input, exp Exposure) (Decision, error) {
	size, err := s.policy.Size(in)
	if err != nil {
		return Decision{}, fmt.Errorf("%s sizing: %w", s.policy.Name(), err)
	}

	d := Decision{Size: size, RiskAmount: size * in.riskPerUnit()}
	d.Breach = s.check(in.Balance, d.RiskAmount, exp)

	sizerLog.Debug("Sized position",
		"policy", s.policy.Name(),
		"balance", in.Balance,
		"stopDistance", in.StopDistance,
		"size", d.Size,
		"riskAmount", d.RiskAmount,
		"breach", d.Breach != nil)

	return d, nil
}

// Downsize scales a decision so its risk equals the per-trade cap.
func (s *Sizer) Downsize(d Decision, balance float64) Decision {
	allowed := s.MaxRiskAmount(balance)
	if d.RiskAmount <= allowed || d.RiskAmount == 0 {
		return d
	}
	scale := allowed / d.RiskAmount
	return Decision{Size: d.Size * scale, RiskAmount: allowed}
}

const riskEpsilon = 1e-9

func (s *Sizer) check(balance, risk float64, exp Exposure) *RiskLimitExceeded {
	if p := s.params.MaxDailyLossPercent; p > 0 {
		allowed := balance * p / 100
		if exp.DailyLoss >= allowed {
			return &RiskLimitExceeded{Limit: LimitDailyLoss, Allowed: allowed, Actual: exp.DailyLoss, Excess: exp.DailyLoss - allowed}
		}
	}
	if p := s.params.MaxWeeklyLossPercent; p > 0 {
		allowed := balance * p / 100
		if exp.WeeklyLoss >= allowed {
			return &RiskLimitExceeded{Limit: LimitWeeklyLoss, Allowed: allowed, Actual: exp.WeeklyLoss, Excess: exp.WeeklyLoss - allowed}
		}
	}
	if limit := s.params.MaxOpenPositions; limit > 0 && exp.OpenPositions >= limit {
		actual := float64(exp.OpenPositions + 1)
		return &RiskLimitExceeded{Limit: LimitOpenPositions, Allowed: float64(limit), Actual: actual, Excess: actual - float64(limit)}
	}

	allowed := s.MaxRiskAmount(balance)
	if risk > allowed*(1+riskEpsilon) {
		return &RiskLimitExceeded{Limit: LimitRiskPerTrade, Allowed: allowed, Actual: risk, Excess: risk - allowed}
	}
	return nil
}
