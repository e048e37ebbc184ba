package risk

import (
	"fmt"

	"github.com/jwtly10/smcplan/internal/types"
)

// Input is everything a sizing policy may look at.
type Input struct {
	Balance      float64
	RiskPercent  float64
	StopDistance float64
	// ATR is only used by the volatility policy.
	ATR float64
	// PipSize and PipValue switch sizing to lots: the stop is measured in pips and
	// each pip is worth PipValue per unit of size. Both zero means price units.
	PipSize  float64
	PipValue float64
}

// riskPerUnit is the currency lost per unit of size if the stop is hit.
func (in Input) riskPerUnit() float64 {
	if in.PipSize > 0 && in.PipValue > 0 {
		return in.StopDistance / in.PipSize * in.PipValue
	}
	return in.StopDistance
}

func (in Input) riskFraction() float64 {
	rp := in.RiskPercent
	if rp == 0 {
		rp = DefaultRiskPercent
	}
	return rp / 100
}

func (in Input) validate() error {
	if in.Balance <= 0 {
		return &types.InvalidParameterError{Name: "balance", Value: in.Balance, Reason: "must be positive"}
	}
	if in.RiskPercent < 0 || in.RiskPercent > 100 {
		return &types.InvalidParameterError{Name: "risk_percent", Value: in.RiskPercent, Reason: "must be in [0, 100]"}
	}
	if in.StopDistance <= 0 {
		return &types.InvalidStopDistanceError{Distance: in.StopDistance}
	}
	return nil
}

// Policy turns an Input into a position size.
type Policy interface {
	Name() string
	Size(in Input) (float64, error)
}

// FixedFractional risks a fixed fraction of the balance: size = balance * rf / stop.
type FixedFractional struct{}

func (FixedFractional) Name() string { return PolicyFixedFractional }

func (FixedFractional) Size(in Input) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	return in.Balance * in.riskFraction() / in.riskPerUnit(), nil
}

// Kelly sizes from the growth-optimal fraction of the supplied edge, damped by Multiplier.
type Kelly struct {
	WinRate    float64
	AvgWinR    float64
	AvgLossR   float64
	Multiplier float64
}

// Fraction returns the damped Kelly fraction, never below zero.
func (k Kelly) Fraction() float64 {
	raw := (k.WinRate*k.AvgWinR - (1-k.WinRate)*k.AvgLossR) / k.AvgWinR
	if raw <= 0 {
		return 0
	}
	return raw * k.Multiplier
}

func (Kelly) Name() string { return PolicyKelly }

func (k Kelly) Size(in Input) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	if err := k.validate(); err != nil {
		return 0, err
	}
	f := k.Fraction()
	sizerLog.Debug("Kelly fraction", "winRate", k.WinRate, "avgWinR", k.AvgWinR, "avgLossR", k.AvgLossR, "fraction", f)
	if f == 0 {
		return 0, nil
	}
	return in.Balance * f / in.riskPerUnit(), nil
}

func (k Kelly) validate() error {
	switch {
	case k.WinRate < 0 || k.WinRate > 1:
		return &types.InvalidParameterError{Name: "kelly.win_rate", Value: k.WinRate, Reason: "must be in [0, 1]"}
	case k.AvgWinR <= 0:
		return &types.InvalidParameterError{Name: "kelly.avg_win_r", Value: k.AvgWinR, Reason: "must be positive"}
	case k.AvgLossR < 0:
		return &types.InvalidParameterError{Name: "kelly.avg_loss_r", Value: k.AvgLossR, Reason: "must not be negative"}
	case k.Multiplier <= 0 || k.Multiplier > 1:
		return &types.InvalidParameterError{Name: "kelly.multiplier", Value: k.Multiplier, Reason: "must be in (0, 1]"}
	}
	return nil
}

// Volatility risks the fraction against a multiple of ATR instead of the stop:
// size = balance * rf / (ATR * Multiplier).
type Volatility struct {
	Multiplier float64
}

func (Volatility) Name() string { return PolicyVolatility }

func (v Volatility) Size(in Input) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	if in.ATR <= 0 {
		return 0, &types.InvalidParameterError{Name: "atr", Value: in.ATR, Reason: "must be positive"}
	}
	if v.Multiplier <= 0 {
		return 0, &types.InvalidParameterError{Name: "volatility.multiplier", Value: v.Multiplier, Reason: "must be positive"}
	}
	return in.Balance * in.riskFraction() / (in.ATR * v.Multiplier), nil
}

const (
	PolicyFixedFractional = "fixed_fractional"
	PolicyKelly           = "kelly"
	PolicyVolatility      = "volatility"
)

// PolicyConfig selects and parameterises a sizing policy.
type PolicyConfig struct {
	Policy          string  `yaml:"policy"`
	KellyMultiplier float64 `yaml:"kelly_multiplier"`
	WinRate         float64 `yaml:"win_rate"`
	AvgWinR         float64 `yaml:"avg_win_r"`
	AvgLossR        float64 `yaml:"avg_loss_r"`
	ATRMultiplier   float64 `yaml:"atr_multiplier"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Policy:          PolicyFixedFractional,
		KellyMultiplier: 0.25,
		AvgWinR:         2,
		AvgLossR:        1,
		WinRate:         0.5,
		ATRMultiplier:   1.5,
	}
}

// NewPolicy builds the policy named by cfg.Policy.
func NewPolicy(cfg PolicyConfig) (Policy, error) {
	switch cfg.Policy {
	case "", PolicyFixedFractional:
		return FixedFractional{}, nil
	case PolicyKelly:
		k := Kelly{WinRate: cfg.WinRate, AvgWinR: cfg.AvgWinR, AvgLossR: cfg.AvgLossR, Multiplier: cfg.KellyMultiplier}
		if err := k.validate(); err != nil {
			return nil, err
		}
		return k, nil
	case PolicyVolatility:
		if cfg.ATRMultiplier <= 0 {
			return nil, &types.InvalidParameterError{Name: "sizing.atr_multiplier", Value: cfg.ATRMultiplier, Reason: "must be positive"}
		}
		return Volatility{Multiplier: cfg.ATRMultiplier}, nil
	default:
		return nil, fmt.Errorf("unknown sizing policy %q", cfg.Policy)
	}
}
