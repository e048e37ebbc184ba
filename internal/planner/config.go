package planner

import (
	"fmt"
	"math"

	"github.com/jwtly10/smcplan/internal/structure"
	"github.com/jwtly10/smcplan/internal/types"
)

type Config struct {
	// MinScore is the smallest absolute net confluence score that produces a setup.
	MinScore float64 `yaml:"min_score"`

	// Stops sit StopBufferATR * ATR beyond the anchoring structure, at least
	// MinStopATR * ATR from entry, or FallbackStopATR * ATR away when nothing anchors them.
	StopBufferATR   float64 `yaml:"stop_buffer_atr"`
	MinStopATR      float64 `yaml:"min_stop_atr"`
	FallbackStopATR float64 `yaml:"fallback_stop_atr"`

	RewardMultiples []float64 `yaml:"reward_multiples"`
	CloseFractions  []float64 `yaml:"close_fractions"`

	// DownsizeOnBreach shrinks a position that exceeds the per-trade risk cap
	// instead of rejecting it.
	DownsizeOnBreach bool `yaml:"downsize_on_breach"`

	SwingStrength int `yaml:"swing_strength"`
}

func DefaultConfig() Config {
	return Config{
		MinScore:        10,
		StopBufferATR:   0.1,
		MinStopATR:      0.5,
		FallbackStopATR: 1.5,
		RewardMultiples: []float64{1, 2, 3},
		CloseFractions:  []float64{0.5, 0.3, 0.2},
		SwingStrength:   2,
	}
}

func (c Config) Validate() error {
	switch {
	case c.MinScore < 0 || c.MinScore > 100:
		return &types.InvalidParameterError{Name: "planner.min_score", Value: c.MinScore, Reason: "must be in [0, 100]"}
	case c.StopBufferATR < 0:
		return &types.InvalidParameterError{Name: "planner.stop_buffer_atr", Value: c.StopBufferATR, Reason: "must not be negative"}
	case c.MinStopATR < 0:
		return &types.InvalidParameterError{Name: "planner.min_stop_atr", Value: c.MinStopATR, Reason: "must not be negative"}
	case c.FallbackStopATR <= 0:
		return &types.InvalidParameterError{Name: "planner.fallback_stop_atr", Value: c.FallbackStopATR, Reason: "must be positive"}
	case c.SwingStrength < 1:
		return &types.InvalidParameterError{Name: "planner.swing_strength", Value: float64(c.SwingStrength), Reason: "must be at least 1"}
	}

	if len(c.RewardMultiples) == 0 || len(c.RewardMultiples) != len(c.CloseFractions) {
		return fmt.Errorf("planner: %d reward multiples for %d close fractions", len(c.RewardMultiples), len(c.CloseFractions))
	}
	sum, prev := 0.0, 0.0
	for i, m := range c.RewardMultiples {
		if m <= prev {
			return &types.InvalidParameterError{Name: "planner.reward_multiples", Value: m, Reason: "must be positive and strictly increasing"}
		}
		prev = m
		if c.CloseFractions[i] <= 0 {
			return &types.InvalidParameterError{Name: "planner.close_fractions", Value: c.CloseFractions[i], Reason: "must be positive"}
		}
		sum += c.CloseFractions[i]
	}
	if math.Abs(sum-1) > 1e-9 {
		return &types.InvalidParameterError{Name: "planner.close_fractions", Value: sum, Reason: "must sum to 1"}
	}
	return nil
}

// Profile is a named analysis style.
type Profile string

const (
	Scalping Profile = "scalping"
	Swing    Profile = "swing"
	Trend    Profile = "trend"
	Sniper   Profile = "sniper"
)

// ForProfile adjusts detector and planner settings for an analysis style.
// Unknown profiles return the inputs unchanged with an error.
func ForProfile(p Profile, det structure.Config, cfg Config) (structure.Config, Config, error) {
	switch p {
	case "", Swing:
	case Scalping:
		det.Window = 50
		cfg.StopBufferATR = 0.05
		cfg.MinStopATR = 0.3
		cfg.FallbackStopATR = 1
		cfg.RewardMultiples = []float64{1, 1.5, 2}
	case Trend:
		det.Window = 200
		cfg.FallbackStopATR = 2
		cfg.SwingStrength = 3
	case Sniper:
		det.ImpulseMultiple = 2
		cfg.MinScore = 40
		cfg.StopBufferATR = 0.05
		cfg.RewardMultiples = []float64{2, 3, 4}
	default:
		return det, cfg, fmt.Errorf("unknown analysis profile %q", p)
	}
	return det, cfg, nil
}
