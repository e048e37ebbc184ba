package risk

import (
	"math"

	"github.com/jwtly10/smcplan/internal/types"
)

// Calculation is a standalone position calculation for a given entry and stop.
type Calculation struct {
	Size          float64 `json:"position_size"`
	RiskAmount    float64 `json:"risk_amount"`
	StopDistance  float64 `json:"stop_distance"`
	PotentialLoss float64 `json:"potential_loss"`
	Profit1R      float64 `json:"potential_profit_1_1"`
	Profit2R      float64 `json:"potential_profit_1_2"`
	Profit3R      float64 `json:"potential_profit_1_3"`
}

// CalculatePosition sizes a position risking riskPercent of balance between
// entry and stop. A zero riskPercent uses DefaultRiskPercent.
func CalculatePosition(balance, riskPercent, entry, stop float64) (Calculation, error) {
	if entry <= 0 {
		return Calculation{}, &types.InvalidParameterError{Name: "entry", Value: entry, Reason: "must be positive"}
	}
	if stop <= 0 {
		return Calculation{}, &types.InvalidParameterError{Name: "stop_loss", Value: stop, Reason: "must be positive"}
	}

	in := Input{Balance: balance, RiskPercent: riskPercent, StopDistance: math.Abs(entry - stop)}
	size, err := FixedFractional{}.Size(in)
	if err != nil {
		return Calculation{}, err
	}

	risk := balance * in.riskFraction()
	return Calculation{
		Size:          size,
		RiskAmount:    risk,
		StopDistance:  in.StopDistance,
		PotentialLoss: risk,
		Profit1R:      risk,
		Profit2R:      risk * 2,
		Profit3R:      risk * 3,
	}, nil
}
