// Package risk sizes positions and checks proposed risk against account limits.
//
// The sizer never tracks running totals itself. Daily and weekly realized losses
// and the open position count are supplied by the caller on every call.
package risk

import "github.com/jwtly10/smcplan/internal/types"

// DefaultRiskPercent is the per-trade risk used when a session does not set one.
const DefaultRiskPercent = 2.5

// Parameters are the account limits. Loaded once and passed by value.
type Parameters struct {
	MaxRiskPercent float64 `yaml:"max_risk_percent"`
	// Zero disables the daily, weekly and open position limits.
	MaxDailyLossPercent  float64 `yaml:"max_daily_loss_percent"`
	MaxWeeklyLossPercent float64 `yaml:"max_weekly_loss_percent"`
	MaxOpenPositions     int     `yaml:"max_open_positions"`
	MinRewardRisk        float64 `yaml:"min_reward_risk"`
}

func DefaultParameters() Parameters {
	return Parameters{
		MaxRiskPercent:       3,
		MaxDailyLossPercent:  6,
		MaxWeeklyLossPercent: 10,
		MaxOpenPositions:     3,
		MinRewardRisk:        1.0,
	}
}

func (p Parameters) Validate() error {
	switch {
	case p.MaxRiskPercent <= 0 || p.MaxRiskPercent > 100:
		return &types.InvalidParameterError{Name: "risk.max_risk_percent", Value: p.MaxRiskPercent, Reason: "must be in (0, 100]"}
	case p.MaxDailyLossPercent < 0:
		return &types.InvalidParameterError{Name: "risk.max_daily_loss_percent", Value: p.MaxDailyLossPercent, Reason: "must not be negative"}
	case p.MaxWeeklyLossPercent < 0:
		return &types.InvalidParameterError{Name: "risk.max_weekly_loss_percent", Value: p.MaxWeeklyLossPercent, Reason: "must not be negative"}
	case p.MaxOpenPositions < 0:
		return &types.InvalidParameterError{Name: "risk.max_open_positions", Value: float64(p.MaxOpenPositions), Reason: "must not be negative"}
	case p.MinRewardRisk < 0:
		return &types.InvalidParameterError{Name: "risk.min_reward_risk", Value: p.MinRewardRisk, Reason: "must not be negative"}
	}
	return nil
}

// Exposure is the account state owned by the trade journal. Losses are positive
// amounts in account currency.
type Exposure struct {
	DailyLoss     float64
	WeeklyLoss    float64
	OpenPositions int
}
