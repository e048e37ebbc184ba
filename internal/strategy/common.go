// Package strategy provides entry and exit rules for the backtest engine.
// Every rule is stateless: it reads only the visible bars it is handed, so one
// value may be shared by concurrent backtests.
package strategy

import (
	"strings"

	"github.com/jwtly10/smcplan/internal/backtest"
	"github.com/jwtly10/smcplan/internal/types"
)

var pipSizes = map[string]float64{
	"NAS100_USD": 0.1,
	"SPX500_USD": 0.1,
	"XAU_USD":    0.01,
}

// PipSize returns the pip size for an instrument. JPY pairs use 0.01, other
// currency pairs 0.0001, and unknown instruments 1.
func PipSize(instrument string) float64 {
	if p, ok := pipSizes[instrument]; ok {
		return p
	}
	if parts := strings.Split(instrument, "_"); len(parts) == 2 && len(parts[0]) == 3 && len(parts[1]) == 3 {
		if parts[1] == "JPY" {
			return 0.01
		}
		return 0.0001
	}
	return 1
}

// PipsToPrice converts pips to price units.
func PipsToPrice(pips, pipSize float64) float64 {
	return pips * pipSize
}

// bracket builds a signal with the stop distance away from the last close and
// the target riskRatio times that distance on the other side.
func bracket(side types.Side, close, distance, riskRatio float64, reason string) backtest.Signal {
	sig := backtest.Signal{
		Side:     side,
		StopLoss: close - side.Sign()*distance,
		Reason:   reason,
	}
	if riskRatio > 0 {
		sig.TakeProfit = close + side.Sign()*distance*riskRatio
	}
	return sig
}
