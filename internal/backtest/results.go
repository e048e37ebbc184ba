package backtest

import (
	"fmt"
	"time"

	"github.com/jwtly10/smcplan/internal/performance"
)

type EquityPoint struct {
	Index   int       `json:"index"`
	Time    time.Time `json:"time"`
	Balance float64   `json:"balance"`
	Equity  float64   `json:"equity"`
}

// SkippedSignal is an entry signal that never became a position.
type SkippedSignal struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type Report struct {
	RunID          string              `json:"run_id"`
	Instrument     string              `json:"instrument"`
	Timeframe      string              `json:"timeframe"`
	Bars           int                 `json:"bars"`
	InitialBalance float64             `json:"initial_balance"`
	FinalBalance   float64             `json:"final_balance"`
	Trades         []SimulatedTrade    `json:"trades"`
	Skipped        []SkippedSignal     `json:"skipped,omitempty"`
	Equity         []EquityPoint       `json:"equity"`
	Summary        performance.Summary `json:"summary"`
}

func (r *Report) PrintTrades() {
	r.PrintTradesBetween(0, len(r.Trades))
}

// PrintTradesBetween prints trades [from, to), clamped to the trade list.
func (r *Report) PrintTradesBetween(from, to int) {
	from = max(from, 0)
	to = min(to, len(r.Trades))

	fmt.Println("\n=== Trade List ===")
	for i := from; i < to; i++ {
		r.Trades[i].Print()
	}
}
