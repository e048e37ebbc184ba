// Package performance aggregates closed trades into summary statistics.
package performance

import (
	"fmt"
	"math"
	"time"
)

// Trade is a closed trade as seen by the analyzer. Backtests and the journal
// both convert into it.
type Trade struct {
	EntryTime time.Time
	ExitTime  time.Time
	PnL       float64
	RMultiple float64
}

type Summary struct {
	// NoData is set when there were no trades; every Metric is then undefined.
	NoData bool `json:"no_data"`

	TotalTrades   int    `json:"total_trades"`
	WinningTrades int    `json:"winning_trades"`
	LosingTrades  int    `json:"losing_trades"`
	WinRate       Metric `json:"win_rate"`

	InitialBalance  float64 `json:"initial_balance"`
	FinalBalance    float64 `json:"final_balance"`
	TotalPnL        float64 `json:"total_pnl"`
	TotalPnLPercent float64 `json:"total_pnl_percent"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossLoss       float64 `json:"gross_loss"`
	ProfitFactor    Metric  `json:"profit_factor"`

	AvgWin     float64 `json:"avg_win"`
	AvgLoss    float64 `json:"avg_loss"`
	Expectancy Metric  `json:"expectancy"`
	Sharpe     Metric  `json:"sharpe"`

	MaxDrawdown        float64 `json:"max_drawdown"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`

	MaxConsecutiveWins   int `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	AvgTradeDuration time.Duration `json:"avg_trade_duration"`
}

// Analyze computes the summary for trades in the order they closed, starting
// from initialBalance. Win rate is a fraction in [0, 1].
func Analyze(initialBalance float64, trades []Trade) Summary {
	s := Summary{
		TotalTrades:    len(trades),
		InitialBalance: initialBalance,
		FinalBalance:   initialBalance,
	}
	if len(trades) == 0 {
		s.NoData = true
		return s
	}

	var totalR float64
	var totalDuration time.Duration
	var streakWins, streakLosses int
	returns := make([]float64, 0, len(trades))
	peak := initialBalance
	balance := initialBalance

	for _, trade := range trades {
		switch {
		case trade.PnL > 0:
			s.WinningTrades++
			s.GrossProfit += trade.PnL
			streakWins++
			streakLosses = 0
		case trade.PnL < 0:
			s.LosingTrades++
			s.GrossLoss += -trade.PnL
			streakLosses++
			streakWins = 0
		default:
			streakWins, streakLosses = 0, 0
		}
		s.MaxConsecutiveWins = max(s.MaxConsecutiveWins, streakWins)
		s.MaxConsecutiveLosses = max(s.MaxConsecutiveLosses, streakLosses)

		if balance != 0 {
			returns = append(returns, trade.PnL/balance)
		}
		balance += trade.PnL
		if balance > peak {
			peak = balance
		}
		if dd := peak - balance; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
			if peak > 0 {
				s.MaxDrawdownPercent = dd / peak * 100
			}
		}

		totalR += trade.RMultiple
		totalDuration += trade.ExitTime.Sub(trade.EntryTime)
	}

	n := float64(len(trades))
	s.FinalBalance = balance
	s.TotalPnL = balance - initialBalance
	if initialBalance != 0 {
		s.TotalPnLPercent = s.TotalPnL / initialBalance * 100
	}
	s.WinRate = Value(float64(s.WinningTrades) / n)
	s.Expectancy = Value(totalR / n)
	s.AvgTradeDuration = totalDuration / time.Duration(len(trades))

	if s.WinningTrades > 0 {
		s.AvgWin = s.GrossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = s.GrossLoss / float64(s.LosingTrades)
	}

	switch {
	case s.GrossLoss > 0:
		s.ProfitFactor = Value(s.GrossProfit / s.GrossLoss)
	case s.GrossProfit > 0:
		s.ProfitFactor = Infinity()
	default:
		s.ProfitFactor = Value(0)
	}

	s.Sharpe = sharpe(returns)
	return s
}

// sharpe is mean/sample standard deviation of per-trade returns, undefined for
// fewer than two returns or zero variance.
func sharpe(returns []float64) Metric {
	if len(returns) < 2 {
		return Undefined()
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	sd := math.Sqrt(ss / float64(len(returns)-1))
	if sd == 0 || math.IsNaN(sd) {
		return Undefined()
	}
	return Value(mean / sd)
}

func (s Summary) Print() {
	fmt.Println("\n=== Performance ===")
	if s.NoData {
		fmt.Println("No closed trades")
		return
	}
	fmt.Printf("Total Trades:     %d\n", s.TotalTrades)
	fmt.Printf("Winning Trades:   %d (%s%%)\n", s.WinningTrades, Value(s.WinRate.Value*100))
	fmt.Printf("Losing Trades:    %d\n\n", s.LosingTrades)

	fmt.Printf("Total P&L:        %.2f (%.2f%%)\n", s.TotalPnL, s.TotalPnLPercent)
	fmt.Printf("Gross Profit:     %.2f\n", s.GrossProfit)
	fmt.Printf("Gross Loss:       %.2f\n", s.GrossLoss)
	fmt.Printf("Profit Factor:    %s\n\n", s.ProfitFactor)

	fmt.Printf("Avg Win:          %.2f\n", s.AvgWin)
	fmt.Printf("Avg Loss:         %.2f\n", s.AvgLoss)
	fmt.Printf("Expectancy:       %sR per trade\n", s.Expectancy)
	fmt.Printf("Sharpe:           %s\n\n", s.Sharpe)

	fmt.Printf("Max Drawdown:     %.2f (%.2f%%)\n", s.MaxDrawdown, s.MaxDrawdownPercent)
	fmt.Printf("Streaks:          %d wins / %d losses\n", s.MaxConsecutiveWins, s.MaxConsecutiveLosses)
	fmt.Printf("Avg Duration:     %s\n", s.AvgTradeDuration.Round(time.Minute))
}
