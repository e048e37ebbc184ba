// Package report converts analysis and backtest results into presentation
// values. Money is rounded to cents and prices to the instrument's precision
// using decimal arithmetic, so what a user reads is what a journal stores.
package report

import (
	"math"
	"time"

	"github.com/jwtly10/smcplan/internal/backtest"
	"github.com/jwtly10/smcplan/internal/performance"
	"github.com/jwtly10/smcplan/internal/planner"
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// PricePlaces is the number of decimals to show for an instrument with the
// given pip size: one more than the pip itself, and at least 2.
func PricePlaces(pipSize float64) int32 {
	if pipSize <= 0 || pipSize >= 1 {
		return moneyPlaces
	}
	places := int32(math.Round(-math.Log10(pipSize))) + 1
	return max(places, moneyPlaces)
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(moneyPlaces)
}

type TakeProfit struct {
	Price      decimal.Decimal `json:"price"`
	Percent    decimal.Decimal `json:"close_percent"`
	RewardRisk decimal.Decimal `json:"reward_risk"`
}

type Setup struct {
	ID          string             `json:"id"`
	Instrument  string             `json:"instrument"`
	Timeframe   string             `json:"timeframe"`
	Time        time.Time          `json:"time"`
	Bias        string             `json:"bias"`
	Entry       decimal.Decimal    `json:"entry"`
	StopLoss    decimal.Decimal    `json:"stop_loss"`
	TakeProfits []TakeProfit       `json:"take_profits"`
	Size        decimal.Decimal    `json:"position_size"`
	RiskAmount  decimal.Decimal    `json:"risk_amount"`
	Confidence  decimal.Decimal    `json:"confidence"`
	Downsized   bool               `json:"downsized,omitempty"`
	Factors     []planner.Factor   `json:"factors"`
	KeyLevels   []planner.KeyLevel `json:"key_levels"`
	Warnings    []string           `json:"warnings"`
	Guidance    string             `json:"guidance"`
}

// FromSetup rounds a setup for display. Size keeps four decimals so micro lots survive.
func FromSetup(s *planner.TradeSetup, pricePlaces int32) Setup {
	out := Setup{
		ID:          s.ID,
		Instrument:  s.Instrument,
		Timeframe:   s.Timeframe,
		Time:        s.Time,
		Bias:        string(s.Bias),
		Entry:       decimal.NewFromFloat(s.Entry).Round(pricePlaces),
		StopLoss:    decimal.NewFromFloat(s.StopLoss).Round(pricePlaces),
		TakeProfits: make([]TakeProfit, 0, len(s.TakeProfits)),
		Size:        decimal.NewFromFloat(s.Size).Round(4),
		RiskAmount:  money(s.RiskAmount),
		Confidence:  decimal.NewFromFloat(s.Confidence).Round(0),
		Downsized:   s.Downsized,
		Factors:     s.Factors,
		KeyLevels:   s.KeyLevels,
		Warnings:    s.Warnings,
		Guidance:    s.Guidance(),
	}
	for _, tp := range s.TakeProfits {
		out.TakeProfits = append(out.TakeProfits, TakeProfit{
			Price:      decimal.NewFromFloat(tp.Price).Round(pricePlaces),
			Percent:    decimal.NewFromFloat(tp.Fraction * 100).Round(0),
			RewardRisk: money(tp.RewardRisk),
		})
	}
	return out
}

type Rejection struct {
	Reason   string `json:"reason"`
	Detail   string `json:"detail"`
	Guidance string `json:"guidance"`
}

// Analysis is the presentation form of planner.Analysis.
type Analysis struct {
	Instrument string     `json:"instrument"`
	Timeframe  string     `json:"timeframe"`
	Structures int        `json:"structures"`
	Setup      *Setup     `json:"setup,omitempty"`
	Rejection  *Rejection `json:"rejection,omitempty"`
}

func FromAnalysis(a planner.Analysis, pricePlaces int32) Analysis {
	out := Analysis{
		Instrument: a.Instrument,
		Timeframe:  a.Timeframe,
		Structures: len(a.Structures),
	}
	if a.Result.Setup != nil {
		s := FromSetup(a.Result.Setup, pricePlaces)
		out.Setup = &s
	}
	if r := a.Result.Rejection; r != nil {
		out.Rejection = &Rejection{Reason: string(r.Reason), Detail: r.Detail, Guidance: r.Guidance()}
	}
	return out
}

// Trade is one closed backtest trade, rounded like a journal row.
type Trade struct {
	ID         int             `json:"id"`
	Side       string          `json:"direction"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	Size       decimal.Decimal `json:"size"`
	PnL        decimal.Decimal `json:"pnl"`
	RMultiple  decimal.Decimal `json:"r_multiple"`
	ExitReason string          `json:"exit_reason"`
	Forced     bool            `json:"forced_close,omitempty"`
}

func fromTrade(t backtest.SimulatedTrade, pricePlaces int32) Trade {
	return Trade{
		ID:         t.ID,
		Side:       string(t.Side),
		EntryTime:  t.EntryTime,
		ExitTime:   t.ExitTime,
		EntryPrice: decimal.NewFromFloat(t.EntryPrice).Round(pricePlaces),
		ExitPrice:  decimal.NewFromFloat(t.ExitPrice).Round(pricePlaces),
		StopLoss:   decimal.NewFromFloat(t.StopLoss).Round(pricePlaces),
		Size:       decimal.NewFromFloat(t.Size).Round(4),
		PnL:        money(t.PnL),
		RMultiple:  money(t.RMultiple),
		ExitReason: string(t.ExitReason),
		Forced:     t.Forced,
	}
}

type Backtest struct {
	RunID          string             `json:"run_id"`
	Instrument     string             `json:"instrument"`
	Timeframe      string             `json:"timeframe"`
	Bars           int                `json:"bars"`
	TradeCount     int                `json:"trade_count"`
	Trades         []Trade            `json:"trades"`
	InitialBalance decimal.Decimal    `json:"initial_balance"`
	FinalBalance   decimal.Decimal    `json:"final_balance"`
	NetPnL         decimal.Decimal    `json:"net_pnl"`
	ReturnPercent  decimal.Decimal    `json:"return_percent"`
	WinRatePercent performance.Metric `json:"win_rate_percent"`
	ProfitFactor   performance.Metric `json:"profit_factor"`
	Expectancy     performance.Metric `json:"expectancy"`
	Sharpe         performance.Metric `json:"sharpe"`
	MaxDrawdown    decimal.Decimal    `json:"max_drawdown"`
	MaxDrawdownPct decimal.Decimal    `json:"max_drawdown_percent"`
}

// round rounds a finite metric to places; undefined and infinite pass through.
func round(m performance.Metric, places int32) performance.Metric {
	if !m.Defined || m.Infinite {
		return m
	}
	v, _ := decimal.NewFromFloat(m.Value).Round(places).Float64()
	return performance.Value(v)
}

func FromBacktest(r *backtest.Report, pricePlaces int32) Backtest {
	sum := r.Summary
	winRate := sum.WinRate
	if winRate.Defined {
		winRate = performance.Value(winRate.Value * 100)
	}

	initial := money(r.InitialBalance)
	final := money(r.FinalBalance)
	net := final.Sub(initial)
	ret := decimal.Zero
	if !initial.IsZero() {
		ret = net.Div(initial).Mul(decimal.NewFromInt(100)).Round(moneyPlaces)
	}

	trades := make([]Trade, 0, len(r.Trades))
	for _, t := range r.Trades {
		trades = append(trades, fromTrade(t, pricePlaces))
	}

	return Backtest{
		RunID:          r.RunID,
		Instrument:     r.Instrument,
		Timeframe:      r.Timeframe,
		Bars:           r.Bars,
		TradeCount:     len(r.Trades),
		Trades:         trades,
		InitialBalance: initial,
		FinalBalance:   final,
		NetPnL:         net,
		ReturnPercent:  ret,
		WinRatePercent: round(winRate, moneyPlaces),
		ProfitFactor:   round(sum.ProfitFactor, moneyPlaces),
		Expectancy:     round(sum.Expectancy, moneyPlaces),
		Sharpe:         round(sum.Sharpe, moneyPlaces),
		MaxDrawdown:    money(sum.MaxDrawdown),
		MaxDrawdownPct: money(sum.MaxDrawdownPercent),
	}
}
