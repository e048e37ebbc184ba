// Package backtest replays entry and exit rules over a historical series.
//
// Each simulated trade moves FLAT -> PENDING_ENTRY -> OPEN -> CLOSED. A signal
// seen on bar i fills at the open of bar i+1; rules only ever see bars 0..i.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwtly10/smcplan/internal/account"
	"github.com/jwtly10/smcplan/internal/indicator"
	"github.com/jwtly10/smcplan/internal/logging"
	"github.com/jwtly10/smcplan/internal/performance"
	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/jwtly10/smcplan/internal/types"
)

var engineLog = logging.New("backtest")

type State string

const (
	Flat         State = "FLAT"
	PendingEntry State = "PENDING_ENTRY"
	Open         State = "OPEN"
	Closed       State = "CLOSED"
)

// Signal asks for a position at the next bar's open.
type Signal struct {
	Side     types.Side
	StopLoss float64
	// TakeProfit of zero leaves the exit to the stop, the exit rule or the end of data.
	TakeProfit float64
	Reason     string
}

// EntryRule decides whether to enter given the bars visible so far.
type EntryRule interface {
	Entry(visible types.Series) (Signal, bool)
}

// ExitRule decides whether to close an open position at the current bar's close.
type ExitRule interface {
	Exit(visible types.Series, pos account.Position) bool
}

// SimulatedTrade is one closed trade of a backtest run.
type SimulatedTrade = account.Trade

type Config struct {
	InitialBalance float64 `yaml:"initial_balance"`
	RiskPercent    float64 `yaml:"risk_percent"`
	// ATRPeriod feeds the volatility sizing policy.
	ATRPeriod int `yaml:"atr_period"`
}

func DefaultConfig() Config {
	return Config{InitialBalance: 10000, RiskPercent: 1, ATRPeriod: 14}
}

func (c Config) Validate() error {
	switch {
	case c.InitialBalance <= 0:
		return &types.InvalidParameterError{Name: "backtest.initial_balance", Value: c.InitialBalance, Reason: "must be positive"}
	case c.RiskPercent < 0 || c.RiskPercent > 100:
		return &types.InvalidParameterError{Name: "backtest.risk_percent", Value: c.RiskPercent, Reason: "must be in [0, 100]"}
	case c.ATRPeriod <= 0:
		return &types.InvalidParameterError{Name: "backtest.atr_period", Value: float64(c.ATRPeriod), Reason: "must be positive"}
	}
	return nil
}

type Engine struct {
	cfg   Config
	sizer *risk.Sizer
}

func NewEngine(cfg Config, sizer *risk.Sizer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sizer == nil {
		return nil, errors.New("backtest: sizer is required")
	}
	return &Engine{cfg: cfg, sizer: sizer}, nil
}

// run is the mutable state of one Run call.
type run struct {
	state   State
	pending Signal
	pos     *account.Position
	acc     *account.Account
	atr     indicator.Line
	report  *Report
}

// Run replays s bar by bar. exit may be nil. The context is checked between bars.
func (e *Engine) Run(ctx context.Context, s types.Series, entry EntryRule, exit ExitRule) (*Report, error) {
	if s.Len() == 0 {
		return nil, &types.InsufficientDataError{Indicator: "backtest", Need: 1, Have: 0}
	}
	if entry == nil {
		return nil, errors.New("backtest: entry rule is required")
	}

	r := &run{
		state: Flat,
		acc:   account.NewAccount(e.cfg.InitialBalance),
		report: &Report{
			RunID:          uuid.NewString(),
			Instrument:     s.Instrument,
			Timeframe:      s.Timeframe,
			Bars:           s.Len(),
			InitialBalance: e.cfg.InitialBalance,
		},
	}
	// ATR is optional: short series simply leave the volatility policy without input.
	if atr, err := indicator.ATRLine(s, e.cfg.ATRPeriod); err == nil {
		r.atr = atr
	}

	slog.Debug("Starting backtest", "run_id", r.report.RunID, "instrument", s.Instrument, "initial_balance", e.cfg.InitialBalance, "total_bars", s.Len())

	last := s.Len() - 1
	for i := 0; i <= last; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest cancelled at bar %d: %w", i, err)
		}
		bar := s.At(i)

		if r.state == PendingEntry {
			e.fill(r, i, bar)
		}

		if r.state == Open {
			e.manage(r, s, i, bar, exit)
		}

		if r.state == Closed {
			r.state = Flat
		}

		if r.state == Flat && i < last {
			if sig, ok := entry.Entry(s.Head(i + 1)); ok {
				engineLog.Debug("Entry signal", "index", i, "side", sig.Side, "sl", sig.StopLoss, "tp", sig.TakeProfit, "reason", sig.Reason)
				r.pending = sig
				r.state = PendingEntry
			}
		}

		r.report.Equity = append(r.report.Equity, EquityPoint{
			Index:   i,
			Time:    bar.Timestamp,
			Balance: r.acc.Balance,
			Equity:  r.acc.Equity(bar.Close),
		})
	}

	if r.state == Open {
		trades := r.acc.CloseAll(last, s.At(last))
		r.report.Trades = append(r.report.Trades, trades...)
		r.report.Equity[last].Balance = r.acc.Balance
		r.state = Closed
	}

	r.report.FinalBalance = r.acc.Balance
	r.report.Summary = performance.Analyze(e.cfg.InitialBalance, toPerformance(r.report.Trades))

	slog.Debug("Backtest finished", "run_id", r.report.RunID, "trades", len(r.report.Trades), "skipped", len(r.report.Skipped), "final_balance", r.report.FinalBalance)
	return r.report, nil
}

// fill turns a pending signal into a position at the bar's open, or drops it.
func (e *Engine) fill(r *run, i int, bar types.Bar) {
	sig := r.pending
	r.pending = Signal{}
	r.state = Flat

	if sig.Side != types.LONG && sig.Side != types.SHORT {
		r.skip(i, fmt.Sprintf("unknown side %q", sig.Side))
		return
	}

	price := bar.Open
	sign := sig.Side.Sign()
	distance := sign * (price - sig.StopLoss)
	if distance <= 0 {
		r.skip(i, "stop is not on the losing side of the fill")
		return
	}
	if sig.TakeProfit != 0 && sign*(sig.TakeProfit-price) <= 0 {
		r.skip(i, "target is not on the winning side of the fill")
		return
	}

	in := risk.Input{
		Balance:      r.acc.Balance,
		RiskPercent:  e.cfg.RiskPercent,
		StopDistance: distance,
	}
	if atr, ok := r.atr.At(i - 1); ok {
		in.ATR = atr
	}

	decision, err := e.sizer.Evaluate(in, r.acc.Exposure(bar.Timestamp))
	switch {
	case err != nil:
		r.skip(i, err.Error())
		return
	case decision.Breach != nil:
		r.skip(i, decision.Breach.Error())
		return
	case decision.Size <= 0:
		r.skip(i, "sizing returned no size")
		return
	}

	r.pos = r.acc.Open(sig.Side, i, bar.Timestamp, price, decision.Size, sig.StopLoss, sig.TakeProfit)
	r.state = Open
}

// manage applies the stop and target intrabar, then the exit rule at the close.
func (e *Engine) manage(r *run, s types.Series, i int, bar types.Bar, exit ExitRule) {
	if trades := r.acc.CheckExits(i, bar); len(trades) > 0 {
		r.report.Trades = append(r.report.Trades, trades...)
		r.pos = nil
		r.state = Closed
		return
	}

	if exit != nil && exit.Exit(s.Head(i+1), *r.pos) {
		trade := r.acc.Close(r.pos, i, bar.Timestamp, bar.Close, account.ExitRule)
		r.report.Trades = append(r.report.Trades, trade)
		r.pos = nil
		r.state = Closed
	}
}

func (r *run) skip(i int, reason string) {
	engineLog.Debug("Signal skipped", "index", i, "reason", reason)
	r.report.Skipped = append(r.report.Skipped, SkippedSignal{Index: i, Reason: reason})
}

func toPerformance(trades []SimulatedTrade) []performance.Trade {
	out := make([]performance.Trade, len(trades))
	for i, t := range trades {
		out[i] = performance.Trade{EntryTime: t.EntryTime, ExitTime: t.ExitTime, PnL: t.PnL, RMultiple: t.RMultiple}
	}
	return out
}
