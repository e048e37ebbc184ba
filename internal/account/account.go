// Package account simulates capital and a single open position for backtests.
package account

import (
	"fmt"
	"math"
	"time"

	"github.com/jwtly10/smcplan/internal/logging"
	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/jwtly10/smcplan/internal/types"
)

var accountLog = logging.New("account")

type ExitReason string

const (
	StopLoss   ExitReason = "STOP_LOSS"
	TakeProfit ExitReason = "TAKE_PROFIT"
	ExitRule   ExitReason = "EXIT_RULE"
	EndOfData  ExitReason = "END_OF_BACKTEST"
)

type Position struct {
	ID         int
	Side       types.Side
	EntryIndex int
	EntryTime  time.Time
	EntryPrice float64
	Size       float64
	StopLoss   float64
	// TakeProfit of zero means no engine-enforced target.
	TakeProfit float64
	RiskAmount float64
}

// Unrealized is the open profit or loss at price.
func (p *Position) Unrealized(price float64) float64 {
	return p.Side.Sign() * (price - p.EntryPrice) * p.Size
}

type Trade struct {
	ID         int        `json:"id"`
	Side       types.Side `json:"direction"`
	EntryIndex int        `json:"entry_index"`
	ExitIndex  int        `json:"exit_index"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Size       float64    `json:"size"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	RiskAmount float64    `json:"risk_amount"`
	PnL        float64    `json:"pnl"`
	RMultiple  float64    `json:"r_multiple"`
	ExitReason ExitReason `json:"exit_reason"`
	// Forced is set when the position was still open at the end of the data.
	Forced bool `json:"forced_close"`
}

func (t Trade) Print() {
	fmt.Printf("#%d | %s | Entry: %.5f @ %s | Exit: %.5f @ %s | P&L: %.2f (%.2fR) | %s\n",
		t.ID,
		t.Side,
		t.EntryPrice,
		t.EntryTime.Format("2006-01-02 15:04"),
		t.ExitPrice,
		t.ExitTime.Format("2006-01-02 15:04"),
		t.PnL,
		t.RMultiple,
		t.ExitReason,
	)
}

type Account struct {
	Balance        float64
	openPositions  []*Position
	closed         []Trade
	nextPositionID int
}

func NewAccount(initialBalance float64) *Account {
	return &Account{
		Balance:        initialBalance,
		nextPositionID: 1,
	}
}

// Open records a filled position. Risk is measured from the fill to the stop.
func (a *Account) Open(side types.Side, index int, at time.Time, price, size, stop, target float64) *Position {
	pos := &Position{
		ID:         a.nextPositionID,
		Side:       side,
		EntryIndex: index,
		EntryTime:  at,
		EntryPrice: price,
		Size:       size,
		StopLoss:   stop,
		TakeProfit: target,
		RiskAmount: math.Abs(price-stop) * size,
	}
	accountLog.Info("Opening trade", "id", pos.ID, "side", side, "price", price, "size", size, "sl", stop, "tp", target, "timestamp", at)

	a.nextPositionID++
	a.openPositions = append(a.openPositions, pos)
	return pos
}

// CheckExits closes positions whose stop or target was touched by bar. The stop
// is checked first, so a bar touching both resolves as a loss. A bar opening
// beyond a level fills at the open.
func (a *Account) CheckExits(index int, bar types.Bar) []Trade {
	var closedTrades []Trade
	remaining := a.openPositions[:0]

	for _, pos := range a.openPositions {
		price, reason, hit := exitFor(pos, bar)
		if !hit {
			remaining = append(remaining, pos)
			continue
		}
		accountLog.Debug("Exit level hit", "position_id", pos.ID, "reason", reason, "price", price, "bar_low", bar.Low, "bar_high", bar.High)
		closedTrades = append(closedTrades, a.closePosition(pos, index, bar.Timestamp, price, reason))
	}

	a.openPositions = remaining
	return closedTrades
}

func exitFor(pos *Position, bar types.Bar) (float64, ExitReason, bool) {
	if pos.Side == types.LONG {
		switch {
		case bar.Open <= pos.StopLoss:
			return bar.Open, StopLoss, true
		case bar.Low <= pos.StopLoss:
			return pos.StopLoss, StopLoss, true
		case pos.TakeProfit > 0 && bar.Open >= pos.TakeProfit:
			return bar.Open, TakeProfit, true
		case pos.TakeProfit > 0 && bar.High >= pos.TakeProfit:
			return pos.TakeProfit, TakeProfit, true
		}
		return 0, "", false
	}

	switch {
	case bar.Open >= pos.StopLoss:
		return bar.Open, StopLoss, true
	case bar.High >= pos.StopLoss:
		return pos.StopLoss, StopLoss, true
	case pos.TakeProfit > 0 && bar.Open <= pos.TakeProfit:
		return bar.Open, TakeProfit, true
	case pos.TakeProfit > 0 && bar.Low <= pos.TakeProfit:
		return pos.TakeProfit, TakeProfit, true
	}
	return 0, "", false
}

// Close exits a position at price.
func (a *Account) Close(pos *Position, index int, at time.Time, price float64, reason ExitReason) Trade {
	for i, p := range a.openPositions {
		if p == pos {
			a.openPositions = append(a.openPositions[:i], a.openPositions[i+1:]...)
			break
		}
	}
	return a.closePosition(pos, index, at, price, reason)
}

func (a *Account) closePosition(pos *Position, index int, at time.Time, price float64, reason ExitReason) Trade {
	pnl := pos.Unrealized(price)
	a.Balance += pnl

	var r float64
	if pos.RiskAmount > 0 {
		r = pnl / pos.RiskAmount
	}

	accountLog.Info("Closed position", "id", pos.ID, "exit_price", price, "pnl", pnl, "r", r, "reason", reason, "timestamp", at)

	trade := Trade{
		ID:         pos.ID,
		Side:       pos.Side,
		EntryIndex: pos.EntryIndex,
		ExitIndex:  index,
		EntryTime:  pos.EntryTime,
		ExitTime:   at,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Size:       pos.Size,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
		RiskAmount: pos.RiskAmount,
		PnL:        pnl,
		RMultiple:  r,
		ExitReason: reason,
		Forced:     reason == EndOfData,
	}
	a.closed = append(a.closed, trade)
	return trade
}

// CloseAll force-closes every open position at the bar's close.
func (a *Account) CloseAll(index int, bar types.Bar) []Trade {
	var trades []Trade
	for _, pos := range a.openPositions {
		trades = append(trades, a.closePosition(pos, index, bar.Timestamp, bar.Close, EndOfData))
	}
	a.openPositions = nil
	return trades
}

func (a *Account) PositionCount() int { return len(a.openPositions) }

// Equity is the balance plus unrealized profit at price.
func (a *Account) Equity(price float64) float64 {
	eq := a.Balance
	for _, pos := range a.openPositions {
		eq += pos.Unrealized(price)
	}
	return eq
}

// Exposure reports net realized losses for the UTC day and ISO week of now,
// and the open position count, in the form the risk sizer expects.
func (a *Account) Exposure(now time.Time) risk.Exposure {
	now = now.UTC()
	year, week := now.ISOWeek()
	day := now.YearDay()

	var daily, weekly float64
	for _, t := range a.closed {
		exit := t.ExitTime.UTC()
		if y, w := exit.ISOWeek(); y == year && w == week {
			weekly += t.PnL
			if exit.Year() == now.Year() && exit.YearDay() == day {
				daily += t.PnL
			}
		}
	}

	return risk.Exposure{
		DailyLoss:     math.Max(0, -daily),
		WeeklyLoss:    math.Max(0, -weekly),
		OpenPositions: a.PositionCount(),
	}
}
