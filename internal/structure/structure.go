// Package structure detects Smart-Money-Concept structures in a price series:
// order blocks, liquidity zones and their sweeps, fair value gaps, plus a few
// classical candle patterns and swing-based market structure.
//
// Structures are derived values. They are recomputed on every Detect call and
// never mutated afterwards; mitigation, fills and sweeps are recorded as flags.
package structure

import (
	"time"

	"github.com/jwtly10/smcplan/internal/types"
)

type Kind string

const (
	KindOrderBlock    Kind = "order_block"
	KindLiquidityZone Kind = "liquidity_zone"
	KindFairValueGap  Kind = "fair_value_gap"
	KindPattern       Kind = "pattern"
)

// Structure is implemented by OrderBlock, LiquidityZone, FairValueGap and Pattern only.
type Structure interface {
	Kind() Kind
	Direction() types.Direction
	// Range returns the price range [low, high] covered by the structure.
	Range() (low, high float64)
	// Formed returns the absolute series indices of the first and last bar that formed it.
	Formed() (start, end int)
	// FormedAt is the timestamp of the bar that completed the structure.
	FormedAt() time.Time
	// Active is false once the structure has been mitigated, filled or swept.
	Active() bool

	sealed()
}

// Zone carries the fields every structure shares.
type Zone struct {
	Dir   types.Direction `json:"direction"`
	Low   float64         `json:"low"`
	High  float64         `json:"high"`
	Start int             `json:"start_index"`
	End   int             `json:"end_index"`
	Time  time.Time       `json:"formed_at"`
}

func (z Zone) Direction() types.Direction  { return z.Dir }
func (z Zone) Range() (float64, float64)   { return z.Low, z.High }
func (z Zone) Formed() (int, int)          { return z.Start, z.End }
func (z Zone) FormedAt() time.Time         { return z.Time }
func (z Zone) Overlaps(o Zone) bool        { return z.Low <= o.High && o.Low <= z.High }
func (z Zone) Contains(price float64) bool { return price >= z.Low && price <= z.High }
func (Zone) sealed()                       {}

type Strength string

const (
	StrengthStrong Strength = "strong"
	StrengthMedium Strength = "medium"
)

// OrderBlock is the last opposite-colored candle before an impulse move.
type OrderBlock struct {
	Zone
	Impulse     float64  `json:"impulse"`
	Strength    Strength `json:"strength"`
	Mitigated   bool     `json:"mitigated"`
	MitigatedAt int      `json:"mitigated_at"`
}

func (OrderBlock) Kind() Kind     { return KindOrderBlock }
func (o OrderBlock) Active() bool { return !o.Mitigated }

type Side string

const (
	// BuySide liquidity rests above equal highs.
	BuySide Side = "buy_side"
	// SellSide liquidity rests below equal lows.
	SellSide Side = "sell_side"
)

// LiquidityZone is a cluster of equal highs or lows. Equal highs are bearish
// (a sweep above them tends to reverse down), equal lows are bullish.
type LiquidityZone struct {
	Zone
	Level   float64 `json:"level"`
	Touches int     `json:"touches"`
	Side    Side    `json:"side"`
	Swept   bool    `json:"swept"`
	SweptAt int     `json:"swept_at"`
	// SweepExtreme is the wick extreme of the sweeping bar.
	SweepExtreme float64 `json:"sweep_extreme,omitempty"`
}

func (LiquidityZone) Kind() Kind     { return KindLiquidityZone }
func (l LiquidityZone) Active() bool { return !l.Swept }

// FairValueGap is a three-candle imbalance between candle 1 and candle 3.
type FairValueGap struct {
	Zone
	Midpoint float64 `json:"midpoint"`
	Size     float64 `json:"size"`
	Filled   bool    `json:"filled"`
	FilledAt int     `json:"filled_at"`
}

func (FairValueGap) Kind() Kind     { return KindFairValueGap }
func (f FairValueGap) Active() bool { return !f.Filled }

type PatternName string

const (
	Engulfing PatternName = "engulfing"
)

// Pattern is a classical candle pattern.
type Pattern struct {
	Zone
	Name PatternName `json:"name"`
}

func (Pattern) Kind() Kind   { return KindPattern }
func (Pattern) Active() bool { return true }

// OfType returns the structures of concrete type T, preserving order.
func OfType[T Structure](list []Structure) []T {
	var out []T
	for _, s := range list {
		if v, ok := s.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
