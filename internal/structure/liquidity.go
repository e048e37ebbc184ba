package structure

import (
	"fmt"
	"math"

	"github.com/jwtly10/smcplan/internal/types"
)

type cluster struct {
	level   float64
	sum     float64
	touches int
	low     float64
	high    float64
	first   int
	last    int
}

// liquidityZones clusters equal highs (buy-side) and equal lows (sell-side).
func (d *Detector) liquidityZones(v view) []LiquidityZone {
	highs := d.clusterLevels(v, func(b types.Bar) float64 { return b.High })
	lows := d.clusterLevels(v, func(b types.Bar) float64 { return b.Low })

	var out []LiquidityZone
	for _, c := range highs {
		out = append(out, d.sweep(v, c, BuySide))
	}
	for _, c := range lows {
		out = append(out, d.sweep(v, c, SellSide))
	}
	return out
}

// clusterLevels groups prices within the equal tolerance of a cluster's running mean.
// Quadratic in the worst case, bounded by the window length.
func (d *Detector) clusterLevels(v view, price func(types.Bar) float64) []cluster {
	tol := d.cfg.EqualTolerancePercent / 100
	var clusters []*cluster

	for i := 0; i < v.bars.Len(); i++ {
		p := price(v.bars.At(i))

		var best *cluster
		bestDist := math.Inf(1)
		for _, c := range clusters {
			dist := math.Abs(p - c.level)
			if dist <= tol*c.level && dist < bestDist {
				best, bestDist = c, dist
			}
		}

		if best == nil {
			clusters = append(clusters, &cluster{level: p, sum: p, touches: 1, low: p, high: p, first: i, last: i})
			continue
		}
		best.touches++
		best.sum += p
		best.level = best.sum / float64(best.touches)
		best.low = math.Min(best.low, p)
		best.high = math.Max(best.high, p)
		best.last = i
	}

	var out []cluster
	for _, c := range clusters {
		if c.touches >= d.cfg.MinTouches {
			out = append(out, *c)
		}
	}
	return out
}

// sweep builds the zone for a cluster and flags the first stop-hunt after its last touch:
// a wick beyond the level whose body closes back on the other side in the same or next bar.
func (d *Detector) sweep(v view, c cluster, side Side) LiquidityZone {
	tol := d.cfg.EqualTolerancePercent / 100
	dir := types.Bearish
	if side == SellSide {
		dir = types.Bullish
	}

	lz := LiquidityZone{
		Zone: Zone{
			Dir:   dir,
			Low:   c.low,
			High:  c.high,
			Start: v.abs(c.first),
			End:   v.abs(c.last),
			Time:  v.bars.At(c.last).Timestamp,
		},
		Level:   c.level,
		Touches: c.touches,
		Side:    side,
		SweptAt: -1,
	}

	n := v.bars.Len()
	for m := c.last + 1; m < n; m++ {
		bar := v.bars.At(m)

		var pierced bool
		var closedBack func(types.Bar) bool
		if side == BuySide {
			pierced = bar.High > c.level*(1+tol)
			closedBack = func(b types.Bar) bool { return b.Close < c.level }
		} else {
			pierced = bar.Low < c.level*(1-tol)
			closedBack = func(b types.Bar) bool { return b.Close > c.level }
		}
		if !pierced {
			continue
		}

		at := -1
		if closedBack(bar) {
			at = m
		} else if m+1 < n && closedBack(v.bars.At(m+1)) {
			at = m + 1
		}
		if at < 0 {
			// Price accepted beyond the level; later wicks are not stop hunts of this cluster
			break
		}

		lz.Swept = true
		lz.SweptAt = v.abs(at)
		if side == BuySide {
			lz.SweepExtreme = bar.High
		} else {
			lz.SweepExtreme = bar.Low
		}
		break
	}

	detectorLog.Debug("Liquidity zone",
		"side", side,
		"level", lz.Level,
		"touches", lz.Touches,
		"swept", lz.Swept,
		"sweptAt", lz.SweptAt)

	return lz
}

// Describe renders a short human readable summary of the zone.
func (l LiquidityZone) Describe() string {
	label := "Buy-side"
	if l.Side == SellSide {
		label = "Sell-side"
	}
	msg := fmt.Sprintf("%s liquidity at %.5g (tested %d times)", label, l.Level, l.Touches)
	if l.Swept {
		msg += ", swept"
	}
	return msg
}
