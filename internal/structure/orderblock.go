package structure

import "github.com/jwtly10/smcplan/internal/types"

// orderBlocks finds the last opposite-colored candle before each impulse.
// Bullish: bearish candle i, bullish candle i+1, and close[j] - open[i+1] exceeds
// ImpulseMultiple * ATR[i] for some j within ImpulseMaxBars. Bearish is the mirror.
func (d *Detector) orderBlocks(v view) []OrderBlock {
	var out []OrderBlock
	n := v.bars.Len()

	for i := 0; i < n-1; i++ {
		atr, ok := v.atr.At(i)
		if !ok || atr <= 0 {
			continue
		}

		candle, next := v.bars.At(i), v.bars.At(i+1)
		var dir types.Direction
		switch {
		case candle.Bearish() && next.Bullish():
			dir = types.Bullish
		case candle.Bullish() && next.Bearish():
			dir = types.Bearish
		default:
			continue
		}

		threshold := d.cfg.ImpulseMultiple * atr
		end, impulse := -1, 0.0
		for k := 1; k <= d.cfg.ImpulseMaxBars && i+k < n; k++ {
			move := dir.Sign() * (v.bars.At(i+k).Close - next.Open)
			if move > threshold {
				end, impulse = i+k, move
				break
			}
		}
		if end < 0 {
			continue
		}

		ob := OrderBlock{
			Zone: Zone{
				Dir:   dir,
				Low:   candle.Low,
				High:  candle.High,
				Start: v.abs(i),
				End:   v.abs(end),
				Time:  candle.Timestamp,
			},
			Impulse:     impulse,
			Strength:    StrengthMedium,
			MitigatedAt: -1,
		}
		if impulse > candle.Close*d.cfg.StrongMovePercent/100 {
			ob.Strength = StrengthStrong
		}

		// Mitigated once price trades back into the block after the impulse
		for m := end + 1; m < n; m++ {
			bar := v.bars.At(m)
			if (dir == types.Bullish && bar.Low <= ob.High) || (dir == types.Bearish && bar.High >= ob.Low) {
				ob.Mitigated = true
				ob.MitigatedAt = v.abs(m)
				break
			}
		}

		detectorLog.Debug("Order block",
			"direction", dir,
			"index", ob.Start,
			"low", ob.Low,
			"high", ob.High,
			"impulse", impulse,
			"threshold", threshold,
			"mitigated", ob.Mitigated)

		out = append(out, ob)
	}
	return out
}
