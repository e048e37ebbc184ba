package structure

import "github.com/jwtly10/smcplan/internal/types"

// fairValueGaps finds three-candle imbalances. A gap is filled once a later bar
// trades through its full range.
func (d *Detector) fairValueGaps(v view) []FairValueGap {
	var out []FairValueGap
	n := v.bars.Len()

	for i := 2; i < n; i++ {
		c1, c2, c3 := v.bars.At(i-2), v.bars.At(i-1), v.bars.At(i)

		var gap FairValueGap
		switch {
		case c1.High < c3.Low:
			gap.Zone = Zone{Dir: types.Bullish, Low: c1.High, High: c3.Low}
		case c1.Low > c3.High:
			gap.Zone = Zone{Dir: types.Bearish, Low: c3.High, High: c1.Low}
		default:
			continue
		}

		gap.Size = gap.High - gap.Low
		if gap.Size < c2.Close*d.cfg.MinGapPercent/100 {
			continue
		}
		gap.Midpoint = (gap.High + gap.Low) / 2
		gap.Start, gap.End = v.abs(i-2), v.abs(i)
		gap.Time = c3.Timestamp
		gap.FilledAt = -1

		for m := i + 1; m < n; m++ {
			bar := v.bars.At(m)
			if (gap.Dir == types.Bullish && bar.Low <= gap.Low) || (gap.Dir == types.Bearish && bar.High >= gap.High) {
				gap.Filled = true
				gap.FilledAt = v.abs(m)
				break
			}
		}

		detectorLog.Debug("Fair value gap", "direction", gap.Dir, "low", gap.Low, "high", gap.High, "filled", gap.Filled)
		out = append(out, gap)
	}
	return out
}
