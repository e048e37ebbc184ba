package seriestest

import "github.com/jwtly10/smcplan/internal/types"

// trendBar appends a bullish bar closing at c with a fixed 2.8 true range.
func (b *Builder) trendBar(c float64) *Builder {
	return b.Bar(c-0.8, c+0.3, c-2.5, c)
}

// SteadyUptrend returns n bullish bars closing at 100, 101, 102, ...
// It contains no impulse, gap, pattern or equal highs and lows.
func SteadyUptrend(n int) types.Series {
	b := Daily()
	for i := 0; i < n; i++ {
		b.trendBar(100 + float64(i))
	}
	return b.Series()
}

// UptrendWithOrderBlock returns 60 daily bars: a steady uptrend with a bearish
// candle at index 40 followed by an impulse, leaving a bullish order block at
// [138.0, 139.5] (bars 40-41) and a bullish fair value gap at [139.5, 142.5]
// (bars 40-42). Neither is revisited. The last close is 151.
func UptrendWithOrderBlock() types.Series {
	b := Daily()
	for i := 0; i < 40; i++ {
		b.trendBar(100 + float64(i))
	}
	b.Bar(139.2, 139.5, 138.0, 138.5)
	b.Bar(138.6, 143.3, 138.4, 143)
	b.Bar(143, 145.3, 142.5, 145)
	b.Bar(145.2, 146.3, 143.0, 146)
	for i := 44; i < 60; i++ {
		b.trendBar(146 + 0.3125*float64(i-43))
	}
	return b.Series()
}

// DowntrendWithOrderBlock mirrors UptrendWithOrderBlock around price 250: a
// bearish order block at [210.5, 212.0] (bars 40-41) and a bearish fair value
// gap at [207.5, 210.5] (bars 40-42). The last close is 199.
func DowntrendWithOrderBlock() types.Series {
	b := Daily()
	mirror := func(p float64) float64 { return 350 - p }
	add := func(o, h, l, c float64) {
		b.Bar(mirror(o), mirror(l), mirror(h), mirror(c))
	}
	for i := 0; i < 40; i++ {
		c := 100 + float64(i)
		add(c-0.8, c+0.3, c-2.5, c)
	}
	add(139.2, 139.5, 138.0, 138.5)
	add(138.6, 143.3, 138.4, 143)
	add(143, 145.3, 142.5, 145)
	add(145.2, 146.3, 143.0, 146)
	for i := 44; i < 60; i++ {
		c := 146 + 0.3125*float64(i-43)
		add(c-0.8, c+0.3, c-2.5, c)
	}
	return b.Series()
}
