package strategy

import (
	"context"
	"testing"

	"github.com/jwtly10/smcplan/internal/account"
	"github.com/jwtly10/smcplan/internal/backtest"
	"github.com/jwtly10/smcplan/internal/indicator"
	"github.com/jwtly10/smcplan/internal/planner"
	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/jwtly10/smcplan/internal/seriestest"
	"github.com/jwtly10/smcplan/internal/structure"
	"github.com/jwtly10/smcplan/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipSize(t *testing.T) {
	assert.Equal(t, 0.1, PipSize("NAS100_USD"))
	assert.Equal(t, 0.0001, PipSize("EUR_USD"))
	assert.Equal(t, 0.01, PipSize("USD_JPY"))
	assert.Equal(t, 1.0, PipSize("BTCUSDT"))
	assert.InDelta(t, 0.0025, PipsToPrice(25, 0.0001), 1e-12)
}

func signalsOver(rule backtest.EntryRule, s types.Series) map[int]backtest.Signal {
	out := make(map[int]backtest.Signal)
	for i := 1; i <= s.Len(); i++ {
		if sig, ok := rule.Entry(s.Head(i)); ok {
			out[i-1] = sig
		}
	}
	return out
}

func TestImpulseCandle_FiresOnImpulseBar(t *testing.T) {
	signals := signalsOver(NewImpulseCandle(), seriestest.UptrendWithOrderBlock())
	require.Len(t, signals, 1)

	sig, ok := signals[41]
	require.True(t, ok)
	assert.Equal(t, types.LONG, sig.Side)
	assert.InDelta(t, 138.4, sig.StopLoss, 1e-9)
	assert.InDelta(t, 152.2, sig.TakeProfit, 1e-9)
}

func crossSeries() types.Series {
	var closes []float64
	for i := 0; i < 30; i++ {
		closes = append(closes, 130-float64(i))
	}
	for i := 1; i <= 20; i++ {
		closes = append(closes, 101+float64(i))
	}
	for i := 1; i <= 20; i++ {
		closes = append(closes, 121-float64(i))
	}
	return seriestest.Daily().Closes(0.5, closes...).Series()
}

func TestEMACross_EntryAndExit(t *testing.T) {
	rule := EMACross{Fast: 3, Slow: 6, ATRPeriod: 3, StopATR: 1, RiskRatio: 2}
	s := crossSeries()

	signals := signalsOver(rule, s)
	require.NotEmpty(t, signals)

	first := s.Len()
	for i := range signals {
		first = min(first, i)
	}
	long := signals[first]
	assert.Equal(t, types.LONG, long.Side)
	assert.Greater(t, first, 29)
	assert.Less(t, long.StopLoss, s.At(first).Close)
	assert.Greater(t, long.TakeProfit, s.At(first).Close)

	pos := account.Position{Side: types.LONG, EntryIndex: first + 1}
	exited := false
	for i := first + 2; i <= s.Len(); i++ {
		if rule.Exit(s.Head(i), pos) {
			exited = true
			assert.Greater(t, i-1, 50, "bearish cross only after the top")
			break
		}
	}
	assert.True(t, exited)
}

func TestMaxBars(t *testing.T) {
	s := seriestest.SteadyUptrend(5)
	pos := account.Position{EntryIndex: 2}

	assert.False(t, MaxBars{Bars: 2}.Exit(s.Head(4), pos))
	assert.True(t, MaxBars{Bars: 2}.Exit(s.Head(5), pos))
}

func newAnalyzer(t *testing.T) *planner.Analyzer {
	t.Helper()
	det, err := structure.NewDetector(structure.DefaultConfig())
	require.NoError(t, err)
	sizer, err := risk.NewSizer(risk.DefaultParameters(), nil)
	require.NoError(t, err)
	comp, err := planner.NewComposer(planner.DefaultConfig(), sizer)
	require.NoError(t, err)
	return planner.NewAnalyzer(det, indicator.DefaultParams(), comp)
}

func TestStructureEntry(t *testing.T) {
	rule := StructureEntry{Analyzer: newAnalyzer(t), Lookback: 200}

	sig, ok := rule.Entry(seriestest.UptrendWithOrderBlock())
	require.True(t, ok)
	assert.Equal(t, types.LONG, sig.Side)
	assert.Less(t, sig.StopLoss, 138.0)
	assert.Greater(t, sig.TakeProfit, 151.0)

	_, ok = rule.Entry(seriestest.SteadyUptrend(60))
	assert.False(t, ok)

	_, ok = rule.Entry(seriestest.SteadyUptrend(10))
	assert.False(t, ok, "too short to analyze")
}

func TestStructureEntry_Backtest(t *testing.T) {
	sizer, err := risk.NewSizer(risk.DefaultParameters(), nil)
	require.NoError(t, err)
	engine, err := backtest.NewEngine(backtest.DefaultConfig(), sizer)
	require.NoError(t, err)

	rule := StructureEntry{Analyzer: newAnalyzer(t)}
	s := seriestest.UptrendWithOrderBlock()

	first, err := engine.Run(context.Background(), s, rule, MaxBars{Bars: 10})
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), s, rule, MaxBars{Bars: 10})
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	for _, trade := range first.Trades {
		assert.Greater(t, trade.EntryIndex, 40, "no setup exists before the order block forms")
	}
}
