package performance

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trades(pnls ...float64) []Trade {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Trade, len(pnls))
	for i, p := range pnls {
		out[i] = Trade{
			EntryTime: start.Add(time.Duration(i) * 24 * time.Hour),
			ExitTime:  start.Add(time.Duration(i)*24*time.Hour + 4*time.Hour),
			PnL:       p,
			RMultiple: p / 100,
		}
	}
	return out
}

func TestAnalyze_EmptyIsNoData(t *testing.T) {
	s := Analyze(10000, nil)

	assert.True(t, s.NoData)
	assert.False(t, s.WinRate.Defined)
	assert.False(t, s.ProfitFactor.Defined)
	assert.False(t, s.Sharpe.Defined)
	assert.False(t, s.Expectancy.Defined)
	assert.Equal(t, 10000.0, s.FinalBalance)
}

func TestAnalyze_AllWinsProfitFactorIsInfinity(t *testing.T) {
	s := Analyze(10000, trades(100, 200, 50))

	assert.True(t, s.ProfitFactor.Defined)
	assert.True(t, s.ProfitFactor.Infinite)
	assert.True(t, math.IsInf(s.ProfitFactor.Value, 1))
	assert.Equal(t, "Infinity", s.ProfitFactor.String())
	assert.Equal(t, 1.0, s.WinRate.Value)
	assert.Equal(t, 0.0, s.MaxDrawdown)
	assert.Equal(t, 3, s.MaxConsecutiveWins)
}

func TestAnalyze_BreakevenOnly(t *testing.T) {
	s := Analyze(10000, trades(0, 0))

	assert.Equal(t, Value(0), s.ProfitFactor)
	assert.Equal(t, 0.0, s.WinRate.Value)
	assert.False(t, s.Sharpe.Defined, "zero variance")
}

func TestAnalyze_MixedTrades(t *testing.T) {
	// balance: 10000 -> 10200 -> 10100 -> 9800 -> 10300
	s := Analyze(10000, trades(200, -100, -300, 500))

	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 2, s.LosingTrades)
	assert.InDelta(t, 0.5, s.WinRate.Value, 1e-12)
	assert.InDelta(t, 700, s.GrossProfit, 1e-9)
	assert.InDelta(t, 400, s.GrossLoss, 1e-9)
	assert.InDelta(t, 1.75, s.ProfitFactor.Value, 1e-12)
	assert.InDelta(t, 300, s.TotalPnL, 1e-9)
	assert.InDelta(t, 10300, s.FinalBalance, 1e-9)
	assert.InDelta(t, 350, s.AvgWin, 1e-9)
	assert.InDelta(t, 200, s.AvgLoss, 1e-9)
	assert.InDelta(t, 0.75, s.Expectancy.Value, 1e-12)

	assert.InDelta(t, 400, s.MaxDrawdown, 1e-9)
	assert.InDelta(t, 400.0/10200*100, s.MaxDrawdownPercent, 1e-9)
	assert.Equal(t, 2, s.MaxConsecutiveLosses)
	assert.Equal(t, 4*time.Hour, s.AvgTradeDuration)

	require.True(t, s.Sharpe.Defined)
	returns := []float64{200.0 / 10000, -100.0 / 10200, -300.0 / 10100, 500.0 / 9800}
	assert.InDelta(t, expectedSharpe(returns), s.Sharpe.Value, 1e-12)
}

func TestAnalyze_SingleTradeSharpeUndefined(t *testing.T) {
	s := Analyze(10000, trades(-50))

	assert.False(t, s.Sharpe.Defined)
	assert.Equal(t, Value(0), s.ProfitFactor)
	assert.InDelta(t, 50, s.MaxDrawdown, 1e-9)
}

func TestMetric_JSON(t *testing.T) {
	out, err := json.Marshal(struct {
		A Metric `json:"a"`
		B Metric `json:"b"`
		C Metric `json:"c"`
	}{Value(1.5), Infinity(), Undefined()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":"Infinity","c":null}`, string(out))

	var m Metric
	require.NoError(t, json.Unmarshal([]byte(`"Infinity"`), &m))
	assert.True(t, m.Infinite)
	require.NoError(t, json.Unmarshal([]byte(`2.25`), &m))
	assert.Equal(t, Value(2.25), m)
}

func expectedSharpe(r []float64) float64 {
	mean := 0.0
	for _, v := range r {
		mean += v
	}
	mean /= float64(len(r))
	ss := 0.0
	for _, v := range r {
		ss += (v - mean) * (v - mean)
	}
	return mean / math.Sqrt(ss/float64(len(r)-1))
}
