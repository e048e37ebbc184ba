package metrics

import (
	"testing"
	"time"

	"github.com/jwtly10/smcplan/internal/backtest"
	"github.com/jwtly10/smcplan/internal/planner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveAnalysis(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAnalysis(planner.Analysis{
		Instrument: "EUR_USD",
		Result:     planner.Result{Setup: &planner.TradeSetup{Confidence: 55}},
	}, 20*time.Millisecond)
	m.ObserveAnalysis(planner.Analysis{
		Instrument: "EUR_USD",
		Result:     planner.Result{Rejection: &planner.NoViableSetup{Reason: planner.ReasonWeakConfluence}},
	}, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("EUR_USD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SetupsTotal.WithLabelValues("EUR_USD", "viable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SetupsTotal.WithLabelValues("EUR_USD", string(planner.ReasonWeakConfluence))))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Confidence.WithLabelValues("EUR_USD")), "latest analysis was rejected")
	assert.Equal(t, 1, testutil.CollectAndCount(m.AnalysisDur))
}

func TestObserveBacktest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBacktest(&backtest.Report{
		Instrument:     "NAS100_USD",
		InitialBalance: 10000,
		FinalBalance:   10250,
		Trades:         make([]backtest.SimulatedTrade, 3),
	}, time.Second)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.BacktestTrades))
	assert.Equal(t, 250.0, testutil.ToFloat64(m.BacktestPnL.WithLabelValues("NAS100_USD")))
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
