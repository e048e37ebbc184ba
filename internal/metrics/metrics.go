// Package metrics instruments analyses and backtests with Prometheus.
package metrics

import (
	"time"

	"github.com/jwtly10/smcplan/internal/backtest"
	"github.com/jwtly10/smcplan/internal/planner"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the planner.
type Metrics struct {
	AnalysesTotal  *prometheus.CounterVec // labels: instrument
	SetupsTotal    *prometheus.CounterVec // labels: instrument, outcome
	AnalysisDur    prometheus.Histogram
	Confidence     *prometheus.GaugeVec // labels: instrument
	StructureCount *prometheus.GaugeVec // labels: instrument

	BacktestDur    prometheus.Histogram
	BacktestTrades prometheus.Counter
	BacktestPnL    *prometheus.GaugeVec // labels: instrument
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smcplan_analyses_total",
			Help: "Total analyses run",
		}, []string{"instrument"}),
		SetupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smcplan_setups_total",
			Help: "Analysis outcomes: viable, or the rejection reason",
		}, []string{"instrument", "outcome"}),
		AnalysisDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smcplan_analysis_duration_seconds",
			Help:    "Fetch-to-plan latency of one analysis",
			Buckets: prometheus.DefBuckets,
		}),
		Confidence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smcplan_setup_confidence",
			Help: "Confidence of the latest viable setup, 0 when rejected",
		}, []string{"instrument"}),
		StructureCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smcplan_structures",
			Help: "Structures detected in the latest analysis",
		}, []string{"instrument"}),

		BacktestDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smcplan_backtest_duration_seconds",
			Help:    "Wall time of one backtest run",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}),
		BacktestTrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smcplan_backtest_trades_total",
			Help: "Simulated trades closed across all backtests",
		}),
		BacktestPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smcplan_backtest_pnl",
			Help: "Net PnL of the latest backtest",
		}, []string{"instrument"}),
	}

	reg.MustRegister(
		m.AnalysesTotal,
		m.SetupsTotal,
		m.AnalysisDur,
		m.Confidence,
		m.StructureCount,
		m.BacktestDur,
		m.BacktestTrades,
		m.BacktestPnL,
	)
	return m
}

// ObserveAnalysis records one analysis and its outcome.
func (m *Metrics) ObserveAnalysis(a planner.Analysis, took time.Duration) {
	m.AnalysesTotal.WithLabelValues(a.Instrument).Inc()
	m.AnalysisDur.Observe(took.Seconds())
	m.StructureCount.WithLabelValues(a.Instrument).Set(float64(len(a.Structures)))

	outcome, confidence := "viable", 0.0
	switch {
	case a.Result.Setup != nil:
		confidence = a.Result.Setup.Confidence
	case a.Result.Rejection != nil:
		outcome = string(a.Result.Rejection.Reason)
	}
	m.SetupsTotal.WithLabelValues(a.Instrument, outcome).Inc()
	m.Confidence.WithLabelValues(a.Instrument).Set(confidence)
}

func (m *Metrics) ObserveBacktest(r *backtest.Report, took time.Duration) {
	m.BacktestDur.Observe(took.Seconds())
	m.BacktestTrades.Add(float64(len(r.Trades)))
	m.BacktestPnL.WithLabelValues(r.Instrument).Set(r.FinalBalance - r.InitialBalance)
}
