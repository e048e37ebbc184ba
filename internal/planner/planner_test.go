package planner

import (
	"testing"

	"github.com/jwtly10/smcplan/internal/indicator"
	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/jwtly10/smcplan/internal/seriestest"
	"github.com/jwtly10/smcplan/internal/structure"
	"github.com/jwtly10/smcplan/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T, cfg Config, params risk.Parameters) *Analyzer {
	t.Helper()
	det, err := structure.NewDetector(structure.DefaultConfig())
	require.NoError(t, err)
	sizer, err := risk.NewSizer(params, risk.FixedFractional{})
	require.NoError(t, err)
	comp, err := NewComposer(cfg, sizer)
	require.NoError(t, err)
	return NewAnalyzer(det, indicator.DefaultParams(), comp)
}

func noBuffer() Config {
	cfg := DefaultConfig()
	cfg.StopBufferATR = 0
	return cfg
}

func TestAnalyze_UptrendWithOrderBlock(t *testing.T) {
	a := newAnalyzer(t, noBuffer(), risk.DefaultParameters())

	analysis, err := a.Analyze(seriestest.UptrendWithOrderBlock(), Account{Balance: 2500, RiskPercent: 2.5})
	require.NoError(t, err)
	require.Len(t, analysis.Structures, 2)

	setup := analysis.Result.Setup
	require.NotNil(t, setup, "rejected: %+v", analysis.Result.Rejection)
	assert.Nil(t, analysis.Result.Rejection)

	assert.Equal(t, types.LONG, setup.Bias)
	assert.InDelta(t, 151.0, setup.Entry, 1e-9)
	assert.InDelta(t, 138.0, setup.StopLoss, 1e-9)
	assert.InDelta(t, 13.0, setup.StopDistance(), 1e-9)
	assert.InDelta(t, 62.50, setup.RiskAmount, 1e-9)
	assert.InDelta(t, 62.50/13, setup.Size, 1e-12)

	require.Len(t, setup.TakeProfits, 3)
	assert.InDelta(t, 164.0, setup.TakeProfits[0].Price, 1e-9)
	assert.Equal(t, 0.5, setup.TakeProfits[0].Fraction)
	assert.InDelta(t, 177.0, setup.TakeProfits[1].Price, 1e-9)
	assert.InDelta(t, 190.0, setup.TakeProfits[2].Price, 1e-9)

	assert.Greater(t, setup.Confidence, 0.0)
	assert.LessOrEqual(t, setup.Confidence, 100.0)
	assert.NotEmpty(t, setup.ID)
	assert.Len(t, setup.Warnings, len(Warnings))
	assert.Len(t, setup.KeyLevels, 2)
	assert.NoError(t, setup.Validate(75))
}

func TestAnalyze_NoImpulseIsNoViableSetup(t *testing.T) {
	a := newAnalyzer(t, DefaultConfig(), risk.DefaultParameters())

	analysis, err := a.Analyze(seriestest.SteadyUptrend(60), Account{Balance: 2500, RiskPercent: 2.5})
	require.NoError(t, err)

	assert.Empty(t, analysis.Structures)
	assert.Nil(t, analysis.Result.Setup)
	require.NotNil(t, analysis.Result.Rejection)
	assert.Equal(t, ReasonNoStructures, analysis.Result.Rejection.Reason)
	assert.NotEmpty(t, analysis.Result.Guidance())
}

func TestAnalyze_RewardRiskBelowMinimum(t *testing.T) {
	params := risk.DefaultParameters()
	params.MinRewardRisk = 1.5
	a := newAnalyzer(t, noBuffer(), params)

	analysis, err := a.Analyze(seriestest.UptrendWithOrderBlock(), Account{Balance: 2500, RiskPercent: 2.5})
	require.NoError(t, err)

	assert.Nil(t, analysis.Result.Setup)
	require.NotNil(t, analysis.Result.Rejection)
	assert.Equal(t, ReasonRewardRisk, analysis.Result.Rejection.Reason)
}

func TestAnalyze_RiskLimitBreach(t *testing.T) {
	a := newAnalyzer(t, noBuffer(), risk.DefaultParameters())

	analysis, err := a.Analyze(seriestest.UptrendWithOrderBlock(), Account{Balance: 2500, RiskPercent: 5})
	require.NoError(t, err)

	rej := analysis.Result.Rejection
	require.NotNil(t, rej)
	assert.Equal(t, ReasonRiskLimit, rej.Reason)
	require.NotNil(t, rej.Breach)
	assert.Equal(t, risk.LimitRiskPerTrade, rej.Breach.Limit)
	assert.InDelta(t, 50.0, rej.Breach.Excess, 1e-9)
	assert.Contains(t, rej.Guidance(), "per-trade cap")
}

func TestAnalyze_DownsizeOnBreach(t *testing.T) {
	cfg := noBuffer()
	cfg.DownsizeOnBreach = true
	a := newAnalyzer(t, cfg, risk.DefaultParameters())

	analysis, err := a.Analyze(seriestest.UptrendWithOrderBlock(), Account{Balance: 2500, RiskPercent: 5})
	require.NoError(t, err)

	setup := analysis.Result.Setup
	require.NotNil(t, setup)
	assert.True(t, setup.Downsized)
	assert.InDelta(t, 75.0, setup.RiskAmount, 1e-9)
	assert.InDelta(t, 75.0/13, setup.Size, 1e-12)
}

func TestAnalyze_ExhaustedDailyLossIsNotDownsized(t *testing.T) {
	cfg := noBuffer()
	cfg.DownsizeOnBreach = true
	a := newAnalyzer(t, cfg, risk.DefaultParameters())

	acct := Account{Balance: 2500, RiskPercent: 2.5, Exposure: risk.Exposure{DailyLoss: 200}}
	analysis, err := a.Analyze(seriestest.UptrendWithOrderBlock(), acct)
	require.NoError(t, err)

	rej := analysis.Result.Rejection
	require.NotNil(t, rej)
	assert.Equal(t, risk.LimitDailyLoss, rej.Breach.Limit)
}

func TestAnalyze_BearishMirror(t *testing.T) {
	a := newAnalyzer(t, noBuffer(), risk.DefaultParameters())

	analysis, err := a.Analyze(seriestest.DowntrendWithOrderBlock(), Account{Balance: 2500, RiskPercent: 2.5})
	require.NoError(t, err)

	setup := analysis.Result.Setup
	require.NotNil(t, setup, "rejected: %+v", analysis.Result.Rejection)
	assert.Equal(t, types.SHORT, setup.Bias)
	assert.InDelta(t, 199.0, setup.Entry, 1e-9)
	assert.InDelta(t, 212.0, setup.StopLoss, 1e-9)
	assert.InDelta(t, 186.0, setup.TakeProfits[0].Price, 1e-9)
}

func TestCompose_FallbackStopWithoutAnchor(t *testing.T) {
	s := seriestest.UptrendWithOrderBlock()
	snap, err := indicator.Compute(s, indicator.DefaultParams())
	require.NoError(t, err)

	sizer, err := risk.NewSizer(risk.DefaultParameters(), nil)
	require.NoError(t, err)
	comp, err := NewComposer(DefaultConfig(), sizer)
	require.NoError(t, err)

	// only the gap: it scores but cannot anchor a stop
	gap := structure.FairValueGap{Zone: structure.Zone{Dir: types.Bullish, Low: 139.5, High: 142.5, Start: 40, End: 42}, FilledAt: -1}
	res, err := comp.Compose(Input{Series: s, Indicators: snap, Structures: []structure.Structure{gap}, Balance: 2500, RiskPercent: 1})
	require.NoError(t, err)
	require.NotNil(t, res.Setup, "rejected: %+v", res.Rejection)

	atr := snap.ATR.Last()
	assert.InDelta(t, 151-1.5*atr, res.Setup.StopLoss, 1e-9)
}

func TestAnalyze_NegativeKellyEdgeIsZeroSize(t *testing.T) {
	det, err := structure.NewDetector(structure.DefaultConfig())
	require.NoError(t, err)
	sizer, err := risk.NewSizer(risk.DefaultParameters(), risk.Kelly{WinRate: 0.3, AvgWinR: 1, AvgLossR: 1, Multiplier: 0.25})
	require.NoError(t, err)
	comp, err := NewComposer(noBuffer(), sizer)
	require.NoError(t, err)
	a := NewAnalyzer(det, indicator.DefaultParams(), comp)

	analysis, err := a.Analyze(seriestest.UptrendWithOrderBlock(), Account{Balance: 2500, RiskPercent: 2.5})
	require.NoError(t, err)

	assert.Nil(t, analysis.Result.Setup)
	rej := analysis.Result.Rejection
	require.NotNil(t, rej)
	assert.Equal(t, ReasonZeroSize, rej.Reason)
	assert.Contains(t, rej.Detail, "kelly")
	assert.Nil(t, rej.Breach)
	assert.Contains(t, rej.Guidance(), "do not show an edge")
	assert.Equal(t, rej.Guidance(), analysis.Result.Guidance())
}

func TestCompose_InvalidInput(t *testing.T) {
	sizer, err := risk.NewSizer(risk.DefaultParameters(), nil)
	require.NoError(t, err)
	comp, err := NewComposer(DefaultConfig(), sizer)
	require.NoError(t, err)

	_, err = comp.Compose(Input{Series: seriestest.SteadyUptrend(30)})
	var invalid *types.InvalidParameterError
	assert.ErrorAs(t, err, &invalid)
}

func TestTradeSetup_Validate(t *testing.T) {
	setup := &TradeSetup{
		Bias:     types.LONG,
		Entry:    100,
		StopLoss: 95,
		TakeProfits: []TakeProfit{
			{Price: 105, Fraction: 0.5},
			{Price: 110, Fraction: 0.3},
			{Price: 115, Fraction: 0.2},
		},
		RiskAmount: 50,
	}
	assert.NoError(t, setup.Validate(50))
	assert.Error(t, setup.Validate(49))

	setup.TakeProfits[1].Price = 104
	assert.Error(t, setup.Validate(50), "take profits must move away from entry")

	setup.TakeProfits[1].Price = 110
	setup.StopLoss = 101
	assert.Error(t, setup.Validate(50), "stop must be on the losing side")
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.CloseFractions = []float64{0.5, 0.3, 0.3}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.RewardMultiples = []float64{1, 3, 2}
	assert.Error(t, cfg.Validate())
}

func TestForProfile(t *testing.T) {
	for _, p := range []Profile{Scalping, Swing, Trend, Sniper} {
		det, cfg, err := ForProfile(p, structure.DefaultConfig(), DefaultConfig())
		require.NoError(t, err, p)
		assert.NoError(t, det.Validate(), p)
		assert.NoError(t, cfg.Validate(), p)
	}

	_, _, err := ForProfile("yolo", structure.DefaultConfig(), DefaultConfig())
	assert.Error(t, err)
}
