package risk

import (
	"errors"
	"testing"

	"github.com/jwtly10/smcplan/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedFractional_SizeTimesStopIsRisk(t *testing.T) {
	cases := []Input{
		{Balance: 2500, RiskPercent: 2.5, StopDistance: 13},
		{Balance: 10000, RiskPercent: 1, StopDistance: 0.0025},
		{Balance: 1, RiskPercent: 100, StopDistance: 1e6},
		{Balance: 123456.78, RiskPercent: 0.37, StopDistance: 4.2},
	}
	for _, in := range cases {
		size, err := FixedFractional{}.Size(in)
		require.NoError(t, err)
		assert.InDelta(t, in.Balance*in.RiskPercent/100, size*in.StopDistance, 1e-9*in.Balance)
	}
}

func TestFixedFractional_InvalidStop(t *testing.T) {
	for _, stop := range []float64{0, -1} {
		_, err := FixedFractional{}.Size(Input{Balance: 1000, RiskPercent: 1, StopDistance: stop})
		var stopErr *types.InvalidStopDistanceError
		require.True(t, errors.As(err, &stopErr), "stop %v", stop)
		assert.Equal(t, stop, stopErr.Distance)
	}
}

func TestFixedFractional_PipSizing(t *testing.T) {
	// 50 pip stop at $10 per pip risking $100 is 0.2 lots
	size, err := FixedFractional{}.Size(Input{Balance: 10000, RiskPercent: 1, StopDistance: 0.0050, PipSize: 0.0001, PipValue: 10})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, size, 1e-9)
}

func TestKelly_NeverNegative(t *testing.T) {
	in := Input{Balance: 10000, RiskPercent: 1, StopDistance: 2}
	for _, wr := range []float64{0, 0.1, 0.25, 0.33, 0.5, 0.75, 1} {
		for _, avgWin := range []float64{0.5, 1, 2, 3} {
			k := Kelly{WinRate: wr, AvgWinR: avgWin, AvgLossR: 1, Multiplier: 0.25}
			size, err := k.Size(in)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, size, 0.0)
		}
	}
}

func TestKelly_ZeroWhenNoEdge(t *testing.T) {
	in := Input{Balance: 10000, RiskPercent: 1, StopDistance: 2}

	// raw = 0.5*1 - 0.5*1 = 0
	size, err := Kelly{WinRate: 0.5, AvgWinR: 1, AvgLossR: 1, Multiplier: 0.25}.Size(in)
	require.NoError(t, err)
	assert.Equal(t, 0.0, size)

	// raw < 0
	size, err = Kelly{WinRate: 0.2, AvgWinR: 1, AvgLossR: 1, Multiplier: 0.25}.Size(in)
	require.NoError(t, err)
	assert.Equal(t, 0.0, size)
}

func TestKelly_DampedFraction(t *testing.T) {
	// raw = (0.6*2 - 0.4*1)/2 = 0.4, quarter Kelly = 0.1
	k := Kelly{WinRate: 0.6, AvgWinR: 2, AvgLossR: 1, Multiplier: 0.25}
	assert.InDelta(t, 0.1, k.Fraction(), 1e-12)

	size, err := k.Size(Input{Balance: 10000, StopDistance: 50})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, size, 1e-9)
}

func TestVolatility_UsesATR(t *testing.T) {
	size, err := Volatility{Multiplier: 2}.Size(Input{Balance: 10000, RiskPercent: 1, StopDistance: 5, ATR: 2.5})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, size, 1e-9)

	_, err = Volatility{Multiplier: 2}.Size(Input{Balance: 10000, RiskPercent: 1, StopDistance: 5})
	var invalid *types.InvalidParameterError
	assert.True(t, errors.As(err, &invalid))
}

func newSizer(t *testing.T, p Policy) *Sizer {
	t.Helper()
	s, err := NewSizer(DefaultParameters(), p)
	require.NoError(t, err)
	return s
}

func TestSizer_WithinLimits(t *testing.T) {
	s := newSizer(t, FixedFractional{})
	d, err := s.Evaluate(Input{Balance: 2500, RiskPercent: 2.5, StopDistance: 13}, Exposure{})
	require.NoError(t, err)

	assert.Nil(t, d.Breach)
	assert.InDelta(t, 62.5, d.RiskAmount, 1e-9)
	assert.InDelta(t, 62.5/13, d.Size, 1e-12)
}

func TestSizer_RiskPerTradeBreach(t *testing.T) {
	s := newSizer(t, FixedFractional{})
	d, err := s.Evaluate(Input{Balance: 10000, RiskPercent: 5, StopDistance: 10}, Exposure{})
	require.NoError(t, err)

	require.NotNil(t, d.Breach)
	assert.Equal(t, LimitRiskPerTrade, d.Breach.Limit)
	assert.InDelta(t, 300, d.Breach.Allowed, 1e-9)
	assert.InDelta(t, 500, d.Breach.Actual, 1e-9)
	assert.InDelta(t, 200, d.Breach.Excess, 1e-9)
	assert.True(t, d.Breach.Downsizable())
	assert.InDelta(t, 500, d.RiskAmount, 1e-9, "breaches are reported, not clipped")

	down := s.Downsize(d, 10000)
	assert.InDelta(t, 300, down.RiskAmount, 1e-9)
	assert.InDelta(t, 30, down.Size, 1e-9)
	assert.Nil(t, down.Breach)
}

func TestSizer_ExhaustedLimits(t *testing.T) {
	s := newSizer(t, FixedFractional{})
	in := Input{Balance: 10000, RiskPercent: 1, StopDistance: 10}

	tests := []struct {
		name     string
		exposure Exposure
		limit    Limit
		excess   float64
	}{
		{"daily", Exposure{DailyLoss: 650}, LimitDailyLoss, 50},
		{"weekly", Exposure{WeeklyLoss: 1000}, LimitWeeklyLoss, 0},
		{"positions", Exposure{OpenPositions: 3}, LimitOpenPositions, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := s.Evaluate(in, tt.exposure)
			require.NoError(t, err)
			require.NotNil(t, d.Breach)
			assert.Equal(t, tt.limit, d.Breach.Limit)
			assert.InDelta(t, tt.excess, d.Breach.Excess, 1e-9)
			assert.False(t, d.Breach.Downsizable())
			assert.NotEmpty(t, d.Breach.Guidance())
		})
	}

	d, err := s.Evaluate(in, Exposure{DailyLoss: 599, WeeklyLoss: 999, OpenPositions: 2})
	require.NoError(t, err)
	assert.Nil(t, d.Breach)
}

func TestSizer_PolicyErrorIsWrapped(t *testing.T) {
	s := newSizer(t, FixedFractional{})
	_, err := s.Evaluate(Input{Balance: 1000, RiskPercent: 1}, Exposure{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixed_fractional sizing")

	var stopErr *types.InvalidStopDistanceError
	assert.True(t, errors.As(err, &stopErr))
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy(DefaultPolicyConfig())
	require.NoError(t, err)
	assert.Equal(t, PolicyFixedFractional, p.Name())

	cfg := DefaultPolicyConfig()
	cfg.Policy = PolicyKelly
	p, err = NewPolicy(cfg)
	require.NoError(t, err)
	assert.Equal(t, PolicyKelly, p.Name())

	cfg.Policy = PolicyVolatility
	p, err = NewPolicy(cfg)
	require.NoError(t, err)
	assert.Equal(t, Volatility{Multiplier: 1.5}, p)

	cfg.Policy = "martingale"
	_, err = NewPolicy(cfg)
	assert.Error(t, err)
}

func TestCalculatePosition(t *testing.T) {
	calc, err := CalculatePosition(2500, 0, 151, 138)
	require.NoError(t, err)

	assert.InDelta(t, 62.5, calc.RiskAmount, 1e-9)
	assert.InDelta(t, 13, calc.StopDistance, 1e-9)
	assert.InDelta(t, 62.5/13, calc.Size, 1e-12)
	assert.InDelta(t, 125, calc.Profit2R, 1e-9)
	assert.InDelta(t, 187.5, calc.Profit3R, 1e-9)

	_, err = CalculatePosition(2500, 2, 100, 100)
	var stopErr *types.InvalidStopDistanceError
	assert.True(t, errors.As(err, &stopErr))
}

func TestParameters_Validate(t *testing.T) {
	assert.NoError(t, DefaultParameters().Validate())

	p := DefaultParameters()
	p.MaxRiskPercent = 0
	assert.Error(t, p.Validate())

	_, err := NewSizer(p, nil)
	assert.Error(t, err)
}
