package main

import (
	"path/filepath"
	"testing"

	"github.com/jwtly10/smcplan/internal/config"
	"github.com/jwtly10/smcplan/internal/marketdata"
	"github.com/jwtly10/smcplan/internal/metrics"
	"github.com/jwtly10/smcplan/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "smcplan.db")
	a, err := newApp(cfg, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

func TestNewApp_WithoutCredentials(t *testing.T) {
	a := testApp(t, config.Default())
	require.NotNil(t, a.store, "journal works without a broker")

	_, err := a.marketSource()
	assert.ErrorIs(t, err, errNoCredentials)
}

func TestMarketSource_CachesBehindStore(t *testing.T) {
	cfg := config.Default()
	cfg.OANDA.AccountID = "101-004-0000000-001"
	cfg.OANDA.APIKey = "key"
	a := testApp(t, cfg)

	src, err := a.marketSource()
	require.NoError(t, err)
	assert.IsType(t, &marketdata.Cached{}, src)

	again, err := a.marketSource()
	require.NoError(t, err)
	assert.Same(t, src, again)
}

func TestPosition(t *testing.T) {
	a := testApp(t, config.Default())

	t.Run("explicit stop", func(t *testing.T) {
		c, err := a.position(options{side: string(types.LONG), entry: 1.1, stop: 1.095})
		require.NoError(t, err)
		assert.InDelta(t, 100, c.RiskAmount, 1e-9)
		assert.InEpsilon(t, 20000, c.Size, 1e-9)
		assert.InDelta(t, 300, c.Profit3R, 1e-9)
	})

	t.Run("stop in pips", func(t *testing.T) {
		long, err := a.position(options{side: string(types.LONG), entry: 1.1, stopPips: 20})
		require.NoError(t, err)
		assert.InDelta(t, 0.002, long.StopDistance, 1e-12)
		assert.InEpsilon(t, 50000, long.Size, 1e-9)

		short, err := a.position(options{side: string(types.SHORT), entry: 1.1, stopPips: 20})
		require.NoError(t, err)
		assert.InDelta(t, long.Size, short.Size, 1e-6)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := a.position(options{side: "", entry: 1.1, stop: 1.095})
		assert.ErrorContains(t, err, "unknown side")

		_, err = a.position(options{side: string(types.LONG), entry: 0, stop: 1.095})
		var invalid *types.InvalidParameterError
		assert.ErrorAs(t, err, &invalid)
	})
}
