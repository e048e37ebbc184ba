package oanda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jwtly10/smcplan/internal/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candleServer(t *testing.T, candles []Candlestick) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/v3/accounts/acc-1/instruments/EUR_USD/candles", r.URL.Path)

		from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
		to, _ := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)

		var out []Candlestick
		for _, c := range candles {
			ts, err := time.Parse(time.RFC3339, c.Time)
			require.NoError(t, err)
			if ts.Unix() > from && ts.Unix() <= to {
				out = append(out, c)
			}
		}
		_ = json.NewEncoder(w).Encode(CandlestickResponse{Candles: out, Instrument: "EUR_USD", Granularity: D})
	}))
}

func candle(ts string, o, h, l, c string, complete bool) Candlestick {
	return Candlestick{
		Time:     ts,
		Mid:      CandleStickData{O: PriceValue(o), H: PriceValue(h), L: PriceValue(l), C: PriceValue(c)},
		Volume:   100,
		Complete: complete,
	}
}

func TestClient_Series(t *testing.T) {
	srv := candleServer(t, []Candlestick{
		candle("2024-01-01T00:00:00Z", "1.1000", "1.1050", "1.0990", "1.1040", true),
		candle("2024-01-02T00:00:00Z", "1.1040", "1.1060", "1.1000", "1.1010", true),
		candle("2024-01-03T00:00:00Z", "1.1010", "1.1030", "1.0950", "1.0960", true),
		candle("2024-01-04T00:00:00Z", "1.0960", "1.0970", "1.0940", "1.0950", false),
	})
	defer srv.Close()

	client := NewClient("acc-1", "secret", srv.URL)
	s, err := client.Series(context.Background(), marketdata.Request{
		Instrument: "EUR_USD",
		Timeframe:  "D",
		From:       time.Date(2023, 12, 31, 12, 0, 0, 0, time.UTC),
		To:         time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Equal(t, 3, s.Len(), "the incomplete candle is dropped")
	assert.Equal(t, "EUR_USD", s.Instrument)
	assert.Equal(t, 1.1040, s.At(0).Close)
	assert.Equal(t, 1.0950, s.Last().Low)
	assert.Equal(t, 100.0, s.At(1).Volume)
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessage":"Insufficient authorization"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient("acc-1", "bad", srv.URL)
	_, err := client.FetchBars(context.Background(), CandleRequest{
		Instrument:  EURUSD,
		Granularity: H1,
		From:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 401")
}

func TestGranularity_ToDuration(t *testing.T) {
	d, err := M15.ToDuration()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)

	_, err = CandlestickGranularity("S5").ToDuration()
	assert.Error(t, err)
}
