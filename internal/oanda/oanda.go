// Package oanda fetches candles from the OANDA v20 REST API.
package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jwtly10/smcplan/internal/marketdata"
	"github.com/jwtly10/smcplan/internal/types"
)

const (
	DefaultBaseURL       = "https://api-fxpractice.oanda.com"
	MaxCandlesPerRequest = 4000 // Limit is 5000 but we maintain a buffer

	// Oanda granularities
	M1  CandlestickGranularity = "M1"
	M5  CandlestickGranularity = "M5"
	M15 CandlestickGranularity = "M15"
	M30 CandlestickGranularity = "M30"
	H1  CandlestickGranularity = "H1"
	H4  CandlestickGranularity = "H4"
	H6  CandlestickGranularity = "H6"
	D   CandlestickGranularity = "D"
	W   CandlestickGranularity = "W"

	// Oanda Instruments
	GBPUSD InstrumentName = "GBP_USD"
	EURUSD InstrumentName = "EUR_USD"
	NAS100 InstrumentName = "NAS100_USD"
)

func (g CandlestickGranularity) ToDuration() (time.Duration, error) {
	return marketdata.Period(string(g))
}

func (g CandlestickGranularity) String() string {
	return string(g)
}

func NewClient(accountID, apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		AccountID: accountID,
		APIKey:    apiKey,
		BaseURL:   baseURL,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Series implements marketdata.Source.
func (c *Client) Series(ctx context.Context, req marketdata.Request) (types.Series, error) {
	bars, err := c.FetchBars(ctx, CandleRequest{
		Instrument:  InstrumentName(req.Instrument),
		Granularity: CandlestickGranularity(req.Timeframe),
		From:        req.From,
		To:          req.To,
	})
	if err != nil {
		return types.Series{}, err
	}
	return types.NewSeries(req.Instrument, req.Timeframe, bars)
}

// FetchBars will iteratively fetch all complete bars between 2 dates.
//
// Note: We are not limiting the number of candles returned here,
// so there is scope for memory issues if not used carefully.
func (c *Client) FetchBars(ctx context.Context, req CandleRequest) ([]types.Bar, error) {
	slog.Info("Initiating batched Oanda fetch", "instrument", req.Instrument, "from", req.From, "to", req.To, "period", req.Granularity.String())
	period, err := req.Granularity.ToDuration()
	if err != nil {
		return nil, err
	}

	if req.To.After(time.Now()) {
		req.To = time.Now()
		slog.Warn("Adjusted 'To' time to current time as it was in the future", "newTo", req.To)
	}

	var allBars []types.Bar
	currentFrom := req.From

	for currentFrom.Before(req.To) {
		batchTo := currentFrom.Add(period * time.Duration(MaxCandlesPerRequest))
		if batchTo.After(req.To) {
			batchTo = req.To
		}

		batch, err := c.fetchHistoricCandles(ctx, CandleRequest{
			Instrument:  req.Instrument,
			Granularity: req.Granularity,
			From:        currentFrom,
			To:          batchTo,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch candles between %s and %s: %w", currentFrom, batchTo, err)
		}

		slog.Debug("Found bars in latest fetch", "count", len(batch.Candles), "from", currentFrom, "to", batchTo)

		if len(batch.Candles) == 0 {
			break // No more data available
		}

		bars, err := candlesToBars(batch.Candles)
		if err != nil {
			return nil, fmt.Errorf("failed to convert candles to bars: %w", err)
		}
		if len(bars) == 0 {
			break // only the forming candle was returned
		}
		allBars = append(allBars, bars...)

		// Move to next batch
		currentFrom = bars[len(bars)-1].Timestamp.Add(period)
	}

	slog.Info("Completed fetching all oanda bars", "totalBars", len(allBars))
	return allBars, nil
}

func candlesToBars(candles []Candlestick) ([]types.Bar, error) {
	bars := make([]types.Bar, 0, len(candles))
	for _, candle := range candles {
		if !candle.Complete {
			continue
		}
		timestamp, err := time.Parse(time.RFC3339, candle.Time)
		if err != nil {
			return nil, fmt.Errorf("failed to parse candle time %s: %w", candle.Time, err)
		}

		var ohlc [4]float64
		for i, p := range []PriceValue{candle.Mid.O, candle.Mid.H, candle.Mid.L, candle.Mid.C} {
			if ohlc[i], err = strconv.ParseFloat(string(p), 64); err != nil {
				return nil, fmt.Errorf("failed to parse candle price %q at %s: %w", p, candle.Time, err)
			}
		}

		bars = append(bars, types.Bar{
			Timestamp: timestamp,
			Open:      ohlc[0],
			High:      ohlc[1],
			Low:       ohlc[2],
			Close:     ohlc[3],
			Volume:    float64(candle.Volume),
		})
	}
	return bars, nil
}

func (c *Client) fetchHistoricCandles(ctx context.Context, req CandleRequest) (*CandlestickResponse, error) {
	endpoint := c.BaseURL + "/v3/accounts/" + c.AccountID + "/instruments/" + string(req.Instrument) + "/candles"

	params := url.Values{}
	params.Add("price", "M")
	if req.Granularity != "" {
		params.Add("granularity", string(req.Granularity))
	}
	if req.Count != 0 {
		params.Add("count", strconv.Itoa(req.Count))
	}

	params.Add("from", strconv.FormatInt(req.From.Unix(), 10))
	params.Add("to", strconv.FormatInt(req.To.Unix(), 10))
	params.Add("includeFirst", "false")

	fullURL := endpoint + "?" + params.Encode()
	slog.Debug("Fetching historic candles", "instrument", req.Instrument, "from", req.From, "to", req.To, "url", fullURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch candles: status code %d, could not read error body: %w", resp.StatusCode, err)
		}

		rawRespBody := string(bodyBytes)
		slog.Error("Failed to fetch candles: API returned an error status",
			"statusCode", resp.StatusCode,
			"rawResponse", rawRespBody)

		return nil, fmt.Errorf("failed to fetch candles: status code %d, API Response: %s", resp.StatusCode, rawRespBody)
	}

	var candleResp CandlestickResponse
	if err := json.NewDecoder(resp.Body).Decode(&candleResp); err != nil {
		return nil, fmt.Errorf("failed to decode candle response: %w", err)
	}

	return &candleResp, nil
}
