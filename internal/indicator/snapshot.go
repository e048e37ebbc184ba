package indicator

import (
	"errors"

	"github.com/jwtly10/smcplan/internal/types"
)

// Params selects indicator periods for a Snapshot.
type Params struct {
	FastSMA    int     `yaml:"fast_sma"`
	SlowSMA    int     `yaml:"slow_sma"`
	RSIPeriod  int     `yaml:"rsi_period"`
	MACDFast   int     `yaml:"macd_fast"`
	MACDSlow   int     `yaml:"macd_slow"`
	MACDSignal int     `yaml:"macd_signal"`
	BBPeriod   int     `yaml:"bb_period"`
	BBStdDev   float64 `yaml:"bb_std_dev"`
	ATRPeriod  int     `yaml:"atr_period"`
}

// DefaultParams returns the conventional periods: SMA 20/50, RSI 14, MACD 12/26/9,
// Bollinger 20x2, ATR 14.
func DefaultParams() Params {
	return Params{
		FastSMA:    20,
		SlowSMA:    50,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		BBPeriod:   20,
		BBStdDev:   2,
		ATRPeriod:  14,
	}
}

// Snapshot holds full indicator lines for a series. Optional lines whose lookback
// exceeds the series are left empty and flagged through the Has* fields.
type Snapshot struct {
	FastSMA   Line
	SlowSMA   Line
	RSI       Line
	MACD      MACDLines
	Bollinger Bands
	ATR       Line
	OBV       Line

	HasSlowSMA bool
	HasMACD    bool
}

// Compute builds a Snapshot. ATR, RSI, the fast SMA and Bollinger bands are
// required; the slow SMA and MACD are skipped when history is too short.
func Compute(s types.Series, p Params) (Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.ATR, err = ATRLine(s, p.ATRPeriod); err != nil {
		return Snapshot{}, err
	}
	if snap.RSI, err = RSILine(s, p.RSIPeriod); err != nil {
		return Snapshot{}, err
	}
	if snap.FastSMA, err = SMALine(s, p.FastSMA); err != nil {
		return Snapshot{}, err
	}
	if snap.Bollinger, err = Bollinger(s, p.BBPeriod, p.BBStdDev); err != nil {
		return Snapshot{}, err
	}
	if snap.OBV, err = OBV(s); err != nil {
		return Snapshot{}, err
	}

	snap.SlowSMA, err = SMALine(s, p.SlowSMA)
	if optionalErr(err) != nil {
		return Snapshot{}, err
	}
	snap.HasSlowSMA = err == nil

	snap.MACD, err = MACDLine(s, p.MACDFast, p.MACDSlow, p.MACDSignal)
	if optionalErr(err) != nil {
		return Snapshot{}, err
	}
	snap.HasMACD = err == nil

	return snap, nil
}

// optionalErr swallows InsufficientDataError for indicators the caller can do without.
func optionalErr(err error) error {
	var insufficient *types.InsufficientDataError
	if errors.As(err, &insufficient) {
		return nil
	}
	return err
}
