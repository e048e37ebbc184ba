package planner

import (
	"fmt"

	"github.com/jwtly10/smcplan/internal/indicator"
	"github.com/jwtly10/smcplan/internal/risk"
	"github.com/jwtly10/smcplan/internal/structure"
	"github.com/jwtly10/smcplan/internal/types"
)

// Account is what the session layer knows about the trader.
type Account struct {
	Balance     float64
	RiskPercent float64
	Price       float64
	Exposure    risk.Exposure
	PipSize     float64
	PipValue    float64
}

// Analysis is the full output of one Analyze call.
type Analysis struct {
	Instrument string
	Timeframe  string
	Indicators indicator.Snapshot
	Structures []structure.Structure
	Result     Result
}

// Analyzer runs indicators, detection and composition in sequence.
// It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	detector   *structure.Detector
	indicators indicator.Params
	composer   *Composer
}

func NewAnalyzer(detector *structure.Detector, params indicator.Params, composer *Composer) *Analyzer {
	return &Analyzer{detector: detector, indicators: params, composer: composer}
}

func (a *Analyzer) Analyze(s types.Series, acct Account) (Analysis, error) {
	snap, err := indicator.Compute(s, a.indicators)
	if err != nil {
		return Analysis{}, fmt.Errorf("indicators for %s: %w", s.Instrument, err)
	}
	found, err := a.detector.Detect(s)
	if err != nil {
		return Analysis{}, fmt.Errorf("structures for %s: %w", s.Instrument, err)
	}

	res, err := a.composer.Compose(Input{
		Series:      s,
		Indicators:  snap,
		Structures:  found,
		Balance:     acct.Balance,
		RiskPercent: acct.RiskPercent,
		Price:       acct.Price,
		Exposure:    acct.Exposure,
		PipSize:     acct.PipSize,
		PipValue:    acct.PipValue,
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("compose %s: %w", s.Instrument, err)
	}

	return Analysis{
		Instrument: s.Instrument,
		Timeframe:  s.Timeframe,
		Indicators: snap,
		Structures: found,
		Result:     res,
	}, nil
}

// Structures runs only the detector.
func (a *Analyzer) Structures(s types.Series) ([]structure.Structure, error) {
	return a.detector.Detect(s)
}

// MinBars is the shortest series Analyze accepts.
func (a *Analyzer) MinBars() int {
	need := a.detector.Config().MinBars()
	for _, n := range []int{a.indicators.ATRPeriod + 1, a.indicators.RSIPeriod + 1, a.indicators.FastSMA, a.indicators.BBPeriod} {
		if n > need {
			need = n
		}
	}
	return need
}
