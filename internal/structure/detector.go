package structure

import (
	"fmt"
	"sort"

	"github.com/jwtly10/smcplan/internal/indicator"
	"github.com/jwtly10/smcplan/internal/logging"
	"github.com/jwtly10/smcplan/internal/types"
)

var detectorLog = logging.New("detector")

// OverlapPolicy decides what happens when two structures of the same kind and
// direction overlap in price.
type OverlapPolicy string

const (
	// MostRecentWins keeps only the most recently formed of overlapping structures.
	MostRecentWins OverlapPolicy = "most_recent"
	// KeepAll reports every structure.
	KeepAll OverlapPolicy = "keep_all"
)

type Config struct {
	// Window is the number of most recent bars inspected.
	Window    int `yaml:"window"`
	ATRPeriod int `yaml:"atr_period"`

	// An impulse must move more than ImpulseMultiple * ATR within ImpulseMaxBars bars.
	ImpulseMultiple float64 `yaml:"impulse_multiple"`
	ImpulseMaxBars  int     `yaml:"impulse_max_bars"`
	// StrongMovePercent marks an order block strong when its impulse exceeds this percent of price.
	StrongMovePercent float64 `yaml:"strong_move_percent"`

	// Highs or lows within EqualTolerancePercent of each other are treated as equal.
	EqualTolerancePercent float64 `yaml:"equal_tolerance_percent"`
	MinTouches            int     `yaml:"min_touches"`

	// MinGapPercent drops fair value gaps smaller than this percent of the middle candle's close.
	MinGapPercent float64 `yaml:"min_gap_percent"`

	Overlap  OverlapPolicy `yaml:"overlap_policy"`
	Patterns bool          `yaml:"patterns"`
}

func DefaultConfig() Config {
	return Config{
		Window:                100,
		ATRPeriod:             14,
		ImpulseMultiple:       1.5,
		ImpulseMaxBars:        5,
		StrongMovePercent:     0.2,
		EqualTolerancePercent: 0.05,
		MinTouches:            2,
		MinGapPercent:         0,
		Overlap:               MostRecentWins,
		Patterns:              true,
	}
}

// Validate checks the configuration for values the detector cannot work with.
func (c Config) Validate() error {
	switch {
	case c.Window <= 0:
		return &types.InvalidParameterError{Name: "detector.window", Value: float64(c.Window), Reason: "must be positive"}
	case c.ATRPeriod <= 0:
		return &types.InvalidParameterError{Name: "detector.atr_period", Value: float64(c.ATRPeriod), Reason: "must be positive"}
	case c.ImpulseMultiple <= 0:
		return &types.InvalidParameterError{Name: "detector.impulse_multiple", Value: c.ImpulseMultiple, Reason: "must be positive"}
	case c.ImpulseMaxBars <= 0:
		return &types.InvalidParameterError{Name: "detector.impulse_max_bars", Value: float64(c.ImpulseMaxBars), Reason: "must be positive"}
	case c.EqualTolerancePercent < 0:
		return &types.InvalidParameterError{Name: "detector.equal_tolerance_percent", Value: c.EqualTolerancePercent, Reason: "must not be negative"}
	case c.MinTouches < 2:
		return &types.InvalidParameterError{Name: "detector.min_touches", Value: float64(c.MinTouches), Reason: "a cluster needs at least two touches"}
	case c.MinGapPercent < 0:
		return &types.InvalidParameterError{Name: "detector.min_gap_percent", Value: c.MinGapPercent, Reason: "must not be negative"}
	}
	switch c.Overlap {
	case MostRecentWins, KeepAll:
	default:
		return fmt.Errorf("detector.overlap_policy: unknown policy %q", c.Overlap)
	}
	return nil
}

// MinBars is the shortest window the detector accepts.
func (c Config) MinBars() int { return c.ATRPeriod + 2 }

type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

func (d *Detector) Config() Config { return d.cfg }

// view is the detection window with its absolute offset into the caller's series.
type view struct {
	bars   types.Series
	offset int
	atr    indicator.Line
}

func (v view) abs(i int) int { return v.offset + i }

// Detect scans the most recent Window bars and returns every structure found,
// most recently formed first. Indices in the result are absolute positions in s.
func (d *Detector) Detect(s types.Series) ([]Structure, error) {
	window, offset := s.Tail(d.cfg.Window)
	if window.Len() < d.cfg.MinBars() {
		return nil, &types.InsufficientDataError{Indicator: "structure detector", Need: d.cfg.MinBars(), Have: window.Len()}
	}

	atr, err := indicator.ATRLine(window, d.cfg.ATRPeriod)
	if err != nil {
		return nil, fmt.Errorf("detector atr: %w", err)
	}
	v := view{bars: window, offset: offset, atr: atr}

	var found []Structure
	for _, ob := range d.orderBlocks(v) {
		found = append(found, ob)
	}
	for _, lz := range d.liquidityZones(v) {
		found = append(found, lz)
	}
	for _, gap := range d.fairValueGaps(v) {
		found = append(found, gap)
	}
	if d.cfg.Patterns {
		for _, p := range d.engulfing(v) {
			found = append(found, p)
		}
	}

	SortByRecency(found)
	if d.cfg.Overlap == MostRecentWins {
		found = dropOverlapping(found)
	}

	detectorLog.Debug("Detection complete",
		"instrument", s.Instrument,
		"window", window.Len(),
		"offset", offset,
		"structures", len(found))

	return found, nil
}

// SortByRecency orders structures by the index of their last forming bar,
// newest first. Ties fall back to the later start index.
func SortByRecency(list []Structure) {
	sort.SliceStable(list, func(i, j int) bool {
		si, ei := list[i].Formed()
		sj, ej := list[j].Formed()
		if ei != ej {
			return ei > ej
		}
		return si > sj
	})
}

// dropOverlapping keeps the most recent of overlapping order blocks and
// liquidity zones sharing a direction. list must already be sorted by recency.
func dropOverlapping(list []Structure) []Structure {
	out := make([]Structure, 0, len(list))
	var kept []Structure
	for _, s := range list {
		if s.Kind() != KindOrderBlock && s.Kind() != KindLiquidityZone {
			out = append(out, s)
			continue
		}
		if overlapsAny(s, kept) {
			detectorLog.Debug("Dropping overlapped structure", "kind", s.Kind(), "direction", s.Direction())
			continue
		}
		kept = append(kept, s)
		out = append(out, s)
	}
	return out
}

func overlapsAny(s Structure, kept []Structure) bool {
	lo, hi := s.Range()
	for _, k := range kept {
		if k.Kind() != s.Kind() || k.Direction() != s.Direction() {
			continue
		}
		klo, khi := k.Range()
		if lo <= khi && klo <= hi {
			return true
		}
	}
	return false
}
