package performance

import (
	"encoding/json"
	"fmt"
	"math"
)

// Metric is a statistic that may be undefined (no data, too few samples) or
// infinite (profit factor with no losses).
type Metric struct {
	Value    float64
	Defined  bool
	Infinite bool
}

func Value(v float64) Metric { return Metric{Value: v, Defined: true} }

// Infinity is the sentinel for an unbounded ratio.
func Infinity() Metric { return Metric{Value: math.Inf(1), Defined: true, Infinite: true} }

// Undefined is a metric with no value.
func Undefined() Metric { return Metric{} }

func (m Metric) String() string {
	switch {
	case !m.Defined:
		return "n/a"
	case m.Infinite:
		return "Infinity"
	}
	return fmt.Sprintf("%.2f", m.Value)
}

// MarshalJSON encodes undefined as null and infinite as "Infinity".
func (m Metric) MarshalJSON() ([]byte, error) {
	switch {
	case !m.Defined:
		return []byte("null"), nil
	case m.Infinite:
		return []byte(`"Infinity"`), nil
	}
	return json.Marshal(m.Value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*m = Undefined()
		return nil
	case `"Infinity"`:
		*m = Infinity()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("metric: %w", err)
	}
	*m = Value(v)
	return nil
}
