package types

import "fmt"

// InsufficientDataError is returned when a series is shorter than the lookback an
// indicator or detector needs. Callers recover by fetching more history.
type InsufficientDataError struct {
	Indicator string
	Need      int
	Have      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d bars, have %d", e.Indicator, e.Need, e.Have)
}

// InvalidParameterError reports malformed numeric input such as a non-positive
// price, a zero period or non-monotonic take-profit levels.
type InvalidParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%g: %s", e.Name, e.Value, e.Reason)
}

// InvalidStopDistanceError is returned by sizing policies when the distance
// between entry and stop is not positive.
type InvalidStopDistanceError struct {
	Distance float64
}

func (e *InvalidStopDistanceError) Error() string {
	return fmt.Sprintf("invalid stop distance %g: must be greater than zero", e.Distance)
}

// CheckPeriod validates an indicator period.
func CheckPeriod(name string, period int) error {
	if period <= 0 {
		return &InvalidParameterError{Name: name + ".period", Value: float64(period), Reason: "period must be positive"}
	}
	return nil
}
