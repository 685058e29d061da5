package hydrology

import "fmt"

// InsufficientDataError is returned when a fit has fewer samples than the
// model needs to be determined.
type InsufficientDataError struct {
	Got  int
	Need int
	// Distinct is set when the sample count was enough but too few distinct
	// stage values were present.
	Distinct bool
}

func (e *InsufficientDataError) Error() string {
	if e.Distinct {
		return fmt.Sprintf("insufficient data: %d distinct stage values, need at least %d", e.Got, e.Need)
	}
	return fmt.Sprintf("insufficient data: %d samples, need at least %d", e.Got, e.Need)
}

// EmptyInputError is returned when a required input sequence is empty.
type EmptyInputError struct {
	Input string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("empty input: %s", e.Input)
}

// DimensionMismatchError is returned when paired sequences differ in length.
type DimensionMismatchError struct {
	Stage     int
	Discharge int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %d stage samples, %d discharge samples", e.Stage, e.Discharge)
}

// IllConditionedError is returned when the least-squares system cannot be
// solved reliably, e.g. stages too close together for a quadratic.
type IllConditionedError struct {
	Condition float64
}

func (e *IllConditionedError) Error() string {
	return fmt.Sprintf("ill-conditioned rating curve fit: condition number %.4g", e.Condition)
}
