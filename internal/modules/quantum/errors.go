package quantum

import "fmt"

// ConfigurationError reports an invalid option, name or dimension that is
// detected before any numerical work begins.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// DimensionMismatchError reports incompatible operator, circuit or state
// dimensions, surfaced at the boundary where the mismatch is detected.
type DimensionMismatchError struct {
	Context  string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch in %s: expected %d, got %d", e.Context, e.Expected, e.Actual)
}

// NumericalInstabilityError reports overflow or NaN contamination during a
// matrix flow update. It is fatal to the run; partial results are discarded.
type NumericalInstabilityError struct {
	Operation string
	Err       error
}

func (e *NumericalInstabilityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("numerical instability in %s", e.Operation)
	}
	return fmt.Sprintf("numerical instability in %s: %v", e.Operation, e.Err)
}

func (e *NumericalInstabilityError) Unwrap() error { return e.Err }
