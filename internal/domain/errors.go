package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn is returned by loaders when a required input column is absent.
	ErrMissingColumn = errors.New("missing column")

	// ErrInvalidRecord is returned by loaders when a cell cannot be parsed as a number.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrDivisionByZero marks a denominator that is zero or negative where a
	// positive value is required (area, perimeter, depth factors, upstream energy).
	ErrDivisionByZero = errors.New("division by zero")

	// ErrNumericDomain marks a square root of a negative radicand or a non-finite operand.
	ErrNumericDomain = errors.New("numeric domain error")

	// ErrIndexOutOfRange marks a jump bound outside the loaded station sequence.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// StationError attributes a computation failure to one station and the field
// or formula that failed.
type StationError struct {
	Seq   int
	Field string
	Err   error
}

func (e *StationError) Error() string {
	return fmt.Sprintf("station %d: %s: %v", e.Seq, e.Field, e.Err)
}

func (e *StationError) Unwrap() error { return e.Err }

func stationErr(seq int, field string, err error, format string, args ...any) error {
	return &StationError{
		Seq:   seq,
		Field: field,
		Err:   fmt.Errorf("%w: "+format, append([]any{err}, args...)...),
	}
}
