package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingResultsTable means the document has no results table.
	ErrMissingResultsTable = errors.New("results table not found")
	// ErrInsufficientRiderRows matches *InsufficientRowsError.
	ErrInsufficientRiderRows = errors.New("not enough rider rows")
	// ErrMissingExpectedField matches *MissingFieldError.
	ErrMissingExpectedField = errors.New("expected field missing")
)

// InsufficientRowsError reports a results table with fewer than the three
// rows needed for a podium.
type InsufficientRowsError struct {
	Rows int
}

func (e *InsufficientRowsError) Error() string {
	return fmt.Sprintf("%v: found %d, need %d", ErrInsufficientRiderRows, e.Rows, podiumSize)
}

func (e *InsufficientRowsError) Is(target error) bool { return target == ErrInsufficientRiderRows }

// MissingFieldError reports a required podium value that is absent or blank.
type MissingFieldError struct {
	Field string
	Row   int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%v: %s (row %d)", ErrMissingExpectedField, e.Field, e.Row)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingExpectedField }
