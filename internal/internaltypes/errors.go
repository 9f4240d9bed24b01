package internaltypes

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrAlreadyBooked is returned when materialization loses the
	// check-and-set race: the occurrence already carries an order link.
	ErrAlreadyBooked = errors.New("occurrence already booked")

	// ErrResourceConflict is returned when a proposed window overlaps an
	// active assignment for the same resource under enforce-no-overlap.
	ErrResourceConflict = errors.New("resource conflict")

	ErrCycleDetected = errors.New("dependency cycle detected")
	ErrSelfLoop      = errors.New("dependency self-loop rejected")

	// ErrInvalidExceptionShape is returned when an exception action is
	// missing required fields for its kind. Never coerced silently.
	ErrInvalidExceptionShape = errors.New("invalid exception shape")

	ErrInvalidTransition = errors.New("invalid state transition")

	ErrTenantMismatch = errors.New("cross-tenant access rejected")
)

// RecurrenceParseError marks a contract whose recurrence expression could
// not be parsed. The contract is excluded from generation; other contracts
// in the same sweep proceed.
type RecurrenceParseError struct {
	ContractID string
	Expr       string
	Err        error
}

func (e *RecurrenceParseError) Error() string {
	return fmt.Sprintf("contract %s: unparsable recurrence %q: %v", e.ContractID, e.Expr, e.Err)
}

func (e *RecurrenceParseError) Unwrap() error { return e.Err }

func IsRecurrenceParseError(err error) bool {
	var pe *RecurrenceParseError
	return errors.As(err, &pe)
}
