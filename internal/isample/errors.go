package isample

import "errors"

var (
	// ErrInvariantViolation marks a logic defect that would silently corrupt
	// the estimate if ignored.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrNonConvergent is returned when the theta search exceeds its step cap.
	ErrNonConvergent = errors.New("theta search did not converge")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrNonFinite is returned when importance weights overflow, which
	// happens for extreme theta against floored weights.
	ErrNonFinite = errors.New("non-finite estimate")
)
