package vitals

import "errors"

var (
	// ErrNotFound is returned when a measurement or range does not exist.
	ErrNotFound = errors.New("measurement not found")
	// ErrNoAlert is returned for alert operations on a measurement without
	// an active alert.
	ErrNoAlert = errors.New("measurement has no alert")
	// ErrAlreadyTerminal is returned when claiming an alert that was
	// already resolved or ignored.
	ErrAlreadyTerminal = errors.New("alert already in terminal state")
	// ErrClaimConflict is returned when another staff member holds the
	// claim.
	ErrClaimConflict = errors.New("alert claimed by another staff member")
	// ErrInvalidTarget is returned for terminal targets other than
	// resolved or ignored.
	ErrInvalidTarget = errors.New("invalid terminal state")
	// ErrConfig is returned for invalid reference range configuration,
	// e.g. a zero-width normal band.
	ErrConfig = errors.New("invalid range configuration")
)
