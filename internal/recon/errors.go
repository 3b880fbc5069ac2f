package recon

import "errors"

// Error kinds returned by the engine and the adjustment workflow. Callers
// match them with errors.Is; the wrapped message carries the detail.
var (
	// ErrValidation marks bad input: missing explanation, non-positive amount.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown or soft-deleted reconciliation or adjustment.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a state conflict: a closed reconciliation, or an
	// adjustment that is no longer pending approval.
	ErrConflict = errors.New("conflict")

	// ErrPermission marks a self-approval attempt.
	ErrPermission = errors.New("permission denied")
)
