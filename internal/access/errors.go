package access

import "errors"

var (
	// ErrUnauthorized means the caller lacks permission for the requested
	// action. Surfaced to the caller, never retried.
	ErrUnauthorized = errors.New("access: unauthorized")

	// ErrSecurityViolation is a self-escalation guard rejection. It aborts the
	// whole write and is logged distinctly from ordinary denials: it indicates
	// either a bug in a caller or an attack.
	ErrSecurityViolation = errors.New("access: security violation")

	ErrNotFound     = errors.New("access: not found")
	ErrConflict     = errors.New("access: conflict")
	ErrInvalidInput = errors.New("access: invalid input")
)
