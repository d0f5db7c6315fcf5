package exchange

import "errors"

// Failure taxonomy for the submission path. Every rejection happens
// before any ledger mutation; callers match with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrNotActive    = errors.New("order not active")
)
