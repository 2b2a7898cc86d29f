package ledger

import "errors"

// Error kinds surfaced by the ledger core and its callers. Handlers match
// with errors.Is; everything else is treated as an internal failure.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrConflict        = errors.New("conflict")
)
