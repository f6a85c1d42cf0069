package models

import "errors"

// Domain errors for the planning pipeline. Components wrap these with %w so
// callers can classify failures with errors.Is.
var (
	ErrNotFound           = errors.New("requested item not found")
	ErrInvalidRequest     = errors.New("invalid plan request")
	ErrCatalogUnavailable = errors.New("travel catalog unavailable")
	ErrOracle             = errors.New("oracle request failed")
	ErrMissingCoordinates = errors.New("place coordinates missing")
)
