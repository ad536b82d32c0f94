package domain

import "errors"

// Failure taxonomy for the aggregation engine. Callers branch on these with
// errors.Is; everything else is treated as a retryable network/server failure.
var (
	// ErrAuthRequired means no usable bearer credential was available or the
	// backend rejected it. Never retried automatically.
	ErrAuthRequired = errors.New("authentication required")

	// ErrInvalidCoordinates marks a record whose latitude or longitude is
	// missing, non-finite, or out of range. The record is skipped and counted.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrMissingScore means hmpi_value was absent from a record. Treated as a
	// failure of the page that carried it, not silently zeroed.
	ErrMissingScore = errors.New("missing hmpi value")

	// ErrInvalidScore marks a negative or non-finite score.
	ErrInvalidScore = errors.New("invalid hmpi value")
)
