package wizsync

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable covers refused/failed connections to the ERP
	// report service. Retryable; never crashes the process.
	ErrUpstreamUnavailable = errors.New("upstream report service unavailable")

	// ErrUpstreamTimeout is returned when a report call exceeds its
	// configured timeout.
	ErrUpstreamTimeout = errors.New("upstream report request timed out")

	// ErrInvalidQueryParam marks caller errors (unknown balance mode,
	// non-integer filter ids). Rejected before any cache or DB work.
	ErrInvalidQueryParam = errors.New("invalid query parameter")
)

// UpstreamStatusError is a non-2xx response from a report endpoint.
type UpstreamStatusError struct {
	Code int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream report returned status %d", e.Code)
}
