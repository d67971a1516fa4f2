package provider

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel failure kinds for metadata fetches. Callers classify with
// errors.Is and decide whether a candidate is retryable.
var (
	ErrTimeout     = errors.New("provider timeout")
	ErrNotFound    = errors.New("provider not found")
	ErrRateLimited = errors.New("provider rate limited")
	ErrParse       = errors.New("provider parse error")
)

// FetchError carries the failing candidate reference and the time of
// failure so a run report can say what failed and when.
type FetchError struct {
	Ref string
	At  time.Time
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Kind returns a short machine-readable label for a fetch failure.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrParse):
		return "parse_error"
	default:
		return "error"
	}
}
