package catalog

import (
	"errors"
	"fmt"
)

// ErrThrottled marks a fetch that was abandoned after exhausting the
// throttle retry budget. Check with errors.Is on a *FetchError.
var ErrThrottled = errors.New("upstream throttled")

// AuthError reports a failed login against the upstream catalog. Callers
// must not retry. StatusCode is the rejection status, or zero for a
// transport-level failure, in which case Err carries the cause.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog login failed: %v", e.Err)
	}
	return fmt.Sprintf("catalog login failed: status %d", e.StatusCode)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError reports a failed catalog query: transport failure, unexpected
// status, exhausted throttling, or an unparseable body. StatusCode is zero
// for transport-level failures; Body carries a diagnostic excerpt for
// non-200 responses.
type FetchError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog query failed: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("catalog query failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
