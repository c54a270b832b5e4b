package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrFetch matches every fetch failure with errors.Is.
var ErrFetch = errors.New("fetch failed")

// NetworkError reports a request that never produced an HTTP response:
// timeouts, DNS failures, refused or reset connections.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: network failure: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrFetch }

// StatusError reports a response with a status other than 200.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Is(target error) bool { return target == ErrFetch }
