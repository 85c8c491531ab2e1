package sunapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lox/daylightmatch/internal/models"
)

var (
	// ErrNoResults is returned when the response body has no results object.
	ErrNoResults = errors.New("response has no results")
	// ErrMissingField is returned when results lacks sunrise, sunset or day_length.
	ErrMissingField = errors.New("results missing field")
	// ErrAPIStatus is returned when the body reports a status other than OK.
	ErrAPIStatus = errors.New("api reported failure status")
)

// FetchError is the terminal failure to obtain one day's record, after
// retries are exhausted or on a non-retryable error.
type FetchError struct {
	Date  time.Time
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Date.Format(models.DateLayout), e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.Code, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return transientStatus(e.Code)
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
