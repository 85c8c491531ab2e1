package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds a single request to the sunrise/sunset API.
const DefaultTimeout = 10 * time.Second

// UserAgent is sent with every outbound request.
const UserAgent = "DaylightMatch/1.0"

// NewClient returns an HTTP client with the given timeout, falling back to
// DefaultTimeout when timeout is zero.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}
