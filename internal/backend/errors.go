package backend

import (
	"errors"
	"fmt"
)

// TransportError covers unreachable backend, timeouts, and non-2xx
// responses. It is never surfaced as a blocking error: the monitor
// degrades to last-known-good or synthetic data instead.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("quality API %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("quality API %s unreachable: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport-level failure
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
