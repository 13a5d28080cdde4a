package backend

import "fmt"

// Error is a constant error type we use for sentinel errors
type Error string

// Error allows our custom error type to implement the error interface
func (e Error) Error() string { return string(e) }

const (
	// NotConfiguredError is returned when no backend URL was given.
	NotConfiguredError = Error("Backend not configured")

	// TimeoutError indicates the request timed out
	TimeoutError = Error("Timeout")
)

// TransportError means the request did not produce a usable answer: network
// failure, an open breaker, or a non-2xx status without an error body. The
// operation is abandoned and the user gets a transient notification.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ApplicationError carries the {error} field of a backend response. It is
// rendered in place of the normal result.
type ApplicationError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// MalformedResponseError means the body could not be decoded into the
// expected shape or lacked a required field.
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// InputError rejects local input before any request is issued. Message is
// shown to the user as is.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Message }
