package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// InvalidRequestError marks client input errors. They are surfaced verbatim
// to the caller and never retried.
type InvalidRequestError struct {
	Msg string
}

func (e InvalidRequestError) Error() string {
	if e.Msg == "" {
		return "invalid request"
	}
	return e.Msg
}

// Is enables errors.Is matching on InvalidRequestError.
func (e InvalidRequestError) Is(target error) bool {
	_, ok := target.(InvalidRequestError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidRequestError)
	return ok
}

// ErrInvalidRequest is the sentinel error for client input errors.
var ErrInvalidRequest = InvalidRequestError{}

// ErrMalformedCursor is returned when a pagination cursor fails to unpack.
var ErrMalformedCursor = InvalidRequestError{Msg: "malformed cursor"}
