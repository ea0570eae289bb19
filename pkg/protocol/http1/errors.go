package http1

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRequest means the peer closed the connection before sending a
	// single byte. There is nobody to answer.
	ErrNoRequest = errors.New("connection closed before request")

	// ErrMalformedRequest covers anything that is not a well-formed
	// HTTP/1.x request.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrHeaderTooLarge means the request line plus headers exceeded
	// Limits.MaxHeaderBytes.
	ErrHeaderTooLarge = errors.New("request header too large")

	// ErrBodyTooLarge means the body exceeded Limits.MaxBodySize.
	ErrBodyTooLarge = errors.New("request body too large")
)

// DecodeError describes why a byte stream could not be decoded into a
// Request. It wraps one of the sentinel errors above, and the underlying
// I/O error when there is one.
type DecodeError struct {
	Kind   error
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func malformed(reason string, err error) error {
	return &DecodeError{Kind: ErrMalformedRequest, Reason: reason, Err: err}
}
