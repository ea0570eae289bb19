package server

import (
	"errors"
	"fmt"

	"github.com/marmos91/endpointd/pkg/protocol/http1"
)

// ErrInvalidExecutors is returned by New when WithExecutors is given
// incomplete executors or no ownership decision.
var ErrInvalidExecutors = errors.New("invalid executors")

// ErrNoAcceptor is returned by New when the acceptor pool has no free unit
// for the accept loop. Each server holds one acceptor unit until Close, so
// a shared acceptor pool needs one unit per server.
var ErrNoAcceptor = errors.New("no free acceptor unit")

// BindError is returned by New when the listening socket cannot be
// created. No server exists after a BindError.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// RequestError is a structured failure raised by a handler. The server
// answers with Status and a generic failure body; Message is only logged.
type RequestError struct {
	Status  int
	Message string
	Err     error
}

// NewRequestError creates a RequestError with a formatted message.
func NewRequestError(status int, format string, args ...any) *RequestError {
	return &RequestError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// WrapRequestError creates a RequestError carrying err as its cause.
func WrapRequestError(status int, err error) *RequestError {
	return &RequestError{Status: status, Message: err.Error(), Err: err}
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with %s", http1.StatusLine(e.Status))
	}
	return fmt.Sprintf("request failed with %s: %s", http1.StatusLine(e.Status), e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
