package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/marmos91/endpointd/internal/logger"
	"github.com/marmos91/endpointd/pkg/protocol/http1"
)

// Outcome is how a connection's single request ended.
type Outcome int

const (
	// DecodeFailed: the bytes received were not a valid request (400).
	DecodeFailed Outcome = iota + 1

	// RouteMissing: no handler is registered for the URI (404).
	RouteMissing

	// HandlerSucceeded: the handler's response is sent as is.
	HandlerSucceeded

	// HandlerFailedStructured: the handler returned a *RequestError.
	HandlerFailedStructured

	// HandlerFailedUnexpected: the handler returned any other error,
	// panicked, or produced an unusable response (500).
	HandlerFailedUnexpected
)

func (o Outcome) String() string {
	switch o {
	case DecodeFailed:
		return "decode_failed"
	case RouteMissing:
		return "route_missing"
	case HandlerSucceeded:
		return "handler_succeeded"
	case HandlerFailedStructured:
		return "handler_failed_structured"
	case HandlerFailedUnexpected:
		return "handler_failed_unexpected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// FailureResponse is the response sent for every failure: a text/plain
// body of the form "Failure: 404 Not Found\r\n".
func FailureResponse(status int) *http1.Response {
	return http1.Text(status, "Failure: "+http1.StatusLine(status)+"\r\n")
}

// Dispatcher routes decoded requests to handlers and translates every
// handler failure into a response. It is the only place a handler fault
// is observed; nothing a handler does escapes Dispatch.
type Dispatcher struct {
	routes *RouteTable
}

// NewDispatcher creates a Dispatcher over routes.
func NewDispatcher(routes *RouteTable) *Dispatcher {
	return &Dispatcher{routes: routes}
}

// Dispatch looks up the handler for req.URI, invokes it and returns the
// response to send together with the outcome.
//
// Status mapping:
//   - no route: 404
//   - *RequestError with a valid status S: S
//   - a 1xx response from a handler that succeeded: 500
//   - anything else going wrong: 500, logged with the cause
func (d *Dispatcher) Dispatch(ctx context.Context, req *http1.Request) (*http1.Response, Outcome) {
	handler, ok := d.routes.Lookup(req.URI)
	if !ok {
		logger.Debug("No handler for %s %s from %s", req.Method, req.URI, req.RemoteAddr)
		return FailureResponse(http.StatusNotFound), RouteMissing
	}

	resp, err := invoke(ctx, handler, req)
	if err == nil {
		if verr := http1.Validate(resp); verr != nil {
			err = fmt.Errorf("handler returned an unusable response: %w", verr)
		} else if !http1.FinalStatus(resp.Status) {
			err = fmt.Errorf("handler returned interim status %d as a final response", resp.Status)
		} else {
			return resp, HandlerSucceeded
		}
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if http1.ValidStatus(reqErr.Status) {
			logger.Debug("Handler for %s %s failed with %d: %v",
				req.Method, req.URI, reqErr.Status, err)
			return FailureResponse(reqErr.Status), HandlerFailedStructured
		}
		err = fmt.Errorf("request error with invalid status %d: %w", reqErr.Status, err)
	}

	logger.Error("Unexpected failure handling %s %s from %s [%s]: %v",
		req.Method, req.URI, req.RemoteAddr, RequestIDFromContext(ctx), err)
	return FailureResponse(http.StatusInternalServerError), HandlerFailedUnexpected
}

// invoke calls the handler behind a panic boundary.
func invoke(ctx context.Context, h Handler, req *http1.Request) (resp *http1.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = &handlerPanic{value: r, stack: debug.Stack()}
		}
	}()
	return h.ServeRequest(ctx, req)
}

// handlerPanic carries a recovered panic value. It does not
// unwrap: a handler that panics with a *RequestError is still a fault.
type handlerPanic struct {
	value any
	stack []byte
}

func (p *handlerPanic) Error() string {
	return fmt.Sprintf("handler panic: %v\n%s", p.value, p.stack)
}
