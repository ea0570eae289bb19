package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/endpointd/pkg/metrics"
	"github.com/marmos91/endpointd/pkg/worker"
)

// Ownership records who is responsible for shutting an executor set down.
// The zero value is deliberately invalid so the decision is always explicit.
type Ownership int

const (
	// Owned executors are shut down by Server.Close.
	Owned Ownership = iota + 1

	// Borrowed executors are left running by Server.Close; the caller
	// shuts them down, possibly after several servers shared them. Every
	// server sharing an acceptor pool holds one of its units until Close.
	Borrowed
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "owned"
	case Borrowed:
		return "borrowed"
	default:
		return fmt.Sprintf("ownership(%d)", int(o))
	}
}

// Executors are the execution resources a server runs on: Acceptor runs the
// accept loop, Workers service accepted connections.
type Executors struct {
	Acceptor  *worker.Pool
	Workers   *worker.Pool
	Ownership Ownership
}

func (e Executors) validate() error {
	if e.Acceptor == nil || e.Workers == nil {
		return fmt.Errorf("%w: acceptor and worker pools are required", ErrInvalidExecutors)
	}
	if e.Ownership != Owned && e.Ownership != Borrowed {
		return fmt.Errorf("%w: ownership must be Owned or Borrowed, got %s", ErrInvalidExecutors, e.Ownership)
	}
	return nil
}

// shutdown releases owned pools independently: a failure in one never
// prevents the other from being shut down.
func (e Executors) shutdown(ctx context.Context) error {
	if e.Ownership != Owned {
		return nil
	}
	return errors.Join(e.Acceptor.Shutdown(ctx), e.Workers.Shutdown(ctx))
}

// Option configures a Server.
type Option func(*options)

type options struct {
	executors *Executors
	metrics   metrics.ServerMetrics
	routes    *RouteTable
}

// WithExecutors runs the server on caller-supplied pools instead of
// creating its own.
func WithExecutors(e Executors) Option {
	return func(o *options) {
		o.executors = &e
	}
}

// WithMetrics sets the metrics collector. Without it, metrics are no-ops.
func WithMetrics(m metrics.ServerMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithRouteTable serves routes from an existing table, which may be shared
// with other servers.
func WithRouteTable(t *RouteTable) Option {
	return func(o *options) {
		o.routes = t
	}
}
