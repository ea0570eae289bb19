package metrics

import "time"

// ServerMetrics provides observability for endpoint server operations.
//
// Implementations collect metrics about requests, their outcome, bytes on
// the wire and the connection lifecycle. This interface is optional - if
// not provided to the server, a no-op implementation is used with zero
// overhead.
//
// Example usage:
//
//	// With metrics enabled
//	srv, err := server.New(cfg, server.WithMetrics(prometheus.NewServerMetrics()))
//
//	// Without metrics (no-op)
//	srv, err := server.New(cfg)
type ServerMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - uri: Route the request was dispatched to, or a placeholder when
	//     no route matched (keeps label cardinality bounded)
	//   - status: HTTP status code sent back
	//   - outcome: Dispatch outcome (e.g. "handler_succeeded", "route_missing")
	//   - duration: Time from decoded request to encoded response
	RecordRequest(uri string, status int, outcome string, duration time.Duration)

	// RecordBytesTransferred records bytes read or written.
	//
	// Parameters:
	//   - direction: "read" or "write"
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the counter of connections
	// closed because the shutdown timeout expired.
	RecordConnectionForceClosed()
}

// NewNoopServerMetrics returns a ServerMetrics that discards everything.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

// noopServerMetrics is a no-op implementation of ServerMetrics with zero overhead.
type noopServerMetrics struct{}

func (noopServerMetrics) RecordRequest(uri string, status int, outcome string, duration time.Duration) {
}
func (noopServerMetrics) RecordBytesTransferred(direction string, bytes int64) {}
func (noopServerMetrics) SetActiveConnections(count int32)                     {}
func (noopServerMetrics) RecordConnectionAccepted()                            {}
func (noopServerMetrics) RecordConnectionClosed()                              {}
func (noopServerMetrics) RecordConnectionForceClosed()                         {}
