package server

import "context"

type contextKey struct{}

var requestIDKey = contextKey{}

// withRequestID returns a context carrying the connection's request ID.
// There is exactly one request per connection, so the two share an ID.
func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the ID the server assigned to the request
// being handled, or "" outside a handler.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
