package server

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/endpointd/pkg/protocol/http1"
)

// Handler serves one decoded request.
//
// Returning a *RequestError produces a response with its status; any other
// error, a panic, or a nil response produces 500 Internal Server Error.
// Handlers run on a worker unit and may be invoked concurrently.
type Handler interface {
	ServeRequest(ctx context.Context, req *http1.Request) (*http1.Response, error)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(ctx context.Context, req *http1.Request) (*http1.Response, error)

// ServeRequest calls f(ctx, req).
func (f HandlerFunc) ServeRequest(ctx context.Context, req *http1.Request) (*http1.Response, error) {
	return f(ctx, req)
}

// RouteTable maps exact request URIs to handlers.
//
// Every operation is atomic with respect to the others, so handlers may be
// added and removed while requests are being dispatched. A lookup sees
// either the table before an update or after it, never a partial one.
type RouteTable struct {
	mu     sync.RWMutex
	routes map[string]Handler
}

// NewRouteTable creates an empty RouteTable.
func NewRouteTable() *RouteTable {
	return &RouteTable{routes: make(map[string]Handler)}
}

// Add registers handler for uri, replacing any previous handler.
//
// Panics if handler is nil.
func (t *RouteTable) Add(uri string, handler Handler) {
	if f, ok := handler.(HandlerFunc); handler == nil || ok && f == nil {
		panic("handler cannot be nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[uri] = handler
}

// Remove unregisters uri and reports whether it was registered.
func (t *RouteTable) Remove(uri string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.routes[uri]; !ok {
		return false
	}
	delete(t.routes, uri)
	return true
}

// Lookup returns the handler registered for exactly uri.
func (t *RouteTable) Lookup(uri string) (Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.routes[uri]
	return h, ok
}

// Len returns the number of registered routes.
func (t *RouteTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.routes)
}

// URIs returns a sorted snapshot of the registered URIs.
func (t *RouteTable) URIs() []string {
	t.mu.RLock()
	uris := make([]string, 0, len(t.routes))
	for uri := range t.routes {
		uris = append(uris, uri)
	}
	t.mu.RUnlock()

	sort.Strings(uris)
	return uris
}
