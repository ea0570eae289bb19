// Package http1 implements the HTTP/1.1 wire format used by the endpoint
// server: a decoder that frames exactly one request from a connection and
// aggregates its body up to a fixed limit, and an encoder that writes a
// self-terminating response.
//
// The package deliberately supports only what a close-after-response
// server needs:
//   - Request line, header block, Content-Length and chunked bodies
//   - Bodies fully buffered in memory, bounded by Limits.MaxBodySize
//   - Responses with an explicit Content-Length and Connection: close
//
// There is no support for persistent connections, pipelining, trailers,
// or streaming bodies.
package http1
