package http1

// Request is one fully decoded HTTP request.
//
// A Request is immutable once returned by Decoder.Decode: handlers may read
// it from any goroutine but must not modify it.
type Request struct {
	// Method is the request method, e.g. "GET".
	Method string

	// URI is the request target exactly as sent on the request line.
	// Routing matches this string byte for byte.
	URI string

	// Proto is "HTTP/1.0" or "HTTP/1.1".
	Proto string

	Header Header

	// Body holds the aggregated body. Empty (never nil) when the request
	// carried no body.
	Body []byte

	// RemoteAddr is the peer address, filled in by the server.
	RemoteAddr string
}

// Response is what a handler, or the error translator, sends back.
type Response struct {
	Status int
	Header Header
	Body   []byte
}

// NewResponse builds a Response with an initialized header map.
func NewResponse(status int, contentType string, body []byte) *Response {
	resp := &Response{
		Status: status,
		Header: make(Header),
		Body:   body,
	}
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return resp
}

// Text builds a text/plain response.
func Text(status int, body string) *Response {
	return NewResponse(status, "text/plain; charset=UTF-8", []byte(body))
}
