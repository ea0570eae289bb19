package http1

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http/httputil"
	"strconv"
	"strings"
)

const (
	// DefaultMaxBodySize is the aggregation limit for request bodies.
	DefaultMaxBodySize = 65536

	// DefaultMaxHeaderBytes bounds the request line plus header block.
	DefaultMaxHeaderBytes = 8192

	// maxLeadingEmptyLines is how many bare CRLFs are tolerated before the
	// request line.
	maxLeadingEmptyLines = 4
)

// Limits bounds how much a Decoder will buffer for a single request.
// Zero values select the defaults.
type Limits struct {
	MaxBodySize    int64
	MaxHeaderBytes int
}

func (l *Limits) applyDefaults() {
	if l.MaxBodySize <= 0 {
		l.MaxBodySize = DefaultMaxBodySize
	}
	if l.MaxHeaderBytes <= 0 {
		l.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
}

// Decoder frames one request from a byte stream.
//
// A Decoder is used for exactly one request: the server never reads a
// second request from the same connection.
type Decoder struct {
	r           *bufio.Reader
	limits      Limits
	headerBytes int
}

// NewDecoder returns a Decoder reading from r. If r is already a
// *bufio.Reader it is used directly.
func NewDecoder(r io.Reader, limits Limits) *Decoder {
	limits.applyDefaults()

	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 4096)
	}
	return &Decoder{r: br, limits: limits}
}

// Decode reads the request line, the header block and the body.
//
// Returns:
//   - the decoded Request
//   - a *DecodeError wrapping ErrNoRequest if the stream ended before any byte
//   - a *DecodeError wrapping ErrMalformedRequest, ErrHeaderTooLarge or
//     ErrBodyTooLarge otherwise
func (d *Decoder) Decode() (*Request, error) {
	if _, err := d.r.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Kind: ErrNoRequest, Reason: "peer closed the connection"}
		}
		return nil, malformed("waiting for request", err)
	}

	method, uri, proto, err := d.readRequestLine()
	if err != nil {
		return nil, err
	}

	header, err := d.readHeader()
	if err != nil {
		return nil, err
	}

	body, err := d.readBody(header, proto)
	if err != nil {
		return nil, err
	}

	return &Request{
		Method: method,
		URI:    uri,
		Proto:  proto,
		Header: header,
		Body:   body,
	}, nil
}

// readLine returns the next line without its line terminator, charging its
// length against the header budget. A bare LF is accepted as terminator.
func (d *Decoder) readLine() (string, error) {
	var line []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		d.headerBytes += len(chunk)
		if d.headerBytes > d.limits.MaxHeaderBytes {
			return "", &DecodeError{
				Kind:   ErrHeaderTooLarge,
				Reason: fmt.Sprintf("exceeds %d bytes", d.limits.MaxHeaderBytes),
			}
		}
		line = append(line, chunk...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", malformed("incomplete line", err)
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line), nil
}

func (d *Decoder) readRequestLine() (method, uri, proto string, err error) {
	var line string
	for skipped := 0; ; skipped++ {
		line, err = d.readLine()
		if err != nil {
			return "", "", "", err
		}
		if line != "" {
			break
		}
		if skipped >= maxLeadingEmptyLines {
			return "", "", "", malformed("missing request line", nil)
		}
	}

	method, rest, ok := strings.Cut(line, " ")
	if !ok {
		return "", "", "", malformed(fmt.Sprintf("request line %q", line), nil)
	}
	uri, proto, ok = strings.Cut(rest, " ")
	if !ok {
		return "", "", "", malformed(fmt.Sprintf("request line %q", line), nil)
	}

	if !validToken(method) {
		return "", "", "", malformed(fmt.Sprintf("invalid method %q", method), nil)
	}
	if !validRequestTarget(uri) {
		return "", "", "", malformed(fmt.Sprintf("invalid request target %q", uri), nil)
	}
	if proto != "HTTP/1.1" && proto != "HTTP/1.0" {
		return "", "", "", malformed(fmt.Sprintf("unsupported protocol %q", proto), nil)
	}

	return method, uri, proto, nil
}

func (d *Decoder) readHeader() (Header, error) {
	header := make(Header)
	for {
		line, err := d.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return header, nil
		}

		if line[0] == ' ' || line[0] == '\t' {
			return nil, malformed("obsolete header line folding", nil)
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, malformed(fmt.Sprintf("header line %q has no colon", line), nil)
		}
		if !validToken(name) {
			return nil, malformed(fmt.Sprintf("invalid header name %q", name), nil)
		}

		value = strings.Trim(value, " \t")
		if !validHeaderValue(value) {
			return nil, malformed(fmt.Sprintf("invalid value for header %q", name), nil)
		}

		header.Add(name, value)
	}
}

func (d *Decoder) readBody(header Header, proto string) ([]byte, error) {
	transferEncoding := header.Values("Transfer-Encoding")
	contentLength := header.Values("Content-Length")

	if len(transferEncoding) > 0 {
		if len(contentLength) > 0 {
			return nil, malformed("both Content-Length and Transfer-Encoding present", nil)
		}
		if proto == "HTTP/1.0" {
			return nil, malformed("Transfer-Encoding in an HTTP/1.0 request", nil)
		}
		if !chunkedOnly(transferEncoding) {
			return nil, malformed(fmt.Sprintf("unsupported transfer coding %q",
				strings.Join(transferEncoding, ", ")), nil)
		}
		return d.readChunkedBody()
	}

	if len(contentLength) == 0 {
		return []byte{}, nil
	}

	n, err := parseContentLength(contentLength)
	if err != nil {
		return nil, err
	}
	if n > d.limits.MaxBodySize {
		return nil, &DecodeError{
			Kind:   ErrBodyTooLarge,
			Reason: fmt.Sprintf("Content-Length %d exceeds %d", n, d.limits.MaxBodySize),
		}
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return nil, malformed("incomplete body", err)
	}
	return body, nil
}

// readChunkedBody aggregates a chunked body. Reading stops one byte past
// the limit, so an oversized stream is never fully buffered.
func (d *Decoder) readChunkedBody() ([]byte, error) {
	limited := io.LimitReader(httputil.NewChunkedReader(d.r), d.limits.MaxBodySize+1)

	body, err := io.ReadAll(limited)
	if int64(len(body)) > d.limits.MaxBodySize {
		return nil, &DecodeError{
			Kind:   ErrBodyTooLarge,
			Reason: fmt.Sprintf("chunked body exceeds %d", d.limits.MaxBodySize),
		}
	}
	if err != nil {
		return nil, malformed("invalid chunked body", err)
	}
	return body, nil
}

func chunkedOnly(values []string) bool {
	codings := strings.Split(strings.Join(values, ","), ",")
	var seen []string
	for _, c := range codings {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			seen = append(seen, c)
		}
	}
	return len(seen) == 1 && seen[0] == "chunked"
}

// parseContentLength accepts repeated Content-Length values only when they
// all agree.
func parseContentLength(values []string) (int64, error) {
	n := int64(-1)
	for _, raw := range strings.Split(strings.Join(values, ","), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
			return 0, malformed(fmt.Sprintf("invalid Content-Length %q", raw), nil)
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, malformed(fmt.Sprintf("invalid Content-Length %q", raw), err)
		}
		if n >= 0 && v != n {
			return 0, malformed("conflicting Content-Length values", nil)
		}
		n = v
	}
	return n, nil
}

// validToken reports whether s is a non-empty RFC 9110 token.
func validToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}

func validRequestTarget(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] <= ' ' || s[i] == 0x7f {
			return false
		}
	}
	return true
}

func validHeaderValue(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\r' || c == '\n' || c == 0 {
			return false
		}
	}
	return true
}
