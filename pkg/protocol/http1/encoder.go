package http1

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
)

// ErrInvalidResponse is returned by Validate and Encode for a response that
// cannot be put on the wire.
var ErrInvalidResponse = errors.New("invalid response")

// managedHeaders are written by the encoder itself. Values a handler sets
// for them are dropped so framing always matches what is actually sent.
var managedHeaders = map[string]bool{
	"Content-Length":    true,
	"Connection":        true,
	"Transfer-Encoding": true,
}

// Validate checks that resp has a valid status and header block.
func Validate(resp *Response) error {
	if resp == nil {
		return fmt.Errorf("%w: nil response", ErrInvalidResponse)
	}
	if !ValidStatus(resp.Status) {
		return fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.Status)
	}
	for name, values := range resp.Header {
		if !validToken(name) {
			return fmt.Errorf("%w: header name %q", ErrInvalidResponse, name)
		}
		for _, v := range values {
			if !validHeaderValue(v) {
				return fmt.Errorf("%w: value of header %q", ErrInvalidResponse, name)
			}
		}
	}
	return nil
}

// Encode writes resp as a complete HTTP/1.1 message.
//
// The message always carries Connection: close and, when the status allows
// a body, an explicit Content-Length. With omitBody (HEAD requests) the
// Content-Length still describes the body but the body itself is not sent.
func Encode(w io.Writer, resp *Response, omitBody bool) error {
	if err := Validate(resp); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "HTTP/1.1 %s\r\n", StatusLine(resp.Status))
	for _, name := range resp.Header.sortedKeys() {
		if managedHeaders[textproto.CanonicalMIMEHeaderKey(name)] {
			continue
		}
		for _, v := range resp.Header[name] {
			fmt.Fprintf(bw, "%s: %s\r\n", name, v)
		}
	}

	body := resp.Body
	if bodyAllowed(resp.Status) {
		bw.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	} else {
		body = nil
	}
	bw.WriteString("Connection: close\r\n\r\n")

	if !omitBody && len(body) > 0 {
		if _, err := bw.Write(body); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}
