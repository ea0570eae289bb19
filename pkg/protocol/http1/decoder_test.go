package http1

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string, limits Limits) (*Request, error) {
	t.Helper()
	return NewDecoder(strings.NewReader(raw), limits).Decode()
}

func TestDecode_SimpleGet(t *testing.T) {
	req, err := decode(t, "GET /healthz HTTP/1.1\r\nHost: localhost\r\nAccept: */*\r\n\r\n", Limits{})
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/healthz", req.URI)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	assert.Equal(t, "localhost", req.Header.Get("host"))
	assert.NotNil(t, req.Body)
	assert.Empty(t, req.Body)
}

func TestDecode_HeadersCaseInsensitiveAndOrdered(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n" +
		"x-trace: first\r\n" +
		"X-TRACE: second\r\n" +
		"X-Trace:third \r\n" +
		"\r\n"

	req, err := decode(t, raw, Limits{})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, req.Header.Values("X-Trace"))
	assert.Equal(t, "first", req.Header.Get("x-trace"))
}

func TestDecode_ContentLengthBody(t *testing.T) {
	raw := "POST /rpc HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello world"

	req, err := decode(t, raw, Limits{})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), req.Body)
}

func TestDecode_BodyLimit(t *testing.T) {
	const limit = 65536

	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{name: "empty", size: 0},
		{name: "exactly at limit", size: limit},
		{name: "one byte over limit", size: limit + 1, wantErr: ErrBodyTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := bytes.Repeat([]byte("a"), tt.size)
			raw := fmt.Sprintf("POST /upload HTTP/1.1\r\nContent-Length: %d\r\n\r\n%s", tt.size, body)

			req, err := decode(t, raw, Limits{MaxBodySize: limit})
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, req.Body, tt.size)
		})
	}
}

func TestDecode_ChunkedBody(t *testing.T) {
	raw := "POST /rpc HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n" +
		"6\r\n world\r\n" +
		"0\r\n\r\n"

	req, err := decode(t, raw, Limits{})
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(req.Body))
}

func TestDecode_ChunkedBodyLimit(t *testing.T) {
	atLimit := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"8\r\n12345678\r\n0\r\n\r\n"
	req, err := decode(t, atLimit, Limits{MaxBodySize: 8})
	require.NoError(t, err)
	assert.Len(t, req.Body, 8)

	overLimit := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"8\r\n12345678\r\n1\r\n9\r\n0\r\n\r\n"
	_, err = decode(t, overLimit, Limits{MaxBodySize: 8})
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestDecode_LeadingEmptyLines(t *testing.T) {
	req, err := decode(t, "\r\n\r\nGET /varz HTTP/1.0\r\n\r\n", Limits{})
	require.NoError(t, err)
	assert.Equal(t, "/varz", req.URI)
	assert.Equal(t, "HTTP/1.0", req.Proto)
}

func TestDecode_NoRequest(t *testing.T) {
	_, err := decode(t, "", Limits{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRequest)
	assert.NotErrorIs(t, err, ErrMalformedRequest)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "garbled request line", raw: "this is not http\r\n\r\n"},
		{name: "incomplete request line", raw: "GET /healthz"},
		{name: "missing protocol", raw: "GET /healthz\r\n\r\n"},
		{name: "extra field", raw: "GET /a b HTTP/1.1\r\n\r\n"},
		{name: "unsupported version", raw: "GET / HTTP/2.0\r\n\r\n"},
		{name: "invalid method", raw: "G(T / HTTP/1.1\r\n\r\n"},
		{name: "header without colon", raw: "GET / HTTP/1.1\r\nHost localhost\r\n\r\n"},
		{name: "space before colon", raw: "GET / HTTP/1.1\r\nHost : localhost\r\n\r\n"},
		{name: "obsolete folding", raw: "GET / HTTP/1.1\r\nX-A: 1\r\n continued\r\n\r\n"},
		{name: "headers never terminated", raw: "GET / HTTP/1.1\r\nHost: localhost\r\n"},
		{name: "negative content length", raw: "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n"},
		{name: "non numeric content length", raw: "POST / HTTP/1.1\r\nContent-Length: ten\r\n\r\n"},
		{name: "conflicting content length", raw: "POST / HTTP/1.1\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\nab"},
		{name: "truncated body", raw: "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc"},
		{name: "content length and chunked", raw: "POST / HTTP/1.1\r\nContent-Length: 3\r\nTransfer-Encoding: chunked\r\n\r\n"},
		{name: "unknown transfer coding", raw: "POST / HTTP/1.1\r\nTransfer-Encoding: gzip\r\n\r\n"},
		{name: "bad chunk size", raw: "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\nabc\r\n0\r\n\r\n"},
		{name: "chunked in HTTP/1.0", raw: "POST / HTTP/1.0\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n"},
		{name: "too many empty lines", raw: "\r\n\r\n\r\n\r\n\r\n\r\nGET / HTTP/1.1\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := decode(t, tt.raw, Limits{})
			require.Error(t, err)
			assert.Nil(t, req)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "expected *DecodeError, got %T", err)
			assert.ErrorIs(t, err, ErrMalformedRequest)
		})
	}
}

func TestDecode_HeaderTooLarge(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("x", 200) + "\r\n\r\n"

	_, err := decode(t, raw, Limits{MaxHeaderBytes: 128})
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestHeader_Methods(t *testing.T) {
	h := make(Header)
	h.Add("content-type", "text/plain")
	h.Add("X-Multi", "a")
	h.Add("x-multi", "b")

	assert.True(t, h.Has("Content-Type"))
	assert.Equal(t, "text/plain", h.Get("CONTENT-TYPE"))

	clone := h.Clone()
	clone.Set("x-multi", "c")
	assert.Equal(t, []string{"a", "b"}, h.Values("X-Multi"))
	assert.Equal(t, []string{"c"}, clone.Values("X-Multi"))

	h.Del("content-type")
	assert.False(t, h.Has("Content-Type"))
	assert.Nil(t, Header(nil).Clone())
}
