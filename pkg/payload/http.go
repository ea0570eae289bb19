package payload

import (
	"mime"
	"net/http"

	"github.com/marmos91/endpointd/pkg/protocol/http1"
	"github.com/marmos91/endpointd/pkg/server"
)

// ContentType is the media type of every payload response.
const ContentType = "application/json"

// DecodeRequest decodes the body of req into v and returns the unclaimed
// members.
//
// Failures are returned as *server.RequestError so a handler can return
// them unchanged:
//   - 415 when Content-Type is present and is not application/json
//   - 400 when the body is empty, not valid JSON, or not an object
func DecodeRequest(req *http1.Request, v any) (map[string]any, error) {
	if ct := req.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != ContentType {
			return nil, server.NewRequestError(http.StatusUnsupportedMediaType,
				"unsupported content type %q", ct)
		}
	}
	if len(req.Body) == 0 {
		return nil, server.NewRequestError(http.StatusBadRequest, "empty request body")
	}

	extra, err := Unmarshal(req.Body, v)
	if err != nil {
		return nil, server.WrapRequestError(http.StatusBadRequest, err)
	}
	return extra, nil
}

// JSONResponse encodes v and extra as an application/json response.
func JSONResponse(status int, v any, extra map[string]any) (*http1.Response, error) {
	data, err := Marshal(v, extra)
	if err != nil {
		return nil, err
	}
	return http1.NewResponse(status, ContentType, data), nil
}
