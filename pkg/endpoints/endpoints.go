// Package endpoints provides the built-in handlers a host process usually
// mounts: a health check, a JSON status document and Prometheus metrics.
package endpoints

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/endpointd/internal/logger"
	"github.com/marmos91/endpointd/pkg/payload"
	"github.com/marmos91/endpointd/pkg/protocol/http1"
	"github.com/marmos91/endpointd/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultHealthzBody is what Healthz answers when no body is configured.
const DefaultHealthzBody = "ok\n"

// readOnly rejects methods other than GET and HEAD.
func readOnly(next server.HandlerFunc) server.HandlerFunc {
	return func(ctx context.Context, req *http1.Request) (*http1.Response, error) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			return nil, server.NewRequestError(http.StatusMethodNotAllowed,
				"method %s not allowed on %s", req.Method, req.URI)
		}
		return next(ctx, req)
	}
}

// Healthz answers 200 with body. An empty body selects DefaultHealthzBody.
func Healthz(body string) server.Handler {
	if body == "" {
		body = DefaultHealthzBody
	}
	return readOnly(func(context.Context, *http1.Request) (*http1.Response, error) {
		return http1.Text(http.StatusOK, body), nil
	})
}

// Info identifies the process in the varz document.
type Info struct {
	// Type is the component type, e.g. "router".
	Type string `mapstructure:"type"`

	// Index distinguishes instances of the same type.
	Index int `mapstructure:"index"`

	// UUID identifies this process. Generated when empty.
	UUID string `mapstructure:"uuid"`

	// Host is reported as is. Defaults to the hostname.
	Host string `mapstructure:"host"`

	// Start is the process start time. Defaults to when Varz was called.
	Start time.Time `mapstructure:"-"`

	// Extra members are added to the document; they never replace the
	// built-in ones.
	Extra map[string]any `mapstructure:"extra"`
}

// ConnectionCounter reports the number of active connections. *server.Server
// implements it.
type ConnectionCounter interface {
	ActiveConnections() int32
}

type varzDocument struct {
	Type              string    `json:"type"`
	Index             int       `json:"index"`
	UUID              string    `json:"uuid"`
	Host              string    `json:"host"`
	Start             time.Time `json:"start"`
	Uptime            string    `json:"uptime"`
	NumCores          int       `json:"num_cores"`
	Mem               uint64    `json:"mem"`
	NumGoroutines     int       `json:"num_goroutines"`
	ActiveConnections int32     `json:"active_connections"`
}

// Varz serves a JSON status document describing the process. conns may be
// nil, in which case active_connections is 0.
func Varz(info Info, conns ConnectionCounter) server.Handler {
	if info.UUID == "" {
		info.UUID = uuid.NewString()
	}
	if info.Host == "" {
		if hostname, err := os.Hostname(); err == nil {
			info.Host = hostname
		}
	}
	if info.Start.IsZero() {
		info.Start = time.Now()
	}

	return readOnly(func(context.Context, *http1.Request) (*http1.Response, error) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		doc := varzDocument{
			Type:          info.Type,
			Index:         info.Index,
			UUID:          info.UUID,
			Host:          info.Host,
			Start:         info.Start,
			Uptime:        time.Since(info.Start).Round(time.Second).String(),
			NumCores:      runtime.NumCPU(),
			Mem:           mem.Sys / 1024,
			NumGoroutines: runtime.NumGoroutine(),
		}
		if conns != nil {
			doc.ActiveConnections = conns.ActiveConnections()
		}

		return payload.JSONResponse(http.StatusOK, doc, info.Extra)
	})
}

// Metrics serves the metrics in gatherer in the Prometheus text format.
//
// A nil gatherer means metrics collection is disabled; the endpoint then
// answers 503.
func Metrics(gatherer prometheus.Gatherer) server.Handler {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)

	return readOnly(func(context.Context, *http1.Request) (*http1.Response, error) {
		if gatherer == nil {
			return nil, server.NewRequestError(http.StatusServiceUnavailable, "metrics collection is disabled")
		}

		families, err := gatherer.Gather()
		if err != nil {
			if len(families) == 0 {
				return nil, err
			}
			logger.Warn("Partial metrics gather: %v", err)
		}

		var buf bytes.Buffer
		enc := expfmt.NewEncoder(&buf, format)
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return nil, err
			}
		}

		return http1.NewResponse(http.StatusOK, string(format), buf.Bytes()), nil
	})
}
