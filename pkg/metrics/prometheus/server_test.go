package prometheus

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerMetrics_Requests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetricsWith(reg).(*serverMetrics)

	m.RecordRequest("/healthz", 200, "handler_succeeded", 2*time.Millisecond)
	m.RecordRequest("/healthz", 200, "handler_succeeded", 3*time.Millisecond)
	m.RecordRequest("<unmatched>", 404, "route_missing", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/healthz", "200", "handler_succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("<unmatched>", "404", "route_missing")))

	count, err := testutil.GatherAndCount(reg, "endpointd_request_duration_milliseconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestServerMetrics_Connections(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetricsWith(reg)

	m.RecordConnectionAccepted()
	m.RecordConnectionAccepted()
	m.SetActiveConnections(2)
	m.RecordConnectionClosed()
	m.RecordConnectionForceClosed()
	m.SetActiveConnections(0)
	m.RecordBytesTransferred("read", 100)
	m.RecordBytesTransferred("write", 40)

	expected := `
# HELP endpointd_connections_accepted_total Total number of connections accepted
# TYPE endpointd_connections_accepted_total counter
endpointd_connections_accepted_total 2
# HELP endpointd_active_connections Current number of active connections
# TYPE endpointd_active_connections gauge
endpointd_active_connections 0
# HELP endpointd_bytes_transferred_total Total bytes read from and written to clients
# TYPE endpointd_bytes_transferred_total counter
endpointd_bytes_transferred_total{direction="read"} 100
endpointd_bytes_transferred_total{direction="write"} 40
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"endpointd_connections_accepted_total",
		"endpointd_active_connections",
		"endpointd_bytes_transferred_total",
	)
	assert.NoError(t, err)
}
