package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRegistry(t *testing.T) {
	InitRegistry()
	InitRegistry() // second call is a no-op

	require.True(t, IsEnabled())
	require.NotNil(t, Gatherer())

	families, err := Gatherer().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["go_goroutines"], "go collector should be registered")
}

func TestNoopServerMetrics(t *testing.T) {
	m := NewNoopServerMetrics()
	assert.NotPanics(t, func() {
		m.RecordRequest("/", 200, "handler_succeeded", time.Millisecond)
		m.RecordBytesTransferred("read", 10)
		m.SetActiveConnections(1)
		m.RecordConnectionAccepted()
		m.RecordConnectionClosed()
		m.RecordConnectionForceClosed()
	})
}
