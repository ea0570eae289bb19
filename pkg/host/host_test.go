package host

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects lifecycle events in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) component(name string, initErr, teardownErr error) Lifecycle {
	return Lifecycle{
		Name: name,
		Init: func(context.Context) error {
			r.add("init " + name)
			return initErr
		},
		Teardown: func(context.Context) error {
			r.add("teardown " + name)
			return teardownErr
		},
	}
}

func TestRegister(t *testing.T) {
	h := New()
	require.NoError(t, h.Register(Lifecycle{Name: "pidfile"}))
	require.NoError(t, h.Register(Lifecycle{Name: "server"}))

	err := h.Register(Lifecycle{Name: "pidfile"})
	assert.ErrorContains(t, err, "already registered")

	assert.Error(t, h.Register(Lifecycle{}))
	assert.Equal(t, []string{"pidfile", "server"}, h.Components())
}

func TestRun_OrderAndShutdown(t *testing.T) {
	rec := &recorder{}
	h := New()
	require.NoError(t, h.Register(rec.component("a", nil, nil)))
	require.NoError(t, h.Register(rec.component("b", nil, nil)))
	require.NoError(t, h.Register(rec.component("c", nil, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, h.Running, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.False(t, h.Running())
	assert.Equal(t, []string{
		"init a", "init b", "init c",
		"teardown c", "teardown b", "teardown a",
	}, rec.list())
}

func TestRun_InitFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")

	h := New()
	require.NoError(t, h.Register(rec.component("a", nil, nil)))
	require.NoError(t, h.Register(rec.component("b", boom, nil)))
	require.NoError(t, h.Register(rec.component("c", nil, nil)))

	err := h.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "start b")

	assert.Equal(t, []string{"init a", "init b", "teardown a"}, rec.list())
}

func TestRun_TeardownErrorsJoined(t *testing.T) {
	rec := &recorder{}
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	h := New()
	require.NoError(t, h.Register(rec.component("a", nil, errA)))
	require.NoError(t, h.Register(rec.component("b", nil, errB)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Run(ctx)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"init a", "init b", "teardown b", "teardown a"}, rec.list())
}

func TestRun_OnlyOnce(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.Run(ctx))
	assert.Error(t, h.Run(ctx))
	assert.Error(t, h.Register(Lifecycle{Name: "late"}))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestFromCloser(t *testing.T) {
	closed := 0
	c := FromCloser("server", closerFunc(func() error {
		closed++
		return nil
	}))

	assert.Equal(t, "server", c.Name)
	assert.Nil(t, c.Init)
	require.NoError(t, c.Teardown(context.Background()))
	assert.Equal(t, 1, closed)
}
