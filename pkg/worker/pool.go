// Package worker provides bounded execution pools for the endpoint server.
//
// A server needs two kinds of execution resources: acceptor units that run
// the accept loop, and worker units that service accepted connections. Both
// are a Pool. A Pool can be owned by one server or shared by several, which
// is why Shutdown is a separate, explicit step.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/marmos91/endpointd/internal/logger"
	"github.com/sourcegraph/conc"
)

// ErrPoolClosed is returned by Submit once Shutdown has been called.
var ErrPoolClosed = errors.New("worker pool is shut down")

// ErrPoolFull is returned by TrySubmit when every execution unit is busy.
var ErrPoolFull = errors.New("worker pool is full")

// Pool runs tasks on at most Size goroutines at a time.
//
// Slots are a buffered channel used as a semaphore; running tasks are
// tracked by a conc.WaitGroup so that a panicking task does not crash the
// process and is reported by Shutdown instead.
//
// Thread safety:
// All methods are safe for concurrent use.
type Pool struct {
	name string

	// slots holds one token per running task
	slots chan struct{}

	// closing is closed when Shutdown starts, releasing Submit callers
	// blocked on a full pool
	closing chan struct{}

	// mu orders wg.Go against the final wait in Shutdown
	mu     sync.RWMutex
	closed bool

	wg      conc.WaitGroup
	running atomic.Int32

	shutdownOnce sync.Once
	shutdownErr  error
	done         chan struct{}
}

// NewPool creates a pool named name with size execution units.
//
// Panics if size is not positive.
func NewPool(name string, size int) *Pool {
	if size <= 0 {
		panic(fmt.Sprintf("worker pool %q: size must be > 0, got %d", name, size))
	}
	return &Pool{
		name:    name,
		slots:   make(chan struct{}, size),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Name returns the pool name used in logs.
func (p *Pool) Name() string {
	return p.name
}

// Size returns the number of execution units.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Submit runs task on a free execution unit, blocking until one is
// available.
//
// Returns ErrPoolClosed if the pool is shut down before or while waiting,
// or ctx.Err() if ctx is done first.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	select {
	case p.slots <- struct{}{}:
	case <-p.closing:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.start(task)
}

// TrySubmit runs task on a free execution unit without waiting.
//
// Returns ErrPoolFull if every unit is busy and ErrPoolClosed if the pool
// is shut down.
func (p *Pool) TrySubmit(task func()) error {
	select {
	case <-p.closing:
		return ErrPoolClosed
	default:
	}

	select {
	case p.slots <- struct{}{}:
	default:
		return ErrPoolFull
	}
	return p.start(task)
}

// start runs task on the slot the caller already holds.
func (p *Pool) start(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		<-p.slots
		return ErrPoolClosed
	}

	p.running.Add(1)
	p.wg.Go(func() {
		defer func() {
			p.running.Add(-1)
			<-p.slots
		}()
		task()
	})
	return nil
}

// Shutdown stops accepting tasks and waits for running ones to finish.
//
// It is idempotent: later calls wait for the same completion and return
// the same result. If ctx expires first, Shutdown returns ctx.Err() while
// the tasks keep running in the background.
//
// A task that panicked is reported as an error here.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		logger.Debug("Worker pool %s: shutting down (running: %d)", p.name, p.Running())

		close(p.closing)

		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		go func() {
			if recovered := p.wg.WaitAndRecover(); recovered != nil {
				p.shutdownErr = fmt.Errorf("worker pool %s: task panicked: %w", p.name, recovered.AsError())
			}
			close(p.done)
		}()
	})

	select {
	case <-p.done:
		if p.shutdownErr == nil {
			logger.Debug("Worker pool %s: shut down", p.name)
		}
		return p.shutdownErr
	case <-ctx.Done():
		logger.Warn("Worker pool %s: shutdown interrupted with %d task(s) still running: %v",
			p.name, p.Running(), ctx.Err())
		return ctx.Err()
	}
}
