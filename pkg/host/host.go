// Package host manages the lifecycle of the components an endpoint server is
// embedded in: PID files, endpoint servers and anything else with an
// init/teardown pair.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/endpointd/internal/logger"
)

// Lifecycle is one managed component.
//
// Init runs when the host starts; Teardown runs when it stops, but only if
// Init succeeded. Either may be nil.
type Lifecycle struct {
	Name     string
	Init     func(ctx context.Context) error
	Teardown func(ctx context.Context) error
}

// FromCloser wraps an already-started resource, such as an endpoint server,
// whose only lifecycle step is Close.
func FromCloser(name string, c io.Closer) Lifecycle {
	return Lifecycle{
		Name: name,
		Teardown: func(context.Context) error {
			return c.Close()
		},
	}
}

// Host starts registered components in order and stops them in reverse.
//
// Lifecycle:
//  1. Registration: Register() for each component
//  2. Startup: Run() calls Init on each component in registration order.
//     If one fails, the ones already started are torn down and Run returns.
//  3. Serving: Run() blocks until ctx is cancelled
//  4. Shutdown: Teardown in reverse order; every component is torn down
//     even if an earlier one fails, and the errors are joined.
//
// Thread safety:
// Register may be called concurrently with other methods. Run must only be
// called once.
//
// Example usage:
//
//	h := host.New()
//	h.Register(pidfile.New(path).Lifecycle())
//	h.Register(host.FromCloser("endpoints", srv))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := h.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
type Host struct {
	mu         sync.Mutex
	components []Lifecycle
	running    bool
	ran        bool
}

// New creates an empty Host.
func New() *Host {
	return &Host{components: make([]Lifecycle, 0, 4)}
}

// Register adds a component to be started by Run.
//
// Returns an error if a component with the same name is already registered
// or Run has already been called.
func (h *Host) Register(c Lifecycle) error {
	if c.Name == "" {
		return errors.New("component name is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ran {
		return fmt.Errorf("cannot register %s: host already started", c.Name)
	}
	for _, existing := range h.components {
		if existing.Name == c.Name {
			return fmt.Errorf("component %s already registered", c.Name)
		}
	}

	h.components = append(h.components, c)
	logger.Debug("Registered component %s", c.Name)
	return nil
}

// Components returns the registered component names in start order.
func (h *Host) Components() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, len(h.components))
	for i, c := range h.components {
		names[i] = c.Name
	}
	return names
}

// Running reports whether Run has started every component and not yet torn
// them down.
func (h *Host) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Run starts all components and blocks until ctx is cancelled.
//
// Returns:
//   - nil after a clean shutdown
//   - the Init error (joined with any rollback errors) if startup failed
//   - the joined Teardown errors otherwise
func (h *Host) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		return errors.New("host already started")
	}
	h.ran = true
	components := make([]Lifecycle, len(h.components))
	copy(components, h.components)
	h.mu.Unlock()

	logger.Info("Starting %d component(s)", len(components))

	started := 0
	for _, c := range components {
		if c.Init != nil {
			if err := c.Init(ctx); err != nil {
				logger.Error("Component %s failed to start: %v", c.Name, err)
				initErr := fmt.Errorf("start %s: %w", c.Name, err)
				return errors.Join(initErr, teardown(components[:started]))
			}
		}
		logger.Debug("Component %s started", c.Name)
		started++
	}

	h.setRunning(true)
	logger.Info("All components started")

	<-ctx.Done()
	logger.Info("Shutdown signal received (reason: %v)", context.Cause(ctx))

	h.setRunning(false)
	err := teardown(components)
	if err == nil {
		logger.Info("All components stopped")
	}
	return err
}

func (h *Host) setRunning(v bool) {
	h.mu.Lock()
	h.running = v
	h.mu.Unlock()
}

// teardown stops components in reverse order. Teardown gets a fresh context
// because the one passed to Run is already cancelled by now.
func teardown(components []Lifecycle) error {
	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if c.Teardown == nil {
			continue
		}
		logger.Debug("Stopping component %s", c.Name)
		if err := c.Teardown(context.Background()); err != nil {
			logger.Error("Error stopping %s: %v", c.Name, err)
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}
