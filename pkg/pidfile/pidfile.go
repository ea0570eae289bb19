// Package pidfile writes the process ID to a file for the lifetime of the
// process, so supervisors and scripts can find it.
package pidfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/marmos91/endpointd/internal/logger"
	"github.com/marmos91/endpointd/pkg/host"
)

// ErrAlreadyRunning is returned by Init when the file names a live process.
var ErrAlreadyRunning = errors.New("pid file is owned by a running process")

// PidFile manages a single PID file.
type PidFile struct {
	path string
	pid  int
}

// New returns a PidFile for path. Nothing is written until Init.
func New(path string) *PidFile {
	return &PidFile{path: path, pid: os.Getpid()}
}

// Name identifies the component in host logs.
func (p *PidFile) Name() string {
	return "pidfile"
}

// Path returns the file location.
func (p *PidFile) Path() string {
	return p.path
}

// Init writes the current PID to the file.
//
// A stale file, one naming a process that no longer exists or holding
// garbage, is replaced. A file naming another live process fails with
// ErrAlreadyRunning. The write goes through a temporary file in the same
// directory and a rename, so readers never see a partial PID.
func (p *PidFile) Init(ctx context.Context) error {
	if pid, err := p.read(); err == nil {
		if pid != p.pid && processAlive(pid) {
			return fmt.Errorf("%s (pid %d): %w", p.path, pid, ErrAlreadyRunning)
		}
		logger.Debug("Replacing stale pid file %s (pid %d)", p.path, pid)
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Debug("Ignoring unreadable pid file %s: %v", p.path, err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create pid file directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.path)+".*")
	if err != nil {
		return fmt.Errorf("create pid file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := fmt.Fprintf(tmp, "%d\n", p.pid); err != nil {
		tmp.Close()
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod pid file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close pid file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("install pid file: %w", err)
	}

	logger.Info("Wrote pid %d to %s", p.pid, p.path)
	return nil
}

// Teardown removes the file if it still holds our PID. A missing file, or
// one rewritten by another process, is left alone. Safe to call repeatedly.
func (p *PidFile) Teardown(ctx context.Context) error {
	pid, err := p.read()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil || pid != p.pid {
		logger.Warn("Not removing pid file %s: no longer owned by pid %d", p.path, p.pid)
		return nil
	}

	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	logger.Debug("Removed pid file %s", p.path)
	return nil
}

// Lifecycle adapts the PidFile for host.Host.
func (p *PidFile) Lifecycle() host.Lifecycle {
	return host.Lifecycle{Name: p.Name(), Init: p.Init, Teardown: p.Teardown}
}

func (p *PidFile) read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file contents %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// processAlive reports whether pid names a running process. EPERM means it
// exists but belongs to someone else.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
