// Copyright 2026 The WorldMirror Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/worldmirror/shell/internal/log"
)

const (
	// DefaultMaxHealthAttempts is the default health check attempt budget.
	DefaultMaxHealthAttempts = 20

	// defaultShutdownTimeout bounds the graceful wait before the backend
	// is forcibly killed.
	defaultShutdownTimeout = 5 * time.Second
)

// ProcessSpawner launches the backend bound to a port and returns its PID.
type ProcessSpawner interface {
	Spawn(port int) (int, error)
}

// HealthWaiter blocks until the backend on the given port reports healthy
// or the attempt budget runs out.
type HealthWaiter interface {
	WaitUntilHealthy(ctx context.Context, port, maxAttempts int) error
}

// Manager owns the backend server's lifecycle state for one application
// run: the allocated port (set only after a successful health check) and
// the spawned PID (set at spawn time, before health is known).
//
// Both fields are guarded by a mutex held only for short reads and
// writes; the health wait always happens outside the lock. Concurrent
// Start callers are collapsed into a single allocate/spawn/health flight.
type Manager struct {
	spawner     ProcessSpawner
	health      HealthWaiter
	maxAttempts int
	logger      *slog.Logger
	pidFile     *PIDFile

	allocate  func() (int, error)
	terminate func(pid int) error

	mu   sync.Mutex
	port int
	pid  int

	group        singleflight.Group
	shutdownOnce sync.Once
}

// NewManager creates a manager for the given spawner and health checker.
func NewManager(spawner ProcessSpawner, health HealthWaiter) *Manager {
	return &Manager{
		spawner:     spawner,
		health:      health,
		maxAttempts: DefaultMaxHealthAttempts,
		logger:      slog.Default(),
		allocate:    AllocatePort,
		terminate:   defaultTerminate,
	}
}

// defaultTerminate runs the graceful-then-forced shutdown chain against
// the backend. A process that already exited counts as terminated.
func defaultTerminate(pid int) error {
	err := GracefulShutdown(pid, defaultShutdownTimeout, true)
	if errors.Is(err, ErrProcessNotRunning) {
		return nil
	}
	return err
}

// WithMaxHealthAttempts sets the health check attempt budget.
func (m *Manager) WithMaxHealthAttempts(attempts int) *Manager {
	if attempts > 0 {
		m.maxAttempts = attempts
	}
	return m
}

// WithLogger sets the structured logger.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithPIDFile records the spawned PID to the given file.
func (m *Manager) WithPIDFile(pidFile *PIDFile) *Manager {
	m.pidFile = pidFile
	return m
}

// WithAllocator replaces the port allocator. Used in tests.
func (m *Manager) WithAllocator(allocate func() (int, error)) *Manager {
	m.allocate = allocate
	return m
}

// WithTerminator replaces the process terminator. Used in tests.
func (m *Manager) WithTerminator(terminate func(pid int) error) *Manager {
	m.terminate = terminate
	return m
}

// Start launches the backend if it is not already running and returns its
// port. The fast path returns the cached port without spawning anything.
// Concurrent callers during startup share one flight: exactly one
// allocate/spawn/health sequence runs, and every caller receives its
// outcome.
//
// On health failure the spawned process is terminated and the PID
// cleared, so a later Start retries the whole sequence cleanly.
func (m *Manager) Start(ctx context.Context) (int, error) {
	m.mu.Lock()
	if m.port != 0 {
		port := m.port
		m.mu.Unlock()
		return port, nil
	}
	m.mu.Unlock()

	result, err, _ := m.group.Do("start", func() (any, error) {
		return m.doStart(ctx)
	})
	if err != nil {
		return 0, err
	}

	return result.(int), nil
}

// doStart runs the full startup sequence. Only one flight executes at a
// time; callers that lost the race to a completed flight take the
// cached-port path here.
func (m *Manager) doStart(ctx context.Context) (int, error) {
	m.mu.Lock()
	if m.port != 0 {
		port := m.port
		m.mu.Unlock()
		return port, nil
	}
	m.mu.Unlock()

	port, err := m.allocate()
	if err != nil {
		return 0, err
	}

	pid, err := m.spawner.Spawn(port)
	if err != nil {
		return 0, err
	}

	// Record the PID before the health wait so the shutdown hook can
	// clean up a process that never became healthy.
	m.mu.Lock()
	m.pid = pid
	m.mu.Unlock()

	if m.pidFile != nil {
		if err := m.pidFile.Write(pid); err != nil {
			m.logger.Warn("failed to write PID file", "path", m.pidFile.Path(), "error", err)
		}
	}

	m.logger.Info("server spawned", log.PIDKey, pid, log.PortKey, port)

	// The flight's outcome is shared by every concurrent caller, so one
	// caller's cancellation must not abort the startup they all await.
	healthCtx := context.WithoutCancel(ctx)

	if err := m.health.WaitUntilHealthy(healthCtx, port, m.maxAttempts); err != nil {
		m.reapFailed(pid)
		return 0, fmt.Errorf("server startup failed: %w", err)
	}

	m.mu.Lock()
	m.port = port
	m.mu.Unlock()

	m.logger.Info("server healthy", log.PIDKey, pid, log.PortKey, port)

	return port, nil
}

// reapFailed terminates a process that never became healthy and clears
// the recorded PID so the next Start attempt begins from scratch.
func (m *Manager) reapFailed(pid int) {
	if err := m.terminate(pid); err != nil {
		m.logger.Warn("failed to terminate unhealthy server", log.PIDKey, pid, "error", err)
	}

	m.mu.Lock()
	if m.pid == pid {
		m.pid = 0
	}
	m.mu.Unlock()

	if m.pidFile != nil {
		if err := m.pidFile.Remove(); err != nil {
			m.logger.Warn("failed to remove PID file", "path", m.pidFile.Path(), "error", err)
		}
	}
}

// CurrentPort returns the port of the healthy backend, if any. It never
// blocks on an in-flight start.
func (m *Manager) CurrentPort() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port, m.port != 0
}

// CurrentPID returns the spawned backend's PID, if any. The PID may be
// set while the port is not: spawn succeeded, health still pending.
func (m *Manager) CurrentPID() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pid, m.pid != 0
}

// Shutdown signals the recorded backend process to terminate. It runs at
// most once, is safe to call without a prior Start, and never returns an
// error: there is no recovery path during application teardown, so
// failures are only logged.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		pid := m.pid
		m.mu.Unlock()

		if pid == 0 {
			return
		}

		m.logger.Info("terminating server", log.PIDKey, pid)

		if err := m.terminate(pid); err != nil {
			m.logger.Warn("failed to terminate server", log.PIDKey, pid, "error", err)
		}

		if m.pidFile != nil {
			if err := m.pidFile.Remove(); err != nil {
				m.logger.Warn("failed to remove PID file", "path", m.pidFile.Path(), "error", err)
			}
		}
	})
}
