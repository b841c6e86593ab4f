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
	"errors"
	"time"
)

var (
	// ErrProcessNotRunning is returned when the process does not exist.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrShutdownTimeout is returned when the process doesn't exit within the timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

// IsRunning checks if a process with the given PID exists.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	return isRunning(pid)
}

// Terminate asks the process to shut down. On POSIX systems this sends
// SIGTERM; on Windows it issues a forced kill (there is no graceful
// equivalent addressable by PID).
func Terminate(pid int) error {
	if pid <= 0 {
		return ErrProcessNotRunning
	}
	return terminate(pid)
}

// Kill forcibly stops the process. On POSIX this is SIGKILL; on Windows
// it is identical to Terminate.
func Kill(pid int) error {
	if pid <= 0 {
		return ErrProcessNotRunning
	}
	return kill(pid)
}

// WaitForExit waits for the process to exit, checking every interval.
// Returns ErrShutdownTimeout if the process is still running after timeout.
func WaitForExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	interval := 100 * time.Millisecond

	for time.Now().Before(deadline) {
		if !IsRunning(pid) {
			return nil
		}
		time.Sleep(interval)
	}

	return ErrShutdownTimeout
}

// GracefulShutdown terminates a process and waits for it to exit.
// If force is true and the timeout is exceeded, the process is killed.
func GracefulShutdown(pid int, timeout time.Duration, force bool) error {
	if !IsRunning(pid) {
		return ErrProcessNotRunning
	}

	if err := Terminate(pid); err != nil {
		return err
	}

	err := WaitForExit(pid, timeout)
	if err == nil {
		return nil
	}

	if !force {
		return err
	}

	if err := Kill(pid); err != nil {
		return err
	}

	if err := WaitForExit(pid, 5*time.Second); err != nil {
		return errors.New("process did not exit after forced kill")
	}

	return nil
}
