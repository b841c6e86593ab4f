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

//go:build !windows

package server

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// skipOnSpawnError skips the test in environments that block fork/exec
// (sandboxed runners, restricted containers).
func skipOnSpawnError(t *testing.T, err error) {
	t.Helper()
	if err != nil && strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("Skipping: spawn not permitted in this environment: %v", err)
	}
}

func TestIsRunning(t *testing.T) {
	t.Run("true for current process", func(t *testing.T) {
		if !IsRunning(os.Getpid()) {
			t.Error("IsRunning(os.Getpid()) = false, want true")
		}
	})

	t.Run("false for non-existent PID", func(t *testing.T) {
		if IsRunning(999999) {
			t.Error("IsRunning(999999) = true, want false")
		}
	})

	t.Run("false for non-positive PID", func(t *testing.T) {
		if IsRunning(0) || IsRunning(-1) {
			t.Error("IsRunning() = true for non-positive PID, want false")
		}
	})
}

func TestTerminate(t *testing.T) {
	t.Run("stops a running process", func(t *testing.T) {
		cmd := exec.Command("sleep", "60")
		err := cmd.Start()
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatalf("failed to start sleep: %v", err)
		}
		pid := cmd.Process.Pid
		defer cmd.Process.Kill()

		if err := Terminate(pid); err != nil {
			t.Fatalf("Terminate() error = %v", err)
		}

		// Reap the child so the PID leaves the process table.
		done := make(chan struct{})
		go func() {
			cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("process did not exit after Terminate()")
		}
	})

	t.Run("error for non-existent process", func(t *testing.T) {
		if err := Terminate(999999); err == nil {
			t.Error("Terminate(999999) error = nil, want error")
		}
	})

	t.Run("error for non-positive PID", func(t *testing.T) {
		if err := Terminate(0); !errors.Is(err, ErrProcessNotRunning) {
			t.Errorf("Terminate(0) error = %v, want ErrProcessNotRunning", err)
		}
	})
}

func TestWaitForExit(t *testing.T) {
	t.Run("returns promptly for dead process", func(t *testing.T) {
		if err := WaitForExit(999999, 2*time.Second); err != nil {
			t.Errorf("WaitForExit() error = %v", err)
		}
	})

	t.Run("times out for a process that stays up", func(t *testing.T) {
		err := WaitForExit(os.Getpid(), 300*time.Millisecond)
		if !errors.Is(err, ErrShutdownTimeout) {
			t.Errorf("WaitForExit() error = %v, want ErrShutdownTimeout", err)
		}
	})
}

func TestGracefulShutdown(t *testing.T) {
	t.Run("error for process that is not running", func(t *testing.T) {
		err := GracefulShutdown(999999, time.Second, false)
		if !errors.Is(err, ErrProcessNotRunning) {
			t.Errorf("GracefulShutdown() error = %v, want ErrProcessNotRunning", err)
		}
	})

	t.Run("stops a running process within the graceful window", func(t *testing.T) {
		cmd := exec.Command("sleep", "60")
		err := cmd.Start()
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatalf("failed to start sleep: %v", err)
		}
		defer cmd.Process.Kill()

		// Reap concurrently so the PID leaves the process table once
		// the child exits.
		go cmd.Wait()

		if err := GracefulShutdown(cmd.Process.Pid, 5*time.Second, true); err != nil {
			t.Fatalf("GracefulShutdown() error = %v", err)
		}
		if IsRunning(cmd.Process.Pid) {
			t.Error("process still running after GracefulShutdown()")
		}
	})
}

func TestDefaultTerminate(t *testing.T) {
	t.Run("already-exited process is a success", func(t *testing.T) {
		if err := defaultTerminate(999999); err != nil {
			t.Errorf("defaultTerminate(999999) error = %v, want nil", err)
		}
	})

	t.Run("stops a running process", func(t *testing.T) {
		cmd := exec.Command("sleep", "60")
		err := cmd.Start()
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatalf("failed to start sleep: %v", err)
		}
		defer cmd.Process.Kill()

		go cmd.Wait()

		if err := defaultTerminate(cmd.Process.Pid); err != nil {
			t.Fatalf("defaultTerminate() error = %v", err)
		}
		if IsRunning(cmd.Process.Pid) {
			t.Error("process still running after defaultTerminate()")
		}
	})
}
