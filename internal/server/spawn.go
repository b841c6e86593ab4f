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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrSpawn is returned when the backend executable cannot be launched.
var ErrSpawn = errors.New("failed to spawn server")

// Spawner launches the backend server as a detached child process.
type Spawner struct {
	// Command is the executable to launch (e.g. "node").
	Command string

	// Args are the entry-point arguments (e.g. --import tsx .../main.ts).
	Args []string

	// Host is the bind address passed to the child via HOST.
	Host string

	// LogPath receives the child's stdout and stderr.
	LogPath string

	// Env is the base environment for the child. Defaults to os.Environ().
	Env []string
}

// NewSpawner creates a spawner for the given backend command.
func NewSpawner(command string, args []string, host, logPath string) *Spawner {
	return &Spawner{
		Command: command,
		Args:    args,
		Host:    host,
		LogPath: logPath,
		Env:     os.Environ(),
	}
}

// Spawn launches the backend bound to the given port and returns its PID.
// The child:
//   - Receives PORT and HOST through its environment
//   - Runs in its own process group (not killed when the shell exits)
//   - Has stdin closed, stdout/stderr appended to LogPath
func (s *Spawner) Spawn(port int) (int, error) {
	logDir := filepath.Dir(s.LogPath)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return 0, fmt.Errorf("%w: failed to create log directory: %v", ErrSpawn, err)
	}

	logFile, err := os.OpenFile(s.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to open log file: %v", ErrSpawn, err)
	}
	defer logFile.Close()

	cmd := exec.Command(s.Command, s.Args...)
	cmd.Env = append(append([]string{}, s.Env...),
		fmt.Sprintf("PORT=%d", port),
		fmt.Sprintf("HOST=%s", s.Host),
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	pid := cmd.Process.Pid

	// Don't wait for the child; the shell outlives or signals it explicitly.
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("server started but failed to release process: %w", err)
	}

	return pid, nil
}
