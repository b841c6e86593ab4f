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

package status

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

// runCommand executes the status command against isolated config and
// state directories and returns its output.
func runCommand(t *testing.T) string {
	t.Helper()

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	return out.String()
}

func isolateDirs(t *testing.T) string {
	t.Helper()

	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmp, "state"))

	return filepath.Join(tmp, "state", "worldmirror", "server.pid")
}

func writePID(t *testing.T, path string, pid int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	keyring.MockInit()

	t.Run("no recorded server", func(t *testing.T) {
		isolateDirs(t)

		out := runCommand(t)
		if !strings.Contains(out, "no backend server recorded") {
			t.Errorf("output = %q, want mention of no recorded server", out)
		}
	})

	t.Run("running server", func(t *testing.T) {
		pidPath := isolateDirs(t)
		writePID(t, pidPath, os.Getpid())

		out := runCommand(t)
		want := fmt.Sprintf("backend server running (pid %d)", os.Getpid())
		if !strings.Contains(out, want) {
			t.Errorf("output = %q, want %q", out, want)
		}
	})

	t.Run("stale record", func(t *testing.T) {
		pidPath := isolateDirs(t)
		writePID(t, pidPath, 999999)

		out := runCommand(t)
		if !strings.Contains(out, "stale record: pid 999999 is not running") {
			t.Errorf("output = %q, want stale record notice", out)
		}
	})

	t.Run("reports credential store reachability", func(t *testing.T) {
		isolateDirs(t)

		out := runCommand(t)
		if !strings.Contains(out, "credential store available") {
			t.Errorf("output = %q, want credential store availability", out)
		}
	})
}
