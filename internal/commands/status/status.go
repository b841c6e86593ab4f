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

// Package status implements the `status` command, reporting on the
// backend process recorded by the last shell run and on whether the
// OS credential store is reachable.
package status

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/worldmirror/shell/internal/config"
	"github.com/worldmirror/shell/internal/server"
	"github.com/worldmirror/shell/internal/vault"
)

var configPath string

// NewCommand creates the status command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report on the recorded backend server and credential store",
		Long: `Report whether a backend server from a previous or current shell run
is still alive, based on the recorded PID file, and whether the OS
credential store is reachable. A stale PID record usually means the
shell exited without its shutdown hook.`,
		RunE: runStatus,
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: standard location)")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	pidPath, err := config.ResolveStatePath(cfg.Server.PIDFile)
	if err != nil {
		return err
	}

	if err := reportServer(cmd, pidPath); err != nil {
		return err
	}

	if vault.New(nil).Available() {
		fmt.Fprintln(cmd.OutOrStdout(), "credential store available")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "credential store unavailable")
	}

	return nil
}

func reportServer(cmd *cobra.Command, pidPath string) error {
	pid, err := server.NewPIDFile(pidPath).Read()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "no backend server recorded")
			return nil
		}
		return err
	}

	if server.IsRunning(pid) {
		fmt.Fprintf(cmd.OutOrStdout(), "backend server running (pid %d)\n", pid)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "stale record: pid %d is not running\n", pid)
	}

	return nil
}
