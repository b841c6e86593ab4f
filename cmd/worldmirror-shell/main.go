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

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	runcmd "github.com/worldmirror/shell/internal/commands/run"
	statuscmd "github.com/worldmirror/shell/internal/commands/status"
	vaultcmd "github.com/worldmirror/shell/internal/commands/vault"
	"github.com/worldmirror/shell/internal/log"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	rootCmd := &cobra.Command{
		Use:   "worldmirror-shell",
		Short: "Desktop shell core for WorldMirror",
		Long: `worldmirror-shell supervises the embedded WorldMirror backend server
and exposes it, together with the OS credential store, to the desktop
front-end over a loopback websocket bridge.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.AddCommand(runcmd.NewCommand())
	rootCmd.AddCommand(statuscmd.NewCommand())
	rootCmd.AddCommand(vaultcmd.NewCommand())

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", log.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
