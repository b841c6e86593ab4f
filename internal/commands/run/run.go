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

// Package run implements the `run` command: the shell's main mode, in
// which it serves the command bridge and supervises the backend server
// for the lifetime of the application window.
package run

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/worldmirror/shell/internal/bridge"
	"github.com/worldmirror/shell/internal/config"
	"github.com/worldmirror/shell/internal/log"
	"github.com/worldmirror/shell/internal/server"
	"github.com/worldmirror/shell/internal/vault"
)

var (
	configPath  string
	eagerStart  bool
	disableAuth bool
)

// handshake is printed to stdout as a single JSON line so the host
// process can connect to the bridge.
type handshake struct {
	BridgePort int    `json:"bridgePort"`
	Token      string `json:"token,omitempty"`
}

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve the command bridge and supervise the backend server",
		Long: `Run the shell until interrupted.

On startup the shell binds a loopback websocket bridge and prints a
single JSON handshake line to stdout:

  {"bridgePort": 9460, "token": "..."}

The front-end connects with the token and drives the shell through the
bridge methods (server.start, server.port, vault.set, vault.get,
vault.delete). On SIGINT/SIGTERM the backend process is terminated and
the bridge closed.`,
		RunE: runShell,
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: standard location)")
	cmd.Flags().BoolVar(&eagerStart, "start-server", false, "Start the backend immediately instead of waiting for server.start")
	cmd.Flags().BoolVar(&disableAuth, "no-auth", false, "Disable bridge authentication (local debugging only)")

	return cmd
}

func runShell(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	mgr, err := buildManager(cfg, logger)
	if err != nil {
		return err
	}

	token := ""
	if !disableAuth {
		token, err = bridge.GenerateToken()
		if err != nil {
			return fmt.Errorf("failed to generate bridge token: %w", err)
		}
	}

	registry := bridge.NewRegistry()
	bridge.RegisterOperations(registry, mgr, vault.New(log.WithComponent(logger, "vault")))

	srv := bridge.NewServer(registry, bridge.ServerConfig{
		PortRange: cfg.Bridge.PortRange,
		AuthToken: token,
		Logger:    log.WithComponent(logger, "bridge"),
	})

	bridgePort, err := srv.Listen()
	if err != nil {
		return err
	}

	if err := json.NewEncoder(os.Stdout).Encode(handshake{BridgePort: bridgePort, Token: token}); err != nil {
		return fmt.Errorf("failed to write handshake: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if eagerStart {
		if _, err := mgr.Start(ctx); err != nil {
			logger.Error("eager server start failed", log.Error(err))
			// The bridge stays up: the front-end can retry server.start.
		}
	}

	<-ctx.Done()

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.Warn("bridge shutdown failed", log.Error(err))
	}
	mgr.Shutdown()

	return nil
}

// buildManager wires the supervisor from configuration.
func buildManager(cfg *config.Config, logger *slog.Logger) (*server.Manager, error) {
	logPath, err := config.ResolveStatePath(cfg.Server.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server log path: %w", err)
	}
	pidPath, err := config.ResolveStatePath(cfg.Server.PIDFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve PID file path: %w", err)
	}

	spawner := server.NewSpawner(cfg.Server.Command, cfg.Server.Args, cfg.Server.Host, logPath)
	health := server.NewHealthChecker(cfg.Server.Host)

	mgr := server.NewManager(spawner, health).
		WithMaxHealthAttempts(cfg.Server.HealthAttempts).
		WithLogger(log.WithComponent(logger, "server")).
		WithPIDFile(server.NewPIDFile(pidPath))

	return mgr, nil
}
