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

// Package config loads the shell's configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig describes how to launch and probe the backend server.
type ServerConfig struct {
	// Command is the executable that runs the backend.
	Command string `yaml:"command"`

	// Args are the entry-point arguments.
	Args []string `yaml:"args"`

	// Host is the loopback address the backend binds and the shell probes.
	Host string `yaml:"host"`

	// HealthAttempts is the health check attempt budget.
	HealthAttempts int `yaml:"health_attempts"`

	// LogFile receives the backend's stdout and stderr. Relative paths
	// resolve under the state directory.
	LogFile string `yaml:"log_file"`

	// PIDFile records the backend's PID. Relative paths resolve under
	// the state directory.
	PIDFile string `yaml:"pid_file"`
}

// BridgeConfig describes the local command bridge the front-end connects to.
type BridgeConfig struct {
	// PortRange is the inclusive range of loopback ports to try.
	PortRange [2]int `yaml:"port_range"`
}

// Config is the shell's full configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Bridge BridgeConfig `yaml:"bridge"`
}

// Default returns the built-in configuration: a Node backend launched
// through tsx, probed on loopback with the standard attempt budget.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Command:        "node",
			Args:           []string{"--import", "tsx", "../server/src/main.ts"},
			Host:           "127.0.0.1",
			HealthAttempts: 20,
			LogFile:        "server.log",
			PIDFile:        "server.pid",
		},
		Bridge: BridgeConfig{
			PortRange: [2]int{9460, 9479},
		},
	}
}

// Load reads the config file at path, falling back to defaults for a
// missing file and for any field left unset. An empty path means the
// standard location.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// applyDefaults fills fields an explicit config file left empty.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Server.Command == "" {
		cfg.Server.Command = def.Server.Command
		if cfg.Server.Args == nil {
			cfg.Server.Args = def.Server.Args
		}
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.HealthAttempts <= 0 {
		cfg.Server.HealthAttempts = def.Server.HealthAttempts
	}
	if cfg.Server.LogFile == "" {
		cfg.Server.LogFile = def.Server.LogFile
	}
	if cfg.Server.PIDFile == "" {
		cfg.Server.PIDFile = def.Server.PIDFile
	}
	if cfg.Bridge.PortRange[0] == 0 && cfg.Bridge.PortRange[1] == 0 {
		cfg.Bridge.PortRange = def.Bridge.PortRange
	}
}

// validate rejects configurations the shell cannot act on.
func validate(cfg *Config) error {
	if cfg.Server.Command == "" {
		return fmt.Errorf("server.command must not be empty")
	}
	if lo, hi := cfg.Bridge.PortRange[0], cfg.Bridge.PortRange[1]; lo > hi || lo < 0 || hi > 65535 {
		return fmt.Errorf("bridge.port_range [%d, %d] is not a valid port range", lo, hi)
	}
	return nil
}

// ResolveStatePath resolves a possibly-relative state file path against
// the state directory.
func ResolveStatePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, path), nil
}
