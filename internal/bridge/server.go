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

// Package bridge exposes the shell's operations to the front-end over a
// loopback websocket: server.start, server.port, and the vault methods.
// Every message carries a correlation ID; every outcome crosses the
// boundary as a structured response or error, never a fault.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/worldmirror/shell/internal/log"
)

var (
	// ErrServerClosed is returned when operations are attempted on a closed server.
	ErrServerClosed = errors.New("bridge: server closed")

	// ErrNoPortAvailable is returned when no port in the configured range is available.
	ErrNoPortAvailable = errors.New("bridge: no port available in range")
)

// ServerConfig configures the bridge server.
type ServerConfig struct {
	// PortRange specifies the inclusive range of loopback ports to try.
	PortRange [2]int

	// AuthToken is the required token for connections.
	// If empty, authentication is disabled.
	AuthToken string

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 5 seconds
	ShutdownTimeout time.Duration

	// Logger is the structured logger for server events.
	// If nil, a default logger is used.
	Logger *slog.Logger
}

// Server accepts front-end connections and dispatches their requests.
type Server struct {
	registry  *Registry
	validator *TokenValidator
	logger    *slog.Logger
	config    ServerConfig
	upgrader  websocket.Upgrader

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	port       int
	closed     bool
}

// NewServer creates a bridge server dispatching to the given registry.
func NewServer(registry *Registry, config ServerConfig) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 5 * time.Second
	}

	return &Server{
		registry:  registry,
		validator: NewTokenValidator(config.AuthToken),
		logger:    config.Logger,
		config:    config,
		upgrader: websocket.Upgrader{
			// The listener is loopback-only; the token is the gate.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Listen binds the first free loopback port in the configured range and
// starts serving connections. It returns the bound port.
func (s *Server) Listen() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrServerClosed
	}
	if s.listener != nil {
		return s.port, nil
	}

	var listener net.Listener
	for port := s.config.PortRange[0]; port <= s.config.PortRange[1]; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			listener = l
			s.port = port
			break
		}
	}
	if listener == nil {
		return 0, fmt.Errorf("%w [%d, %d]", ErrNoPortAvailable, s.config.PortRange[0], s.config.PortRange[1])
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/bridge", s.handleConnection)

	s.listener = listener
	s.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge server failed", "error", err)
		}
	}()

	s.logger.Info("bridge listening", log.PortKey, s.port)

	return s.port, nil
}

// Port returns the bound port, or 0 before Listen.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Shutdown stops accepting connections and closes the server.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

// handleConnection authenticates, upgrades, and runs the read loop for
// one front-end connection.
func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.validator.Validate(bearerToken(r)); err != nil {
		s.logger.Warn("bridge connection rejected", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.logger.Debug("bridge connection opened", "remote", r.RemoteAddr)

	var writeMu sync.Mutex
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("bridge connection closed", "error", err)
			}
			return
		}

		req, err := ParseMessage(data)
		if err != nil {
			writeMu.Lock()
			if werr := conn.WriteJSON(NewErrorResponse("", CodeInvalidParams, err.Error())); werr != nil {
				s.logger.Debug("failed to write bridge response", "error", werr)
			}
			writeMu.Unlock()
			continue
		}

		// Dispatch concurrently so a long server.start doesn't block
		// vault calls on the same connection.
		go func(req *Message) {
			resp := s.registry.Handle(r.Context(), req)
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := conn.WriteJSON(resp); err != nil {
				s.logger.Debug("failed to write bridge response", "error", err)
			}
		}(req)
	}
}

// bearerToken extracts the connection token from the Authorization
// header or, for browser websocket clients that cannot set headers, the
// token query parameter.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return r.URL.Query().Get("token")
}
