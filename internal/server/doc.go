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

/*
Package server manages the embedded backend server's lifecycle.

The shell owns exactly one backend process per application run: it
allocates a loopback port, spawns the server with PORT/HOST in its
environment, polls the /health endpoint with exponential backoff, and
terminates the process when the application window closes.

# Starting

	spawner := server.NewSpawner("node", args, "127.0.0.1", logPath)
	health := server.NewHealthChecker("127.0.0.1")
	mgr := server.NewManager(spawner, health).
		WithLogger(logger).
		WithPIDFile(server.NewPIDFile(pidPath))
	port, err := mgr.Start(ctx)
	if err != nil {
	    // Backend failed to launch or never became healthy
	}

Start is idempotent and safe for concurrent callers: once the backend
is healthy the cached port is returned immediately, and concurrent
callers during startup share a single allocate/spawn/health sequence.

# Shutdown

	mgr.Shutdown()

Shutdown runs the graceful-then-forced chain against the recorded
process: SIGTERM, a bounded wait for exit, then SIGKILL (on Windows
termination is always forced). It is best-effort: failures are logged,
never returned, since it only runs during application teardown.

# PID files

The spawned backend's PID is recorded to a state-directory file so a
shell that crashed without running its shutdown hook leaves a
discoverable record for the next run and for `worldmirror-shell status`.
*/
package server
