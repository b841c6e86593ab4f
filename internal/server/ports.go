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
	"net"
)

// ErrPortBind is returned when the OS refuses to assign an ephemeral port.
var ErrPortBind = errors.New("failed to bind ephemeral port")

// AllocatePort asks the OS for a free loopback port by binding to port 0,
// reading back the assigned port, and releasing the listener so the backend
// can bind it instead.
//
// The port is guaranteed free at the instant of the call only. A race exists
// between release and the child's bind; this is the standard accepted risk
// of the allocate-then-spawn pattern.
func AllocatePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPortBind, err)
	}
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected address type %T", ErrPortBind, listener.Addr())
	}

	return addr.Port, nil
}
