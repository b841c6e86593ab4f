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

package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/worldmirror/shell/internal/vault"
)

// Bridge method names, mirroring the operations the front-end invokes.
const (
	MethodServerStart = "server.start"
	MethodServerPort  = "server.port"
	MethodVaultSet    = "vault.set"
	MethodVaultGet    = "vault.get"
	MethodVaultDelete = "vault.delete"
)

// ServerController is the slice of the server manager the bridge drives.
type ServerController interface {
	Start(ctx context.Context) (int, error)
	CurrentPort() (int, bool)
}

// CredentialStore is the slice of the vault the bridge drives.
type CredentialStore interface {
	Set(service, key, value string) vault.Result
	Get(service, key string) vault.Result
	Delete(service, key string) vault.Result
}

// Handler handles a single bridge request. Handlers never panic through
// the boundary; every outcome is a response or error message.
type Handler func(ctx context.Context, req *Message) *Message

// Registry maps method names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register registers a handler for the given method.
func (r *Registry) Register(method string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = handler
}

// Handle dispatches a request, producing a method-not-found error for
// unknown methods.
func (r *Registry) Handle(ctx context.Context, req *Message) *Message {
	r.mu.RLock()
	handler, ok := r.handlers[req.Method]
	r.mu.RUnlock()

	if !ok {
		return NewErrorResponse(req.CorrelationID, CodeMethodNotFound, "unknown method: "+req.Method)
	}

	return handler(ctx, req)
}

// startResult is the payload of a successful server.start.
type startResult struct {
	Port int `json:"port"`
}

// portResult is the payload of server.port. Port is null until the
// backend has passed its health check.
type portResult struct {
	Port *int `json:"port"`
}

// vaultParams carries the arguments of every vault method; Value is only
// read by vault.set.
type vaultParams struct {
	Service string `json:"service"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

// RegisterOperations binds the shell's exposed operations to the registry.
func RegisterOperations(registry *Registry, server ServerController, store CredentialStore) {
	registry.Register(MethodServerStart, func(ctx context.Context, req *Message) *Message {
		port, err := server.Start(ctx)
		if err != nil {
			return NewErrorResponse(req.CorrelationID, CodeStartFailed, err.Error())
		}
		return mustResponse(req.CorrelationID, startResult{Port: port})
	})

	registry.Register(MethodServerPort, func(ctx context.Context, req *Message) *Message {
		result := portResult{}
		if port, ok := server.CurrentPort(); ok {
			result.Port = &port
		}
		return mustResponse(req.CorrelationID, result)
	})

	registry.Register(MethodVaultSet, vaultHandler(func(p vaultParams) vault.Result {
		return store.Set(p.Service, p.Key, p.Value)
	}))

	registry.Register(MethodVaultGet, vaultHandler(func(p vaultParams) vault.Result {
		return store.Get(p.Service, p.Key)
	}))

	registry.Register(MethodVaultDelete, vaultHandler(func(p vaultParams) vault.Result {
		return store.Delete(p.Service, p.Key)
	}))
}

// vaultHandler adapts a vault operation into a Handler. Vault failures
// stay inside the Result payload: the boundary reports them as data, not
// as protocol errors.
func vaultHandler(op func(vaultParams) vault.Result) Handler {
	return func(ctx context.Context, req *Message) *Message {
		var params vaultParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return NewErrorResponse(req.CorrelationID, CodeInvalidParams, "invalid vault params: "+err.Error())
		}
		if params.Service == "" || params.Key == "" {
			return NewErrorResponse(req.CorrelationID, CodeInvalidParams, "service and key are required")
		}
		return mustResponse(req.CorrelationID, op(params))
	}
}

// mustResponse wraps NewResponse for payloads built from local structs,
// which cannot fail to marshal.
func mustResponse(correlationID string, result any) *Message {
	msg, err := NewResponse(correlationID, result)
	if err != nil {
		return NewErrorResponse(correlationID, CodeInternal, err.Error())
	}
	return msg
}
