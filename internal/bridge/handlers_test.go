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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldmirror/shell/internal/vault"
)

// fakeController stands in for the server manager.
type fakeController struct {
	port     int
	startErr error
	started  int
}

func (f *fakeController) Start(ctx context.Context) (int, error) {
	f.started++
	if f.startErr != nil {
		return 0, f.startErr
	}
	return f.port, nil
}

func (f *fakeController) CurrentPort() (int, bool) {
	return f.port, f.port != 0
}

// fakeStore is an in-memory CredentialStore with vault semantics.
type fakeStore struct {
	entries map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]string)}
}

func (f *fakeStore) Set(service, key, value string) vault.Result {
	f.entries[service+"/"+key] = value
	return vault.Result{Success: true}
}

func (f *fakeStore) Get(service, key string) vault.Result {
	if value, ok := f.entries[service+"/"+key]; ok {
		return vault.Result{Success: true, Value: &value}
	}
	return vault.Result{Success: true}
}

func (f *fakeStore) Delete(service, key string) vault.Result {
	delete(f.entries, service+"/"+key)
	return vault.Result{Success: true}
}

func newTestRegistry(ctrl *fakeController, store *fakeStore) *Registry {
	registry := NewRegistry()
	RegisterOperations(registry, ctrl, store)
	return registry
}

func request(t *testing.T, method string, params any) *Message {
	t.Helper()
	req, err := NewRequest(method, params)
	require.NoError(t, err)
	return req
}

func TestRegistry_UnknownMethod(t *testing.T) {
	registry := newTestRegistry(&fakeController{}, newFakeStore())

	resp := registry.Handle(context.Background(), request(t, "server.restart", nil))

	assert.Equal(t, MessageTypeError, resp.Type)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestServerStartHandler(t *testing.T) {
	t.Run("returns the started port", func(t *testing.T) {
		ctrl := &fakeController{port: 8080}
		registry := newTestRegistry(ctrl, newFakeStore())

		req := request(t, MethodServerStart, nil)
		resp := registry.Handle(context.Background(), req)

		require.Equal(t, MessageTypeResponse, resp.Type)
		assert.Equal(t, req.CorrelationID, resp.CorrelationID)

		var result startResult
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		assert.Equal(t, 8080, result.Port)
		assert.Equal(t, 1, ctrl.started)
	})

	t.Run("start failure crosses as structured error", func(t *testing.T) {
		ctrl := &fakeController{startErr: errors.New("server did not become healthy after 20 attempts")}
		registry := newTestRegistry(ctrl, newFakeStore())

		resp := registry.Handle(context.Background(), request(t, MethodServerStart, nil))

		require.Equal(t, MessageTypeError, resp.Type)
		assert.Equal(t, CodeStartFailed, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "20 attempts")
	})
}

func TestServerPortHandler(t *testing.T) {
	t.Run("null before start", func(t *testing.T) {
		registry := newTestRegistry(&fakeController{}, newFakeStore())

		resp := registry.Handle(context.Background(), request(t, MethodServerPort, nil))

		require.Equal(t, MessageTypeResponse, resp.Type)
		var result portResult
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		assert.Nil(t, result.Port)
	})

	t.Run("port after start", func(t *testing.T) {
		registry := newTestRegistry(&fakeController{port: 9000}, newFakeStore())

		resp := registry.Handle(context.Background(), request(t, MethodServerPort, nil))

		var result portResult
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		require.NotNil(t, result.Port)
		assert.Equal(t, 9000, *result.Port)
	})
}

func TestVaultHandlers(t *testing.T) {
	t.Run("set get delete round trip", func(t *testing.T) {
		registry := newTestRegistry(&fakeController{}, newFakeStore())
		ctx := context.Background()

		resp := registry.Handle(ctx, request(t, MethodVaultSet, vaultParams{Service: "sync", Key: "token", Value: "abc123"}))
		require.Equal(t, MessageTypeResponse, resp.Type)

		resp = registry.Handle(ctx, request(t, MethodVaultGet, vaultParams{Service: "sync", Key: "token"}))
		var result vault.Result
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		require.True(t, result.Success)
		require.NotNil(t, result.Value)
		assert.Equal(t, "abc123", *result.Value)

		resp = registry.Handle(ctx, request(t, MethodVaultDelete, vaultParams{Service: "sync", Key: "token"}))
		require.Equal(t, MessageTypeResponse, resp.Type)

		resp = registry.Handle(ctx, request(t, MethodVaultGet, vaultParams{Service: "sync", Key: "token"}))
		require.NoError(t, json.Unmarshal(resp.Result, &result))
		assert.True(t, result.Success)
		assert.Nil(t, result.Value)
	})

	t.Run("missing service or key rejected", func(t *testing.T) {
		registry := newTestRegistry(&fakeController{}, newFakeStore())

		resp := registry.Handle(context.Background(), request(t, MethodVaultGet, vaultParams{Key: "token"}))

		require.Equal(t, MessageTypeError, resp.Type)
		assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	})

	t.Run("undecodable params rejected", func(t *testing.T) {
		registry := newTestRegistry(&fakeController{}, newFakeStore())

		req := request(t, MethodVaultGet, nil)
		req.Params = []byte(`"not an object"`)
		resp := registry.Handle(context.Background(), req)

		require.Equal(t, MessageTypeError, resp.Type)
		assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	})
}
