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

// Package vault fronts the OS credential store for the shell.
//
// Secrets are stored as generic credentials named
// "worldmirror.<service>.<key>" under the fixed "worldmirror" account.
// Supported platforms:
//   - macOS: Keychain Access
//   - Linux: Secret Service API (GNOME Keyring, KWallet)
//   - Windows: Credential Manager
package vault

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"

	"github.com/worldmirror/shell/internal/log"
)

const (
	// Namespace prefixes every credential identifier.
	Namespace = "worldmirror"

	// Account is the fixed account name credentials are stored under.
	Account = "worldmirror"
)

// Result is the uniform outcome shape for every vault operation, designed
// so the command boundary never has to interpret storage-specific errors.
// An absent entry is a success with a nil Value, not an error.
type Result struct {
	Success bool    `json:"success"`
	Value   *string `json:"value"`
	Error   *string `json:"error"`
}

// Vault provides set/get/delete over the OS credential store. Operations
// are stateless per call and require no synchronization.
type Vault struct {
	logger *slog.Logger
}

// New creates a vault.
func New(logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{logger: logger}
}

// EntryName renders the composite (namespace, service, key) identifier.
func EntryName(service, key string) string {
	return fmt.Sprintf("%s.%s.%s", Namespace, service, key)
}

// Set creates or overwrites the secret for (service, key).
func (v *Vault) Set(service, key, value string) Result {
	entry := EntryName(service, key)

	if err := keyring.Set(entry, Account, value); err != nil {
		v.logger.Warn("vault set failed", log.ServiceKey, service, log.EntryKey, key, "error", err)
		return failure(fmt.Sprintf("failed to set keychain entry: %v", err))
	}

	v.logger.Debug("vault entry stored",
		log.ServiceKey, service, log.EntryKey, key, "value", log.SanitizeSecret(value))
	return success(nil)
}

// Get retrieves the secret for (service, key). A missing entry is a
// success with a nil value; callers must distinguish "absent" from
// "failed".
func (v *Vault) Get(service, key string) Result {
	entry := EntryName(service, key)

	value, err := keyring.Get(entry, Account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return success(nil)
		}
		v.logger.Warn("vault get failed", log.ServiceKey, service, log.EntryKey, key, "error", err)
		return failure(fmt.Sprintf("failed to get keychain entry: %v", err))
	}

	return success(&value)
}

// Delete removes the secret for (service, key). Deleting an absent entry
// is a success; delete is idempotent.
func (v *Vault) Delete(service, key string) Result {
	entry := EntryName(service, key)

	if err := keyring.Delete(entry, Account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return success(nil)
		}
		v.logger.Warn("vault delete failed", log.ServiceKey, service, log.EntryKey, key, "error", err)
		return failure(fmt.Sprintf("failed to delete keychain entry: %v", err))
	}

	return success(nil)
}

// Available reports whether the credential store is reachable, detected
// by looking up a key that never exists. A locked keychain or missing
// secret service surfaces here as any error other than not-found.
func (v *Vault) Available() bool {
	_, err := keyring.Get(EntryName("shell", "__availability_check__"), Account)
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

func success(value *string) Result {
	return Result{Success: true, Value: value}
}

func failure(msg string) Result {
	return Result{Success: false, Error: &msg}
}
