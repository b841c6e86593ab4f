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
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// ErrAuthenticationFailed is returned when token validation fails.
var ErrAuthenticationFailed = errors.New("bridge: authentication failed")

// tokenBytes is the number of random bytes in an auth token.
const tokenBytes = 32

// GenerateToken generates a per-run connection token. The shell hands it
// to the front-end out of band; anything else on the machine that finds
// the bridge port cannot drive the shell without it.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenValidator performs constant-time token comparison.
type TokenValidator struct {
	token string
}

// NewTokenValidator creates a validator for the given token. An empty
// token disables authentication.
func NewTokenValidator(token string) *TokenValidator {
	return &TokenValidator{token: token}
}

// Validate checks the presented token.
func (v *TokenValidator) Validate(presented string) error {
	if v.token == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(v.token), []byte(presented)) != 1 {
		return ErrAuthenticationFailed
	}
	return nil
}
