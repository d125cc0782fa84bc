// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package secrets holds provider API keys in guarded memory.
//
// Keys are loaded once (environment variable first, then a container
// secret file) and stored in memguard enclaves so plaintext never sits
// in ordinary heap memory between uses. Callers open the key only for
// the duration of a request header write.
package secrets

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

var initOnce sync.Once

// initGuard arms memguard's interrupt handler so enclaves are wiped
// on SIGINT. Called lazily on first key load.
func initGuard() {
	initOnce.Do(func() {
		memguard.CatchInterrupt()
	})
}

// Keyring stores named API keys as sealed enclaves.
//
// Thread Safety: safe for concurrent use.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]*memguard.Enclave
}

// NewKeyring returns an empty keyring.
func NewKeyring() *Keyring {
	initGuard()
	return &Keyring{keys: make(map[string]*memguard.Enclave)}
}

// Load resolves the key for name from envVar, falling back to
// secretPath (trailing whitespace trimmed, as container secret files
// usually end in a newline). The plaintext is sealed immediately.
func (k *Keyring) Load(name, envVar, secretPath string) error {
	value := os.Getenv(envVar)
	if value == "" && secretPath != "" {
		data, err := os.ReadFile(secretPath)
		if err == nil {
			value = strings.TrimSpace(string(data))
		}
	}
	if value == "" {
		return fmt.Errorf("no key for %s: %s not set and no secret at %s", name, envVar, secretPath)
	}
	k.Set(name, value)
	return nil
}

// Set seals value under name. The string passed in should be dropped
// by the caller immediately; Go strings cannot be wiped.
func (k *Keyring) Set(name, value string) {
	enclave := memguard.NewEnclave([]byte(value))
	k.mu.Lock()
	k.keys[name] = enclave
	k.mu.Unlock()
}

// Has reports whether a key is stored under name.
func (k *Keyring) Has(name string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.keys[name]
	return ok
}

// Use opens the named key and passes its plaintext to fn. The unsealed
// buffer is destroyed when fn returns; fn must not retain the string.
func (k *Keyring) Use(name string, fn func(key string) error) error {
	k.mu.RLock()
	enclave, ok := k.keys[name]
	k.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no key stored for %s", name)
	}
	buf, err := enclave.Open()
	if err != nil {
		return fmt.Errorf("open key %s: %w", name, err)
	}
	defer buf.Destroy()
	return fn(buf.String())
}

// Purge wipes all stored keys.
func (k *Keyring) Purge() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = make(map[string]*memguard.Enclave)
}
