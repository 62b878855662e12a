// Copyright 2025 Blink Labs Software
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

// Package keystore holds the secp256k1 signing key used by the CLI to sign
// ledger transactions on behalf of a user. The node itself never loads one.
package keystore

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/agora/tx"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Common errors returned by KeyStore operations.
var (
	ErrKeyNotLoaded       = errors.New("signing key not loaded")
	ErrInsecureFileMode   = errors.New("insecure file permissions")
	ErrPassphraseRequired = errors.New("key file is encrypted, passphrase required")
	ErrWrongPassphrase    = errors.New("incorrect passphrase")
)

// KeyStoreConfig holds configuration for the KeyStore.
type KeyStoreConfig struct {
	// KeyPath is the path to the signing key file.
	KeyPath string
	// Passphrase decrypts an encrypted key file.
	Passphrase string
	// Logger for keystore events.
	Logger *slog.Logger
}

// KeyStore wraps a signing key and the address derived from it.
type KeyStore struct {
	config  KeyStoreConfig
	logger  *slog.Logger
	key     *secp256k1.PrivateKey
	address string
	mu      sync.RWMutex
}

// NewKeyStore creates a new KeyStore with the given configuration.
func NewKeyStore(config KeyStoreConfig) *KeyStore {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &KeyStore{
		config: config,
		logger: logger.With("component", "keystore"),
	}
}

// GenerateKey creates a new random signing key
func GenerateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// LoadFromFile loads the configured key file
func (k *KeyStore) LoadFromFile() error {
	key, err := loadKeyFromFile(k.config.KeyPath, k.config.Passphrase)
	if err != nil {
		return err
	}
	k.SetKey(key)
	k.logger.Debug(
		"loaded signing key",
		"path", k.config.KeyPath,
		"address", k.address,
	)
	return nil
}

// SetKey replaces the signing key
func (k *KeyStore) SetKey(key *secp256k1.PrivateKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = key
	k.address = tx.AddressFromPubKey(key.PubKey())
}

// IsLoaded reports whether a key is available for signing
func (k *KeyStore) IsLoaded() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key != nil
}

// Address returns the account address of the loaded key
func (k *KeyStore) Address() (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.key == nil {
		return "", ErrKeyNotLoaded
	}
	return k.address, nil
}

// Sign signs a transaction with the loaded key
func (k *KeyStore) Sign(t *tx.Tx) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.key == nil {
		return ErrKeyNotLoaded
	}
	return t.Sign(k.key)
}
