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

package keystore

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/blinklabs-io/agora/tx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Keep scrypt cheap in tests
	scryptWorkFactor = 10
}

// Files created by tests inherit directory ACLs on Windows, which
// typically grant BUILTIN\Users access and fail the permission check
func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("inherited ACLs fail the key file permission check")
	}
}

func TestSaveAndLoadKeyFile(t *testing.T) {
	skipOnWindows(t)
	key, err := GenerateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "signing.key")
	require.NoError(t, SaveKeyFile(path, key, "test key", ""))

	encrypted, err := IsEncrypted(path)
	require.NoError(t, err)
	assert.False(t, encrypted)

	ks := NewKeyStore(KeyStoreConfig{KeyPath: path})
	assert.False(t, ks.IsLoaded())
	require.NoError(t, ks.LoadFromFile())
	addr, err := ks.Address()
	require.NoError(t, err)
	assert.Equal(t, tx.AddressFromPubKey(key.PubKey()), addr)

	// Existing files are never overwritten
	assert.Error(t, SaveKeyFile(path, key, "", ""))
}

func TestEncryptedKeyFile(t *testing.T) {
	skipOnWindows(t)
	key, err := GenerateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "signing.key")
	require.NoError(t, SaveKeyFile(path, key, "", "correct horse"))

	encrypted, err := IsEncrypted(path)
	require.NoError(t, err)
	assert.True(t, encrypted)

	err = NewKeyStore(KeyStoreConfig{KeyPath: path}).LoadFromFile()
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	err = NewKeyStore(KeyStoreConfig{KeyPath: path, Passphrase: "wrong"}).LoadFromFile()
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	ks := NewKeyStore(KeyStoreConfig{KeyPath: path, Passphrase: "correct horse"})
	require.NoError(t, ks.LoadFromFile())
	addr, err := ks.Address()
	require.NoError(t, err)
	assert.Equal(t, tx.AddressFromPubKey(key.PubKey()), addr)
}

func TestSignWithKeyStore(t *testing.T) {
	ks := NewKeyStore(KeyStoreConfig{})
	faucet, err := tx.New(tx.KindFaucet, 0, &tx.Faucet{})
	require.NoError(t, err)
	assert.ErrorIs(t, ks.Sign(faucet), ErrKeyNotLoaded)
	_, err = ks.Address()
	assert.ErrorIs(t, err, ErrKeyNotLoaded)

	key, err := GenerateKey()
	require.NoError(t, err)
	ks.SetKey(key)
	require.NoError(t, ks.Sign(faucet))
	sender, err := faucet.Sender()
	require.NoError(t, err)
	addr, err := ks.Address()
	require.NoError(t, err)
	assert.Equal(t, addr, sender)
}

func TestParseKeyEnvelopeErrors(t *testing.T) {
	_, err := parseKeyEnvelope([]byte("not json"), "")
	assert.Error(t, err)
	_, err = parseKeyEnvelope([]byte(`{"type":"Other","cborHex":""}`), "")
	assert.ErrorContains(t, err, "unknown key type")
	// CBOR byte string of length 3
	_, err = parseKeyEnvelope([]byte(`{"type":"Secp256k1SigningKey","cborHex":"43010203"}`), "")
	assert.ErrorContains(t, err, "invalid signing key bytes")
}

func TestInsecureFileModeUnix(t *testing.T) {
	skipOnWindows(t)
	key, err := GenerateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "signing.key")
	require.NoError(t, SaveKeyFile(path, key, "", ""))
	require.NoError(t, os.Chmod(path, 0o644))
	err = NewKeyStore(KeyStoreConfig{KeyPath: path}).LoadFromFile()
	assert.ErrorIs(t, err, ErrInsecureFileMode)
}
