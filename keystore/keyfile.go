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
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/fxamacker/cbor/v2"
)

const (
	KeyTypeSigning          = "Secp256k1SigningKey"
	KeyTypeSigningEncrypted = "Secp256k1SigningKeyEncrypted"

	privateKeySize = 32
	// Valid key files are well under this size
	maxKeyFileSize = 1 << 20
)

// scrypt work factor (log2 N) for passphrase-encrypted key files
var scryptWorkFactor = 18

// keyFileEnvelope is the JSON structure of a key file. cborHex holds the
// CBOR byte string of the private key, or for encrypted files the hex of
// the age ciphertext of that byte string.
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// loadKeyFromFile loads a signing key from a file path.
// Returns ErrInsecureFileMode if the file has group or other access.
//
// The file is opened first and permissions are checked on the open handle
// (via fstat on Unix) to avoid a race between the check and the read.
func loadKeyFromFile(path string, passphrase string) (*secp256k1.PrivateKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	key, err := parseKeyEnvelope(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	return key, nil
}

// IsEncrypted reports whether the key file at path needs a passphrase
func IsEncrypted(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	var env keyFileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	return env.Type == KeyTypeSigningEncrypted, nil
}

func parseKeyEnvelope(fileBytes []byte, passphrase string) (*secp256k1.PrivateKey, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	data, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	switch env.Type {
	case KeyTypeSigning:
		return decodeSigningKey(data)
	case KeyTypeSigningEncrypted:
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		identity, err := age.NewScryptIdentity(passphrase)
		if err != nil {
			return nil, fmt.Errorf("creating scrypt identity: %w", err)
		}
		decReader, err := age.Decrypt(bytes.NewReader(data), identity)
		if err != nil {
			var noMatch *age.NoIdentityMatchError
			if errors.As(err, &noMatch) {
				return nil, ErrWrongPassphrase
			}
			return nil, fmt.Errorf("decrypting key: %w", err)
		}
		plain, err := io.ReadAll(decReader)
		if err != nil {
			return nil, fmt.Errorf("reading decrypted key: %w", err)
		}
		return decodeSigningKey(plain)
	default:
		return nil, fmt.Errorf("unknown key type: %s", env.Type)
	}
}

func decodeSigningKey(cborData []byte) (*secp256k1.PrivateKey, error) {
	var keyBytes []byte
	if err := cbor.Unmarshal(cborData, &keyBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signing key CBOR: %w", err)
	}
	if len(keyBytes) != privateKeySize {
		return nil, fmt.Errorf(
			"invalid signing key bytes: expected %d, got %d",
			privateKeySize,
			len(keyBytes),
		)
	}
	return secp256k1.PrivKeyFromBytes(keyBytes), nil
}

// SaveKeyFile writes key to a new file readable only by the owner. A
// non-empty passphrase encrypts the key with age.
func SaveKeyFile(
	path string,
	key *secp256k1.PrivateKey,
	description string,
	passphrase string,
) error {
	cborData, err := cbor.Marshal(key.Serialize())
	if err != nil {
		return err
	}
	env := keyFileEnvelope{
		Type:        KeyTypeSigning,
		Description: description,
	}
	if passphrase != "" {
		recipient, err := age.NewScryptRecipient(passphrase)
		if err != nil {
			return fmt.Errorf("creating scrypt recipient: %w", err)
		}
		recipient.SetWorkFactor(scryptWorkFactor)
		var buf bytes.Buffer
		w, err := age.Encrypt(&buf, recipient)
		if err != nil {
			return fmt.Errorf("creating encrypted writer: %w", err)
		}
		if _, err := w.Write(cborData); err != nil {
			return fmt.Errorf("encrypting key: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("finalizing encrypted key: %w", err)
		}
		env.Type = KeyTypeSigningEncrypted
		cborData = buf.Bytes()
	}
	env.CborHex = hex.EncodeToString(cborData)
	data, err := json.MarshalIndent(env, "", "    ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing key file: %w", err)
	}
	return f.Close()
}
