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

package tx

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

const AddressLength = 20

var ErrInvalidAddress = errors.New("invalid address")

// Keccak256 returns the legacy Keccak-256 digest of the concatenated inputs
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// AddressFromPubKey derives the account address of a public key: the last
// 20 bytes of the Keccak-256 digest of the uncompressed key without its
// format prefix
func AddressFromPubKey(pubKey *secp256k1.PublicKey) string {
	digest := Keccak256(pubKey.SerializeUncompressed()[1:])
	return "0x" + hex.EncodeToString(digest[len(digest)-AddressLength:])
}

// NormalizeAddress validates a hex address and returns it in canonical
// lowercase 0x-prefixed form
func NormalizeAddress(address string) (string, error) {
	tmp := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	if len(tmp) != AddressLength*2 {
		return "", ErrInvalidAddress
	}
	if _, err := hex.DecodeString(tmp); err != nil {
		return "", ErrInvalidAddress
	}
	return "0x" + strings.ToLower(tmp), nil
}
