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
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/fxamacker/cbor/v2"
)

const SignatureLength = 65

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnknownKind      = errors.New("unknown transaction kind")
	ErrInvalidPayload   = errors.New("invalid transaction payload")
	ErrInvalidEncoding  = errors.New("invalid transaction encoding")
)

var encMode, _ = cbor.CoreDetEncOptions().EncMode()

// Tx is a signed ledger transaction. On the wire it is the CBOR array
// [kind, nonce, payload, signature].
type Tx struct {
	_         struct{} `cbor:",toarray"`
	Kind      Kind
	Nonce     uint64
	Payload   cbor.RawMessage
	Signature []byte

	hash   []byte
	sender string
}

type signingBody struct {
	_       struct{} `cbor:",toarray"`
	Kind    Kind
	Nonce   uint64
	Payload cbor.RawMessage
}

// New builds an unsigned transaction carrying the CBOR encoding of payload.
// The payload type must match the kind.
func New(kind Kind, nonce uint64, payload any) (*Tx, error) {
	if err := checkPayloadType(kind, payload); err != nil {
		return nil, err
	}
	payloadCbor, err := encMode.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Kind:    kind,
		Nonce:   nonce,
		Payload: payloadCbor,
	}, nil
}

// Decode parses a signed transaction and verifies its signature
func Decode(data []byte) (*Tx, error) {
	var ret Tx
	if err := cbor.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}
	if !ret.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, ret.Kind)
	}
	if _, err := ret.Sender(); err != nil {
		return nil, err
	}
	return &ret, nil
}

// Encode returns the wire encoding of the signed transaction
func (t *Tx) Encode() ([]byte, error) {
	return encMode.Marshal(t)
}

// SigningBytes returns the CBOR encoding of [kind, nonce, payload]
func (t *Tx) SigningBytes() ([]byte, error) {
	return encMode.Marshal(signingBody{
		Kind:    t.Kind,
		Nonce:   t.Nonce,
		Payload: t.Payload,
	})
}

// Hash returns the Keccak-256 digest of the signing bytes
func (t *Tx) Hash() []byte {
	if t.hash != nil {
		return t.hash
	}
	body, err := t.SigningBytes()
	if err != nil {
		// Only reachable with a malformed payload
		return nil
	}
	t.hash = Keccak256(body)
	return t.hash
}

// HashHex returns the hex transaction hash
func (t *Tx) HashHex() string {
	return hex.EncodeToString(t.Hash())
}

// Sign sets a compact recoverable signature over the transaction hash
func (t *Tx) Sign(key *secp256k1.PrivateKey) error {
	hash := t.Hash()
	if hash == nil {
		return ErrInvalidPayload
	}
	t.Signature = ecdsa.SignCompact(key, hash, false)
	t.sender = ""
	return nil
}

// Sender recovers the signing address from the signature
func (t *Tx) Sender() (string, error) {
	if t.sender != "" {
		return t.sender, nil
	}
	if len(t.Signature) != SignatureLength {
		return "", ErrInvalidSignature
	}
	hash := t.Hash()
	if hash == nil {
		return "", ErrInvalidPayload
	}
	pubKey, _, err := ecdsa.RecoverCompact(t.Signature, hash)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	t.sender = AddressFromPubKey(pubKey)
	return t.sender, nil
}

// DecodePayload returns the typed payload for the transaction kind
func (t *Tx) DecodePayload() (any, error) {
	payload, err := newPayload(t.Kind)
	if err != nil {
		return nil, err
	}
	if err := cbor.Unmarshal(t.Payload, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return payload, nil
}
