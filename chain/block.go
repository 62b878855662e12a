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

package chain

import (
	"fmt"

	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/tx"
	"github.com/fxamacker/cbor/v2"
)

var encMode, _ = cbor.CoreDetEncOptions().EncMode()

// Block is an ordered batch of signed transactions. On the wire it is the
// CBOR array [height, prevHash, timestamp, txs].
type Block struct {
	_         struct{} `cbor:",toarray"`
	Height    uint64
	PrevHash  []byte
	Timestamp int64
	Txs       [][]byte
}

type blockHeader struct {
	_         struct{} `cbor:",toarray"`
	Height    uint64
	PrevHash  []byte
	Timestamp int64
	TxHashes  [][]byte
}

// Hash returns the Keccak-256 digest of the block header, which commits to
// the hashes of the included transactions
func (b *Block) Hash() ([]byte, error) {
	header := blockHeader{
		Height:    b.Height,
		PrevHash:  b.PrevHash,
		Timestamp: b.Timestamp,
		TxHashes:  make([][]byte, 0, len(b.Txs)),
	}
	for _, txCbor := range b.Txs {
		header.TxHashes = append(header.TxHashes, tx.Keccak256(txCbor))
	}
	headerCbor, err := encMode.Marshal(header)
	if err != nil {
		return nil, err
	}
	return tx.Keccak256(headerCbor), nil
}

func (b *Block) Encode() ([]byte, error) {
	return encMode.Marshal(b)
}

func DecodeBlock(data []byte) (*Block, error) {
	var ret Block
	if err := cbor.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &ret, nil
}

// Header returns the metadata record for the block
func (b *Block) Header() (models.Block, error) {
	hash, err := b.Hash()
	if err != nil {
		return models.Block{}, err
	}
	return models.Block{
		Hash:      hash,
		PrevHash:  b.PrevHash,
		Height:    b.Height,
		Timestamp: b.Timestamp,
		TxCount:   uint32(len(b.Txs)), // #nosec G115
	}, nil
}
