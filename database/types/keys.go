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

package types

import (
	"bytes"
	"encoding/binary"
	"slices"
)

const (
	BlockBlobKeyPrefix = "bk"
	TxBlobKeyPrefix    = "tx"
	CommitTimestampKey = "metadata_commit_timestamp"
)

func Uint64ToBytes(input uint64) []byte {
	ret := make([]byte, 8)
	binary.BigEndian.PutUint64(ret, input)
	return ret
}

// BlockBlobKey returns the blob key for a block body. Heights are big-endian
// so that keys sort in chain order.
func BlockBlobKey(height uint64) []byte {
	return slices.Concat([]byte(BlockBlobKeyPrefix), Uint64ToBytes(height))
}

// TxBlobKey returns the blob key for a raw signed transaction
func TxBlobKey(hash []byte) []byte {
	return slices.Concat([]byte(TxBlobKeyPrefix), hash)
}

func BytesToUint64(input []byte) uint64 {
	if len(input) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(input)
}

// PrefixUpperBound returns a key that sorts after every key of practical
// length that starts with prefix
func PrefixUpperBound(prefix []byte) []byte {
	return slices.Concat(prefix, bytes.Repeat([]byte{0xff}, 32))
}

// PrefixSuccessor returns the smallest key greater than every key starting
// with prefix, or nil when no such key exists
func PrefixSuccessor(prefix []byte) []byte {
	end := slices.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
