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

package models

import "errors"

var (
	ErrBlockNotFound   = errors.New("block not found")
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrTxNotFound      = errors.New("transaction not found")
)

// Block is the header of a produced block. The body lives in the blob store.
type Block struct {
	Hash      []byte `gorm:"uniqueIndex;size:32;not null"`
	PrevHash  []byte `gorm:"size:32"`
	Height    uint64 `gorm:"primarykey;autoIncrement:false"`
	Timestamp int64
	TxCount   uint32
}

func (Block) TableName() string {
	return "block"
}

// Receipt records the outcome of an applied transaction
type Receipt struct {
	Sender      string `gorm:"index;size:42;not null"`
	Kind        string `gorm:"size:32;not null"`
	Error       string
	ErrorCode   string `gorm:"size:64"`
	TxHash      []byte `gorm:"uniqueIndex;size:32;not null"`
	ID          uint   `gorm:"primarykey"`
	Nonce       uint64
	BlockHeight uint64 `gorm:"index;not null"`
	Index       uint32
	Success     bool
}

func (Receipt) TableName() string {
	return "receipt"
}
