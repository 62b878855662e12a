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

package blob

import (
	"bytes"
	"slices"

	"github.com/blinklabs-io/agora/database/types"
)

// Cursor is the bidirectional iterator shape shared by the LSM engines
// (pebble, goleveldb). Bounds are applied by the engine.
type Cursor interface {
	First() bool
	Last() bool
	SeekGE(key []byte) bool
	// SeekLE positions on the last key <= key
	SeekLE(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Close() error
	Error() error
}

// NewCursorIterator adapts an engine cursor to types.BlobIterator
func NewCursorIterator(
	cursor Cursor,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	return &cursorIterator{cursor: cursor, reverse: opts.Reverse}
}

type cursorIterator struct {
	cursor  Cursor
	reverse bool
}

func (it *cursorIterator) Rewind() {
	if it.reverse {
		it.cursor.Last()
		return
	}
	it.cursor.First()
}

func (it *cursorIterator) Seek(key []byte) {
	if it.reverse {
		it.cursor.SeekLE(key)
		return
	}
	it.cursor.SeekGE(key)
}

func (it *cursorIterator) Valid() bool {
	return it.cursor.Valid()
}

func (it *cursorIterator) ValidForPrefix(prefix []byte) bool {
	return it.cursor.Valid() && bytes.HasPrefix(it.cursor.Key(), prefix)
}

func (it *cursorIterator) Next() {
	if it.reverse {
		it.cursor.Prev()
		return
	}
	it.cursor.Next()
}

func (it *cursorIterator) Item() types.BlobItem {
	if !it.cursor.Valid() {
		return nil
	}
	// Engine buffers are reused on the next move
	return &cursorItem{
		key:   slices.Clone(it.cursor.Key()),
		value: slices.Clone(it.cursor.Value()),
	}
}

func (it *cursorIterator) Close() {
	_ = it.cursor.Close()
}

func (it *cursorIterator) Err() error {
	return it.cursor.Error()
}

type cursorItem struct {
	key   []byte
	value []byte
}

func (i *cursorItem) Key() []byte {
	return i.key
}

func (i *cursorItem) ValueCopy(dst []byte) ([]byte, error) {
	return append(dst[:0], i.value...), nil
}
