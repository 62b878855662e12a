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
	"context"
	"encoding/hex"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/agora/database/types"
)

const DefaultObjectTimeout = 60 * time.Second

// ObjectBackend is the minimal surface of a remote object store. Keys are
// already encoded as object names. GetObject returns types.ErrBlobKeyNotFound
// for a missing object.
type ObjectBackend interface {
	GetObject(ctx context.Context, name string) ([]byte, error)
	PutObject(ctx context.Context, name string, data []byte) error
	DeleteObject(ctx context.Context, name string) error
	ListObjects(ctx context.Context, namePrefix string) ([]string, error)
}

// ObjectStore provides transactional blob access on top of an object store.
// Writes are buffered in the transaction and flushed on commit. Commits are
// serialized but are not atomic across objects.
type ObjectStore struct {
	backend   ObjectBackend
	metrics   *Metrics
	timeout   time.Duration
	commitMtx sync.Mutex
}

func NewObjectStore(
	backend ObjectBackend,
	metrics *Metrics,
	timeout time.Duration,
) *ObjectStore {
	if timeout == 0 {
		timeout = DefaultObjectTimeout
	}
	return &ObjectStore{
		backend: backend,
		metrics: metrics,
		timeout: timeout,
	}
}

// ObjectName encodes a binary key as an object name. Hex keeps names valid
// UTF-8 and preserves both ordering and prefix relationships.
func ObjectName(key []byte) string {
	return hex.EncodeToString(key)
}

func (s *ObjectStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

type objectTxn struct {
	store *ObjectStore
	// nil value marks a pending delete
	pending   map[string][]byte
	finished  bool
	readWrite bool
}

func (t *objectTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if len(t.pending) == 0 {
		return nil
	}
	s := t.store
	s.commitMtx.Lock()
	defer s.commitMtx.Unlock()
	ctx, cancel := s.opContext()
	defer cancel()
	for _, name := range slices.Sorted(maps.Keys(t.pending)) {
		val := t.pending[name]
		if val == nil {
			if err := s.backend.DeleteObject(ctx, name); err != nil {
				return err
			}
			s.metrics.Observe("delete", 0)
			continue
		}
		if err := s.backend.PutObject(ctx, name, val); err != nil {
			return err
		}
		s.metrics.Observe("set", len(val))
	}
	return nil
}

func (t *objectTxn) Rollback() error {
	t.finished = true
	t.pending = nil
	return nil
}

func (s *ObjectStore) NewTransaction(readWrite bool) types.Txn {
	return &objectTxn{
		store:     s,
		readWrite: readWrite,
		pending:   make(map[string][]byte),
	}
}

func (s *ObjectStore) validateTxn(txn types.Txn) (*objectTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	t, ok := txn.(*objectTxn)
	if !ok || t.store != s {
		return nil, types.ErrTxnWrongType
	}
	if t.finished {
		return nil, types.ErrTxnFinished
	}
	return t, nil
}

func (s *ObjectStore) Get(txn types.Txn, key []byte) ([]byte, error) {
	t, err := s.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	name := ObjectName(key)
	if val, ok := t.pending[name]; ok {
		if val == nil {
			return nil, types.ErrBlobKeyNotFound
		}
		return slices.Clone(val), nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	data, err := s.backend.GetObject(ctx, name)
	if err != nil {
		return nil, err
	}
	s.metrics.Observe("get", len(data))
	return data, nil
}

func (s *ObjectStore) Set(txn types.Txn, key, val []byte) error {
	t, err := s.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return types.ErrTxnReadOnly
	}
	if val == nil {
		val = []byte{}
	}
	t.pending[ObjectName(key)] = slices.Clone(val)
	return nil
}

func (s *ObjectStore) Delete(txn types.Txn, key []byte) error {
	t, err := s.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.readWrite {
		return types.ErrTxnReadOnly
	}
	t.pending[ObjectName(key)] = nil
	return nil
}

// NewIterator lists matching objects up front and fetches values lazily
func (s *ObjectStore) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	t, err := s.validateTxn(txn)
	if err != nil {
		return &types.ErrorIterator{Error: err}
	}
	namePrefix := ObjectName(opts.Prefix)
	ctx, cancel := s.opContext()
	defer cancel()
	names, err := s.backend.ListObjects(ctx, namePrefix)
	if err != nil {
		return &types.ErrorIterator{Error: err}
	}
	keySet := make(map[string]struct{}, len(names))
	for _, name := range names {
		keySet[name] = struct{}{}
	}
	for name, val := range t.pending {
		if !strings.HasPrefix(name, namePrefix) {
			continue
		}
		if val == nil {
			delete(keySet, name)
		} else {
			keySet[name] = struct{}{}
		}
	}
	keys := make([][]byte, 0, len(keySet))
	for name := range keySet {
		key, err := hex.DecodeString(name)
		if err != nil {
			// Foreign object in the bucket
			continue
		}
		keys = append(keys, key)
	}
	slices.SortFunc(keys, bytes.Compare)
	return &objectIterator{
		store:   s,
		txn:     t,
		keys:    keys,
		reverse: opts.Reverse,
	}
}

type objectIterator struct {
	store   *ObjectStore
	txn     *objectTxn
	keys    [][]byte
	idx     int
	reverse bool
}

func (it *objectIterator) Rewind() {
	if it.reverse {
		it.idx = len(it.keys) - 1
		return
	}
	it.idx = 0
}

func (it *objectIterator) Seek(key []byte) {
	pos, found := slices.BinarySearchFunc(it.keys, key, bytes.Compare)
	if it.reverse && !found {
		pos--
	}
	it.idx = pos
}

func (it *objectIterator) Valid() bool {
	return it.idx >= 0 && it.idx < len(it.keys)
}

func (it *objectIterator) ValidForPrefix(prefix []byte) bool {
	return it.Valid() && bytes.HasPrefix(it.keys[it.idx], prefix)
}

func (it *objectIterator) Next() {
	if it.reverse {
		it.idx--
		return
	}
	it.idx++
}

func (it *objectIterator) Item() types.BlobItem {
	if !it.Valid() {
		return nil
	}
	return &objectItem{iter: it, key: it.keys[it.idx]}
}

func (it *objectIterator) Close() {}

func (it *objectIterator) Err() error {
	return nil
}

type objectItem struct {
	iter *objectIterator
	key  []byte
}

func (i *objectItem) Key() []byte {
	return i.key
}

func (i *objectItem) ValueCopy(dst []byte) ([]byte, error) {
	data, err := i.iter.store.Get(i.iter.txn, i.key)
	if err != nil {
		return nil, err
	}
	return append(dst[:0], data...), nil
}
