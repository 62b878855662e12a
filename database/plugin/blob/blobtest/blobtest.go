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

// Package blobtest holds behavior checks shared by the local blob store plugins
package blobtest

import (
	"testing"

	"github.com/blinklabs-io/agora/database/plugin/blob"
	"github.com/blinklabs-io/agora/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a started blob store. The store is closed by the caller.
func Run(t *testing.T, newStore func(t *testing.T) blob.BlobStore) {
	t.Run("SetGetDelete", func(t *testing.T) {
		bs := newStore(t)
		txn := bs.NewTransaction(true)
		require.NoError(t, bs.Set(txn, []byte("k1"), []byte("v1")))
		require.NoError(t, txn.Commit())

		txn = bs.NewTransaction(false)
		val, err := bs.Get(txn, []byte("k1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), val)
		_, err = bs.Get(txn, []byte("missing"))
		assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
		require.NoError(t, txn.Rollback())

		txn = bs.NewTransaction(true)
		require.NoError(t, bs.Delete(txn, []byte("k1")))
		require.NoError(t, txn.Commit())

		txn = bs.NewTransaction(false)
		defer txn.Rollback() //nolint:errcheck
		_, err = bs.Get(txn, []byte("k1"))
		assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	})

	t.Run("RollbackDiscardsWrites", func(t *testing.T) {
		bs := newStore(t)
		txn := bs.NewTransaction(true)
		require.NoError(t, bs.Set(txn, []byte("gone"), []byte("x")))
		require.NoError(t, txn.Rollback())

		txn = bs.NewTransaction(false)
		defer txn.Rollback() //nolint:errcheck
		_, err := bs.Get(txn, []byte("gone"))
		assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	})

	t.Run("FinishedTxnRejected", func(t *testing.T) {
		bs := newStore(t)
		txn := bs.NewTransaction(true)
		require.NoError(t, txn.Commit())
		// Second commit is a no-op
		require.NoError(t, txn.Commit())
		err := bs.Set(txn, []byte("k"), []byte("v"))
		assert.ErrorIs(t, err, types.ErrTxnFinished)
		_, err = bs.Get(nil, []byte("k"))
		assert.ErrorIs(t, err, types.ErrNilTxn)
	})

	t.Run("IteratorPrefixOrder", func(t *testing.T) {
		bs := newStore(t)
		txn := bs.NewTransaction(true)
		for _, h := range []uint64{3, 1, 2} {
			require.NoError(t, bs.Set(txn, types.BlockBlobKey(h), types.Uint64ToBytes(h)))
		}
		require.NoError(t, bs.Set(txn, []byte("zz-other"), []byte("x")))
		require.NoError(t, txn.Commit())

		txn = bs.NewTransaction(false)
		defer txn.Rollback() //nolint:errcheck
		prefix := []byte(types.BlockBlobKeyPrefix)

		var forward []uint64
		it := bs.NewIterator(txn, types.BlobIteratorOptions{Prefix: prefix})
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			require.NoError(t, err)
			forward = append(forward, types.BytesToUint64(val))
		}
		require.NoError(t, it.Err())
		it.Close()
		assert.Equal(t, []uint64{1, 2, 3}, forward)

		var reverse []uint64
		it = bs.NewIterator(txn, types.BlobIteratorOptions{Prefix: prefix, Reverse: true})
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			reverse = append(reverse, types.BytesToUint64(it.Item().Key()[len(prefix):]))
		}
		it.Close()
		assert.Equal(t, []uint64{3, 2, 1}, reverse)
	})

	t.Run("CommitTimestamp", func(t *testing.T) {
		bs := newStore(t)
		ts, err := blob.GetCommitTimestamp(bs)
		require.NoError(t, err)
		assert.Equal(t, int64(0), ts)
		txn := bs.NewTransaction(true)
		require.NoError(t, blob.SetCommitTimestamp(bs, txn, 1700000000123))
		require.NoError(t, txn.Commit())
		ts, err = blob.GetCommitTimestamp(bs)
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000123), ts)
	})
}
