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

package leveldb_test

import (
	"testing"

	"github.com/blinklabs-io/agora/database/plugin/blob"
	"github.com/blinklabs-io/agora/database/plugin/blob/blobtest"
	"github.com/blinklabs-io/agora/database/plugin/blob/leveldb"
	"github.com/blinklabs-io/agora/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) blob.BlobStore {
	bs, err := leveldb.New(leveldb.WithDataDir(""))
	require.NoError(t, err)
	require.NoError(t, bs.Start())
	t.Cleanup(func() { _ = bs.Close() })
	return bs
}

func TestBlobStoreLevelDB(t *testing.T) {
	blobtest.Run(t, newTestStore)
}

func TestBlobStoreLevelDBReadOnlyTxn(t *testing.T) {
	bs := newTestStore(t)
	txn := bs.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	assert.ErrorIs(t, bs.Set(txn, []byte("k"), []byte("v")), types.ErrTxnReadOnly)
}

func TestBlobStoreLevelDBPersistence(t *testing.T) {
	dataDir := t.TempDir()
	bs, err := leveldb.New(leveldb.WithDataDir(dataDir))
	require.NoError(t, err)
	require.NoError(t, bs.Start())
	txn := bs.NewTransaction(true)
	require.NoError(t, bs.Set(txn, []byte("persist"), []byte("yes")))
	require.NoError(t, txn.Commit())
	require.NoError(t, bs.Close())

	bs2, err := leveldb.New(leveldb.WithDataDir(dataDir))
	require.NoError(t, err)
	require.NoError(t, bs2.Start())
	defer bs2.Close()
	rTxn := bs2.NewTransaction(false)
	defer rTxn.Rollback() //nolint:errcheck
	val, err := bs2.Get(rTxn, []byte("persist"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), val)
}
