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

package badger_test

import (
	"testing"

	"github.com/blinklabs-io/agora/database/plugin/blob"
	"github.com/blinklabs-io/agora/database/plugin/blob/badger"
	"github.com/blinklabs-io/agora/database/plugin/blob/blobtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestBlobStoreBadgerInMemory(t *testing.T) {
	blobtest.Run(t, func(t *testing.T) blob.BlobStore {
		bs, err := badger.New(
			badger.WithDataDir(""),
			badger.WithPromRegistry(prometheus.NewRegistry()),
		)
		require.NoError(t, err)
		require.NoError(t, bs.Start())
		t.Cleanup(func() { _ = bs.Close() })
		return bs
	})
}

func TestBlobStoreBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	bs, err := badger.New(badger.WithDataDir(dir), badger.WithGc(false))
	require.NoError(t, err)
	require.NoError(t, bs.Start())
	txn := bs.NewTransaction(true)
	require.NoError(t, bs.Set(txn, []byte("persist"), []byte("yes")))
	require.NoError(t, txn.Commit())
	require.NoError(t, bs.Close())

	bs, err = badger.New(badger.WithDataDir(dir), badger.WithGc(false))
	require.NoError(t, err)
	require.NoError(t, bs.Start())
	defer bs.Close()
	txn = bs.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := bs.Get(txn, []byte("persist"))
	require.NoError(t, err)
	require.Equal(t, []byte("yes"), val)
}
