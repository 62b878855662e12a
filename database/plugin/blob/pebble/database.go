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

package pebble

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/blinklabs-io/agora/database/plugin"
	"github.com/blinklabs-io/agora/database/plugin/blob"
	"github.com/blinklabs-io/agora/database/types"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus"
)

// pebbleTxn wraps an indexed batch so that reads observe the transaction's
// own writes. Read-only transactions are never committed.
type pebbleTxn struct {
	store     *BlobStorePebble
	batch     *pebble.Batch
	finished  bool
	readWrite bool
}

func (t *pebbleTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	defer t.batch.Close()
	if !t.readWrite || t.batch.Empty() {
		return nil
	}
	return t.batch.Commit(pebble.Sync)
}

func (t *pebbleTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	return t.batch.Close()
}

// pebbleCursor adds SeekLE to the pebble iterator
type pebbleCursor struct {
	*pebble.Iterator
}

func (c *pebbleCursor) SeekLE(key []byte) bool {
	if c.SeekGE(key) && string(c.Key()) == string(key) {
		return true
	}
	return c.SeekLT(key)
}

// BlobStorePebble stores blobs in a pebble LSM database
type BlobStorePebble struct {
	promRegistry prometheus.Registerer
	db           *pebble.DB
	logger       *slog.Logger
	metrics      *blob.Metrics
	dataDir      string
	cacheSize    uint64
}

// New creates a new pebble blob store. The database is opened by Start()
func New(opts ...BlobStorePebbleOptionFunc) (*BlobStorePebble, error) {
	db := &BlobStorePebble{
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// SetLogger implements plugin.Observable
func (d *BlobStorePebble) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Observable
func (d *BlobStorePebble) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Start opens the database. It implements the plugin.Plugin interface
func (d *BlobStorePebble) Start() error {
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cache := pebble.NewCache(int64(d.cacheSize)) //nolint:gosec // bounded by config
	defer cache.Unref()
	pebbleOpts := &pebble.Options{
		Cache:  cache,
		Logger: plugin.NewPrintfLogger(d.logger, "database"),
		Levels: []pebble.LevelOptions{
			{TargetFileSize: 2 * 1024 * 1024, FilterPolicy: bloom.FilterPolicy(10)},
		},
	}
	dbPath := ""
	if d.dataDir == "" {
		pebbleOpts.FS = vfs.NewMem()
	} else {
		if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		dbPath = filepath.Join(d.dataDir, "blob-pebble")
	}
	pebbleDb, err := pebble.Open(dbPath, pebbleOpts)
	if err != nil {
		return err
	}
	d.db = pebbleDb
	d.metrics = blob.NewMetrics(d.promRegistry, "pebble")
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *BlobStorePebble) Stop() error {
	return d.Close()
}

// Close closes the database
func (d *BlobStorePebble) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// NewTransaction creates a new transaction backed by an indexed batch
func (d *BlobStorePebble) NewTransaction(readWrite bool) types.Txn {
	t := &pebbleTxn{store: d, readWrite: readWrite}
	if d.db == nil {
		t.finished = true
		return t
	}
	t.batch = d.db.NewIndexedBatch()
	return t
}

func (d *BlobStorePebble) validateTxn(txn types.Txn) (*pebbleTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	pTxn, ok := txn.(*pebbleTxn)
	if !ok || pTxn.store != d {
		return nil, types.ErrTxnWrongType
	}
	if d.db == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	if pTxn.finished {
		return nil, types.ErrTxnFinished
	}
	return pTxn, nil
}

// Get retrieves a value within a transaction
func (d *BlobStorePebble) Get(txn types.Txn, key []byte) ([]byte, error) {
	pTxn, err := d.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	val, closer, err := pTxn.batch.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()
	ret := make([]byte, len(val))
	copy(ret, val)
	d.metrics.Observe("get", len(ret))
	return ret, nil
}

// Set stores a key-value pair within a transaction
func (d *BlobStorePebble) Set(txn types.Txn, key, val []byte) error {
	pTxn, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !pTxn.readWrite {
		return types.ErrTxnReadOnly
	}
	if err := pTxn.batch.Set(key, val, nil); err != nil {
		return err
	}
	d.metrics.Observe("set", len(val))
	return nil
}

// Delete removes a key within a transaction
func (d *BlobStorePebble) Delete(txn types.Txn, key []byte) error {
	pTxn, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !pTxn.readWrite {
		return types.ErrTxnReadOnly
	}
	if err := pTxn.batch.Delete(key, nil); err != nil {
		return err
	}
	d.metrics.Observe("delete", 0)
	return nil
}

// NewIterator creates an iterator within a transaction
func (d *BlobStorePebble) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	pTxn, err := d.validateTxn(txn)
	if err != nil {
		return &types.ErrorIterator{Error: err}
	}
	iterOpts := &pebble.IterOptions{}
	if len(opts.Prefix) > 0 {
		iterOpts.LowerBound = opts.Prefix
		iterOpts.UpperBound = types.PrefixSuccessor(opts.Prefix)
	}
	iter, err := pTxn.batch.NewIter(iterOpts)
	if err != nil {
		return &types.ErrorIterator{Error: err}
	}
	return blob.NewCursorIterator(&pebbleCursor{Iterator: iter}, opts)
}
