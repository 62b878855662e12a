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

package leveldb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/blinklabs-io/agora/database/plugin/blob"
	"github.com/blinklabs-io/agora/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// leveldbReader is the read surface shared by transactions and snapshots
type leveldbReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// leveldbTxn uses a goleveldb transaction for read-write access and a
// snapshot for read-only access. Only one read-write transaction can be
// open at a time.
type leveldbTxn struct {
	store     *BlobStoreLevelDB
	txn       *leveldb.Transaction
	snap      *leveldb.Snapshot
	err       error
	finished  bool
	readWrite bool
}

func (t *leveldbTxn) reader() leveldbReader {
	if t.txn != nil {
		return t.txn
	}
	return t.snap
}

func (t *leveldbTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.txn != nil {
		return t.txn.Commit()
	}
	if t.snap != nil {
		t.snap.Release()
	}
	return nil
}

func (t *leveldbTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.txn != nil {
		t.txn.Discard()
	}
	if t.snap != nil {
		t.snap.Release()
	}
	return nil
}

// leveldbCursor adapts a goleveldb iterator to blob.Cursor
type leveldbCursor struct {
	iterator.Iterator
}

func (c *leveldbCursor) SeekGE(key []byte) bool {
	return c.Seek(key)
}

func (c *leveldbCursor) SeekLE(key []byte) bool {
	if !c.Seek(key) {
		return c.Last()
	}
	if bytes.Equal(c.Key(), key) {
		return true
	}
	return c.Prev()
}

func (c *leveldbCursor) Close() error {
	c.Release()
	return nil
}

// BlobStoreLevelDB stores blobs in a goleveldb database
type BlobStoreLevelDB struct {
	promRegistry prometheus.Registerer
	db           *leveldb.DB
	logger       *slog.Logger
	metrics      *blob.Metrics
	dataDir      string
	cacheSize    int
}

// New creates a new goleveldb blob store. The database is opened by Start()
func New(opts ...BlobStoreLevelDBOptionFunc) (*BlobStoreLevelDB, error) {
	db := &BlobStoreLevelDB{
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// SetLogger implements plugin.Observable
func (d *BlobStoreLevelDB) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Observable
func (d *BlobStoreLevelDB) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Start opens the database. It implements the plugin.Plugin interface
func (d *BlobStoreLevelDB) Start() error {
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	ldbOpts := &opt.Options{
		BlockCacheCapacity: d.cacheSize,
		Filter:             filter.NewBloomFilter(10),
	}
	var ldb *leveldb.DB
	var err error
	if d.dataDir == "" {
		ldb, err = leveldb.Open(storage.NewMemStorage(), ldbOpts)
	} else {
		if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		dbPath := filepath.Join(d.dataDir, "blob-leveldb")
		ldb, err = leveldb.OpenFile(dbPath, ldbOpts)
		if err != nil && ldberrors.IsCorrupted(err) {
			d.logger.Warn(
				"recovering corrupted leveldb database",
				"component", "database",
				"path", dbPath,
			)
			ldb, err = leveldb.RecoverFile(dbPath, ldbOpts)
		}
	}
	if err != nil {
		return err
	}
	d.db = ldb
	d.metrics = blob.NewMetrics(d.promRegistry, "leveldb")
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreLevelDB) Stop() error {
	return d.Close()
}

// Close closes the database
func (d *BlobStoreLevelDB) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// NewTransaction creates a new transaction. Read-write transactions block
// until any other open read-write transaction finishes.
func (d *BlobStoreLevelDB) NewTransaction(readWrite bool) types.Txn {
	t := &leveldbTxn{store: d, readWrite: readWrite}
	if d.db == nil {
		t.finished = true
		return t
	}
	if readWrite {
		t.txn, t.err = d.db.OpenTransaction()
	} else {
		t.snap, t.err = d.db.GetSnapshot()
	}
	if t.err != nil {
		t.finished = true
	}
	return t
}

func (d *BlobStoreLevelDB) validateTxn(txn types.Txn) (*leveldbTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	lTxn, ok := txn.(*leveldbTxn)
	if !ok || lTxn.store != d {
		return nil, types.ErrTxnWrongType
	}
	if d.db == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	if lTxn.err != nil {
		return nil, lTxn.err
	}
	if lTxn.finished {
		return nil, types.ErrTxnFinished
	}
	return lTxn, nil
}

// Get retrieves a value within a transaction
func (d *BlobStoreLevelDB) Get(txn types.Txn, key []byte) ([]byte, error) {
	lTxn, err := d.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	val, err := lTxn.reader().Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	d.metrics.Observe("get", len(val))
	return val, nil
}

// Set stores a key-value pair within a transaction
func (d *BlobStoreLevelDB) Set(txn types.Txn, key, val []byte) error {
	lTxn, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !lTxn.readWrite {
		return types.ErrTxnReadOnly
	}
	if err := lTxn.txn.Put(key, val, nil); err != nil {
		return err
	}
	d.metrics.Observe("set", len(val))
	return nil
}

// Delete removes a key within a transaction
func (d *BlobStoreLevelDB) Delete(txn types.Txn, key []byte) error {
	lTxn, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if !lTxn.readWrite {
		return types.ErrTxnReadOnly
	}
	if err := lTxn.txn.Delete(key, nil); err != nil {
		return err
	}
	d.metrics.Observe("delete", 0)
	return nil
}

// NewIterator creates an iterator within a transaction
func (d *BlobStoreLevelDB) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	lTxn, err := d.validateTxn(txn)
	if err != nil {
		return &types.ErrorIterator{Error: err}
	}
	var slice *util.Range
	if len(opts.Prefix) > 0 {
		slice = util.BytesPrefix(opts.Prefix)
	}
	iter := lTxn.reader().NewIterator(slice, nil)
	return blob.NewCursorIterator(&leveldbCursor{Iterator: iter}, opts)
}
