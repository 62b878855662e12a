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

package sqlite

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/agora/database/plugin/metadata"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	DefaultMaxConnections = 4
	DefaultBusyTimeout    = 5 * time.Second
	DefaultVacuumInterval = 24 * time.Hour
	// Page cache in KiB, passed to sqlite as a negative cache_size
	defaultCacheSizeKiB = 50000
)

var memoryDbCounter atomic.Uint64

// MetadataStoreSqlite is a SQLite-based implementation of the metadata store
type MetadataStoreSqlite struct {
	promRegistry   prometheus.Registerer
	db             *gorm.DB
	logger         *slog.Logger
	timerVacuum    *time.Timer
	timerMutex     sync.Mutex
	vacuumWG       sync.WaitGroup
	dataDir        string
	maxConnections int
	busyTimeout    time.Duration
	vacuumInterval time.Duration
	closed         bool
}

// New creates a SQLite metadata store. Uses an in-memory database if dataDir
// is empty. The database is opened by Start()
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStoreSqlite, error) {
	return NewWithOptions(
		WithDataDir(dataDir),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a SQLite metadata store using options
func NewWithOptions(opts ...SqliteOptionFunc) (*MetadataStoreSqlite, error) {
	db := &MetadataStoreSqlite{
		busyTimeout:    DefaultBusyTimeout,
		vacuumInterval: DefaultVacuumInterval,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.busyTimeout < 0 || db.vacuumInterval < 0 {
		return nil, errors.New("sqlite: durations must not be negative")
	}
	return db, nil
}

// fileDSN returns the DSN for the on-disk database with WAL journaling
func (d *MetadataStoreSqlite) fileDSN() string {
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=cache_size(-%d)",
		filepath.Join(d.dataDir, "metadata.sqlite"),
		d.busyTimeout.Milliseconds(),
		defaultCacheSizeKiB,
	)
}

// SetLogger implements plugin.Observable
func (d *MetadataStoreSqlite) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Observable
func (d *MetadataStoreSqlite) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Start opens the database and migrates the schema. It implements the
// plugin.Plugin interface
func (d *MetadataStoreSqlite) Start() error {
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var dsn string
	maxConns := d.maxConnections
	if d.dataDir == "" {
		// Each store gets its own named in-memory database. A single
		// connection keeps every query on the same database.
		dsn = fmt.Sprintf(
			"file:agora-mem-%d?mode=memory&cache=shared",
			memoryDbCounter.Add(1),
		)
		maxConns = 1
	} else {
		if _, err := os.Stat(d.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(d.dataDir, fs.ModePerm); err != nil {
				return fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dsn = d.fileDSN()
		if maxConns <= 0 {
			maxConns = DefaultMaxConnections
		}
	}
	metadataDb, err := gorm.Open(sqlite.Open(dsn), metadata.GormConfig())
	if err != nil {
		return err
	}
	sqlDB, err := metadataDb.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(maxConns)
	d.db = metadataDb
	if err := metadata.Setup(d.db, "sqlite", d.logger, d.promRegistry); err != nil {
		return err
	}
	d.scheduleVacuum()
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreSqlite) Stop() error {
	return d.Close()
}

func (d *MetadataStoreSqlite) runVacuum() error {
	d.timerMutex.Lock()
	if d.dataDir == "" || d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.vacuumWG.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWG.Done()
	return d.DB().Exec("VACUUM").Error
}

// scheduleVacuum arms the next periodic VACUUM. A zero interval disables it
func (d *MetadataStoreSqlite) scheduleVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed || d.vacuumInterval == 0 || d.dataDir == "" {
		return
	}
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
	}
	f := func() {
		d.logger.Debug(
			"running vacuum on sqlite metadata database",
			"component", "database",
		)
		defer d.scheduleVacuum()
		if err := d.runVacuum(); err != nil {
			d.logger.Error(
				"failed to free unused space in metadata store",
				"component", "database",
				"error", err,
			)
		}
	}
	d.timerVacuum = time.AfterFunc(d.vacuumInterval, f)
}

// Close shuts down the database connection and stops background processes
func (d *MetadataStoreSqlite) Close() error {
	d.timerMutex.Lock()
	if d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()
	d.vacuumWG.Wait()
	if d.db == nil {
		return nil
	}
	db, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return db.Close()
}

// DB returns the underlying GORM database handle
func (d *MetadataStoreSqlite) DB() *gorm.DB {
	return d.db
}

// Transaction begins a new database transaction
func (d *MetadataStoreSqlite) Transaction() *gorm.DB {
	return d.DB().Begin()
}

// GetCommitTimestamp returns the timestamp of the last coordinated commit
func (d *MetadataStoreSqlite) GetCommitTimestamp() (int64, error) {
	if d.db == nil {
		return 0, metadata.ErrStoreNotStarted
	}
	return metadata.GetCommitTimestamp(d.db)
}

// SetCommitTimestamp records the commit timestamp within txn
func (d *MetadataStoreSqlite) SetCommitTimestamp(txn *gorm.DB, timestamp int64) error {
	if txn == nil {
		txn = d.db
	}
	return metadata.SetCommitTimestamp(txn, timestamp)
}
