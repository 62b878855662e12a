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

package postgres

import (
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/agora/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultMaxOpenConns    = 100
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = time.Hour
)

type poolConfig struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

// MetadataStorePostgres holds the ledger tables in Postgres
type MetadataStorePostgres struct {
	promRegistry prometheus.Registerer
	db           *gorm.DB
	logger       *slog.Logger
	host         string
	user         string
	password     string
	database     string
	schema       string
	sslMode      string
	timeZone     string
	dsn          string // Data source name (postgres connection string)
	port         uint
	pool         poolConfig
}

// New creates a new database
func New(
	host string,
	port uint,
	user string,
	password string,
	database string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStorePostgres, error) {
	return NewWithOptions(
		WithHost(host),
		WithPort(port),
		WithUser(user),
		WithPassword(password),
		WithDatabase(database),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a new database with options. The connection is
// opened by Start()
func NewWithOptions(opts ...PostgresOptionFunc) (*MetadataStorePostgres, error) {
	db := &MetadataStorePostgres{}
	for _, opt := range opts {
		opt(db)
	}
	if db.host == "" {
		db.host = "localhost"
	}
	if db.port == 0 {
		db.port = 5432
	}
	if db.user == "" {
		db.user = "postgres"
	}
	if db.database == "" {
		db.database = "postgres"
	}
	if db.sslMode == "" {
		db.sslMode = "disable"
	}
	if db.timeZone == "" {
		db.timeZone = "UTC"
	}
	if db.pool.maxOpenConns <= 0 {
		db.pool.maxOpenConns = defaultMaxOpenConns
	}
	if db.pool.maxIdleConns <= 0 {
		db.pool.maxIdleConns = defaultMaxIdleConns
	}
	if db.pool.maxIdleConns > db.pool.maxOpenConns {
		db.pool.maxIdleConns = db.pool.maxOpenConns
	}
	if db.pool.connMaxLifetime <= 0 {
		db.pool.connMaxLifetime = defaultConnMaxLifetime
	}
	return db, nil
}

// SetLogger implements plugin.Observable
func (d *MetadataStorePostgres) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Observable
func (d *MetadataStorePostgres) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// buildDSN returns the configured DSN or assembles one from the options
func (d *MetadataStorePostgres) buildDSN() string {
	if dsn := strings.TrimSpace(d.dsn); dsn != "" {
		return dsn
	}
	parts := []string{
		"host=" + d.host,
		"user=" + d.user,
		"password=" + d.password,
		"dbname=" + d.database,
		"port=" + strconv.FormatUint(uint64(d.port), 10),
		"sslmode=" + d.sslMode,
	}
	if d.timeZone != "" {
		parts = append(parts, "TimeZone="+d.timeZone)
	}
	if d.schema != "" {
		parts = append(parts, "search_path="+d.schema)
	}
	return strings.Join(parts, " ")
}

// Start implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Start() error {
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	gormConfig := metadata.GormConfig()
	gormConfig.PrepareStmt = true
	metadataDb, err := gorm.Open(postgres.Open(d.buildDSN()), gormConfig)
	if err != nil {
		return err
	}
	d.logger.Info(
		"connected to postgres metadata store",
		"component", "database",
		"host", d.host,
		"port", d.port,
		"database", d.database,
		"schema", d.schema,
	)
	d.db = metadataDb
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(d.pool.maxIdleConns)
	sqlDB.SetMaxOpenConns(d.pool.maxOpenConns)
	sqlDB.SetConnMaxLifetime(d.pool.connMaxLifetime)
	return metadata.Setup(d.db, "postgres", d.logger, d.promRegistry)
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Stop() error {
	return d.Close()
}

// Close gets the database handle from our MetadataStore and closes it
func (d *MetadataStorePostgres) Close() error {
	if d.db == nil {
		return nil
	}
	db, err := d.db.DB()
	if err != nil {
		return err
	}
	d.db = nil
	return db.Close()
}

// DB returns the database handle
func (d *MetadataStorePostgres) DB() *gorm.DB {
	return d.db
}

// Transaction begins a gorm transaction
func (d *MetadataStorePostgres) Transaction() *gorm.DB {
	return d.DB().Begin()
}

// GetCommitTimestamp returns the timestamp of the last coordinated commit
func (d *MetadataStorePostgres) GetCommitTimestamp() (int64, error) {
	if d.db == nil {
		return 0, metadata.ErrStoreNotStarted
	}
	return metadata.GetCommitTimestamp(d.db)
}

// SetCommitTimestamp records the commit timestamp within txn
func (d *MetadataStorePostgres) SetCommitTimestamp(txn *gorm.DB, timestamp int64) error {
	if txn == nil {
		txn = d.db
	}
	return metadata.SetCommitTimestamp(txn, timestamp)
}
