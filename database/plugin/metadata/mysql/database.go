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

package mysql

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/blinklabs-io/agora/database/plugin/metadata"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	DefaultMaxConnections = 100
	DefaultPort           = 3306
	DefaultDatabase       = "agora"
)

// MySQL server error for an unknown database
const errUnknownDatabase = 1049

// MetadataStoreMysql stores metadata in MySQL
type MetadataStoreMysql struct {
	promRegistry   prometheus.Registerer
	db             *gorm.DB
	logger         *slog.Logger
	driverCfg      *mysql.Config
	optErr         error
	maxConnections int
}

// NewWithOptions creates a new database with options. The connection is
// opened by Start()
func NewWithOptions(opts ...MysqlOptionFunc) (*MetadataStoreMysql, error) {
	cfg := mysql.NewConfig()
	cfg.User = "root"
	cfg.Net = "tcp"
	cfg.Addr = "localhost:" + strconv.Itoa(DefaultPort)
	cfg.DBName = DefaultDatabase
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	db := &MetadataStoreMysql{
		driverCfg:      cfg,
		maxConnections: DefaultMaxConnections,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.optErr != nil {
		return nil, db.optErr
	}
	if db.maxConnections <= 0 {
		db.maxConnections = DefaultMaxConnections
	}
	return db, nil
}

func (d *MetadataStoreMysql) setOptErr(err error) {
	if d.optErr == nil {
		d.optErr = err
	}
}

// SetLogger implements plugin.Observable
func (d *MetadataStoreMysql) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Observable
func (d *MetadataStoreMysql) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// buildDSN returns the connection string and the database name it targets
func (d *MetadataStoreMysql) buildDSN() (string, string) {
	return d.driverCfg.FormatDSN(), d.driverCfg.DBName
}

// Start implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Start() error {
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	dsn, dbName := d.buildDSN()
	metadataDb, err := gorm.Open(gormmysql.Open(dsn), metadata.GormConfig())
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) || mysqlErr.Number != errUnknownDatabase {
			return err
		}
		if err := ensureDatabaseExists(dsn, dbName); err != nil {
			return fmt.Errorf("create database %s: %w", dbName, err)
		}
		metadataDb, err = gorm.Open(gormmysql.Open(dsn), metadata.GormConfig())
		if err != nil {
			return err
		}
	}
	d.logger.Info(
		"connected to mysql metadata store",
		"component", "database",
		"address", d.driverCfg.Addr,
		"database", dbName,
	)
	d.db = metadataDb
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(d.maxConnections)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return metadata.Setup(d.db, "mysql", d.logger, d.promRegistry)
}

// ensureDatabaseExists connects without a database selected and creates it
func ensureDatabaseExists(dsn string, dbName string) error {
	if dbName == "" {
		return errors.New("no database name in DSN")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	cfg.DBName = ""
	adminDb, err := gorm.Open(gormmysql.Open(cfg.FormatDSN()), metadata.GormConfig())
	if err != nil {
		return err
	}
	sqlAdminDb, err := adminDb.DB()
	if err != nil {
		return err
	}
	defer sqlAdminDb.Close()
	return adminDb.Exec(
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName),
	).Error
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}

// Close gets the database handle from our MetadataStore and closes it
func (d *MetadataStoreMysql) Close() error {
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
func (d *MetadataStoreMysql) DB() *gorm.DB {
	return d.db
}

// Transaction begins a gorm transaction
func (d *MetadataStoreMysql) Transaction() *gorm.DB {
	return d.DB().Begin()
}

// GetCommitTimestamp returns the timestamp of the last coordinated commit
func (d *MetadataStoreMysql) GetCommitTimestamp() (int64, error) {
	if d.db == nil {
		return 0, metadata.ErrStoreNotStarted
	}
	return metadata.GetCommitTimestamp(d.db)
}

// SetCommitTimestamp records the commit timestamp within txn
func (d *MetadataStoreMysql) SetCommitTimestamp(txn *gorm.DB, timestamp int64) error {
	if txn == nil {
		txn = d.db
	}
	return metadata.SetCommitTimestamp(txn, timestamp)
}
