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

package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/agora/database/plugin"
	"github.com/blinklabs-io/agora/database/plugin/blob"
	"github.com/blinklabs-io/agora/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultBlobPlugin        = "badger"
	DefaultMetadataPlugin    = "sqlite"
	DefaultBlockCacheSize    = 256
	DefaultProposalCacheSize = 1024
)

// Config holds the settings for opening a Database. An empty DataDir selects
// in-memory storage for the plugins that support it.
type Config struct {
	Logger            *slog.Logger
	PromRegistry      prometheus.Registerer
	BlobPlugin        string
	MetadataPlugin    string
	DataDir           string
	BlockCacheSize    uint
	ProposalCacheSize uint
}

var DefaultConfig = &Config{
	BlobPlugin:        DefaultBlobPlugin,
	MetadataPlugin:    DefaultMetadataPlugin,
	DataDir:           ".agora",
	BlockCacheSize:    DefaultBlockCacheSize,
	ProposalCacheSize: DefaultProposalCacheSize,
}

type Database struct {
	logger        *slog.Logger
	blob          blob.BlobStore
	metadata      metadata.MetadataStore
	config        *Config
	blockCache    *recordCache
	proposalCache *recordCache
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.config.DataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

func (d *Database) init() error {
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("component", "database")
	cacheMetrics := newCacheMetrics(d.config.PromRegistry)
	d.blockCache = newRecordCache("block", d.config.BlockCacheSize, cacheMetrics)
	d.proposalCache = newRecordCache(
		"proposal",
		d.config.ProposalCacheSize,
		cacheMetrics,
	)
	// Check commit timestamp
	if err := d.checkCommitTimestamp(); err != nil {
		return err
	}
	return nil
}

// New opens the configured blob and metadata plugins. A nil config uses
// DefaultConfig.
func New(config *Config) (*Database, error) {
	if config == nil {
		config = DefaultConfig
	}
	cfg := *config
	if cfg.BlobPlugin == "" {
		cfg.BlobPlugin = DefaultBlobPlugin
	}
	if cfg.MetadataPlugin == "" {
		cfg.MetadataPlugin = DefaultMetadataPlugin
	}
	// Plugins without a data-dir option ignore this
	if err := plugin.SetPluginOption(
		plugin.PluginTypeMetadata,
		cfg.MetadataPlugin,
		"data-dir",
		cfg.DataDir,
	); err != nil {
		return nil, err
	}
	if err := plugin.SetPluginOption(
		plugin.PluginTypeBlob,
		cfg.BlobPlugin,
		"data-dir",
		cfg.DataDir,
	); err != nil {
		return nil, err
	}
	metadataDb, err := metadata.New(
		cfg.MetadataPlugin,
		cfg.Logger,
		cfg.PromRegistry,
	)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	blobDb, err := blob.New(cfg.BlobPlugin, cfg.Logger, cfg.PromRegistry)
	if err != nil {
		_ = metadataDb.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	db := &Database{
		logger:   cfg.Logger,
		blob:     blobDb,
		metadata: metadataDb,
		config:   &cfg,
	}
	if err := db.init(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}
