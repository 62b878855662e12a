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

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/blinklabs-io/agora/database/plugin/blob"
	"github.com/blinklabs-io/agora/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BlobStoreGCS stores data in a Google Cloud Storage bucket
type BlobStoreGCS struct {
	*blob.ObjectStore
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	client          *storage.Client
	bucket          *storage.BucketHandle
	bucketName      string
	prefix          string
	credentialsFile string
	optErr          error
	timeout         time.Duration
}

// New creates a new GCS-backed blob store from a URL of the form
// "gcs://bucket" or "gcs://bucket/prefix"
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*BlobStoreGCS, error) {
	bucketName, keyPrefix, err := ParseURL(dataDir)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(
		WithLocation(bucketName, keyPrefix),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// ParseURL splits a "gcs://bucket[/prefix]" URL into bucket and object
// prefix
func ParseURL(dataDir string) (string, string, error) {
	path, ok := strings.CutPrefix(dataDir, "gcs://")
	bucketName, keyPrefix, _ := strings.Cut(path, "/")
	if !ok || bucketName == "" {
		return "", "", errors.New(
			"gcs blob: bucket not set (expected dataDir='gcs://<bucket>[/prefix]')",
		)
	}
	return bucketName, objectPrefix(keyPrefix), nil
}

// NewWithOptions creates a new GCS-backed blob store using options. The
// client is created by Start()
func NewWithOptions(opts ...BlobStoreGCSOptionFunc) (*BlobStoreGCS, error) {
	db := &BlobStoreGCS{}
	for _, opt := range opts {
		opt(db)
	}
	if db.optErr != nil {
		return nil, db.optErr
	}
	if err := ValidateCredentials(db.credentialsFile); err != nil {
		return nil, err
	}
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return db, nil
}

// ValidateCredentials checks that a configured credentials file exists
func ValidateCredentials(credentialsFile string) error {
	if credentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(credentialsFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf(
				"GCS credentials file does not exist: %s",
				credentialsFile,
			)
		}
		return fmt.Errorf("GCS credentials file: %w", err)
	}
	return nil
}

// SetLogger implements plugin.Observable
func (d *BlobStoreGCS) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Observable
func (d *BlobStoreGCS) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Start implements the plugin.Plugin interface
func (d *BlobStoreGCS) Start() error {
	if d.bucketName == "" {
		return errors.New("gcs blob: bucket not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	clientOpts := []option.ClientOption{
		storage.WithDisabledClientMetrics(),
	}
	if d.credentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(d.credentialsFile),
		)
	}
	client, err := storage.NewGRPCClient(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf(
			"gcs blob: failed in creating storage client: %w",
			err,
		)
	}
	d.client = client
	d.bucket = client.Bucket(d.bucketName)
	d.ObjectStore = blob.NewObjectStore(
		d,
		blob.NewMetrics(d.promRegistry, "gcs"),
		d.timeout,
	)
	d.logger.Info(
		"opened GCS blob store",
		"component", "database",
		"bucket", d.bucketName,
	)
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreGCS) Stop() error {
	return d.Close()
}

// Close closes the GCS client
func (d *BlobStoreGCS) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

// NewTransaction returns a write-buffering transaction
func (d *BlobStoreGCS) NewTransaction(readWrite bool) types.Txn {
	if d.ObjectStore == nil || d.client == nil {
		return unavailableTxn{}
	}
	return d.ObjectStore.NewTransaction(readWrite)
}

func (d *BlobStoreGCS) object(name string) *storage.ObjectHandle {
	return d.bucket.Object(d.prefix + name)
}

// GetObject implements blob.ObjectBackend
func (d *BlobStoreGCS) GetObject(ctx context.Context, name string) ([]byte, error) {
	r, err := d.object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// PutObject implements blob.ObjectBackend
func (d *BlobStoreGCS) PutObject(ctx context.Context, name string, data []byte) error {
	w := d.object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// DeleteObject implements blob.ObjectBackend
func (d *BlobStoreGCS) DeleteObject(ctx context.Context, name string) error {
	err := d.object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

// ListObjects implements blob.ObjectBackend
func (d *BlobStoreGCS) ListObjects(ctx context.Context, namePrefix string) ([]string, error) {
	it := d.bucket.Objects(ctx, &storage.Query{Prefix: d.prefix + namePrefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, strings.TrimPrefix(attrs.Name, d.prefix))
	}
	return names, nil
}

type unavailableTxn struct{}

func (unavailableTxn) Commit() error   { return types.ErrBlobStoreUnavailable }
func (unavailableTxn) Rollback() error { return nil }
