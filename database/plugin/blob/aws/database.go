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

package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/blinklabs-io/agora/database/plugin/blob"
	"github.com/blinklabs-io/agora/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

// BlobStoreS3 stores data in an AWS S3 bucket
type BlobStoreS3 struct {
	*blob.ObjectStore
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	client       *s3.Client
	bucket       string
	prefix       string
	region       string
	endpoint     string
	optErr       error
	timeout      time.Duration
	pathStyle    bool
}

// New creates a new S3-backed blob store from a URL of the form
// "s3://bucket" or "s3://bucket/prefix"
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*BlobStoreS3, error) {
	bucket, keyPrefix, err := ParseURL(dataDir)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(
		WithLocation(bucket, keyPrefix),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// ParseURL splits an "s3://bucket[/prefix]" URL into bucket and key prefix.
// A non-empty prefix always ends with a slash.
func ParseURL(dataDir string) (string, string, error) {
	path, ok := strings.CutPrefix(dataDir, "s3://")
	if !ok {
		return "", "", errors.New(
			"s3 blob: expected dataDir='s3://<bucket>[/prefix]'",
		)
	}
	bucket, keyPrefix, _ := strings.Cut(path, "/")
	if bucket == "" {
		return "", "", errors.New("s3 blob: bucket not set")
	}
	return bucket, normalizePrefix(keyPrefix), nil
}

// NewWithOptions creates a new S3-backed blob store using options. The
// client is created by Start()
func NewWithOptions(opts ...BlobStoreS3OptionFunc) (*BlobStoreS3, error) {
	db := &BlobStoreS3{}
	for _, opt := range opts {
		opt(db)
	}
	if db.optErr != nil {
		return nil, db.optErr
	}
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return db, nil
}

// SetLogger implements plugin.Observable
func (d *BlobStoreS3) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// SetPromRegistry implements plugin.Observable
func (d *BlobStoreS3) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}

// Start implements the plugin.Plugin interface
func (d *BlobStoreS3) Start() error {
	if d.bucket == "" {
		return errors.New("s3 blob: bucket not set")
	}
	timeout := d.timeout
	if timeout == 0 {
		timeout = blob.DefaultObjectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("s3 blob: load default AWS config: %w", err)
	}
	if d.region != "" {
		awsCfg.Region = d.region
	}
	d.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if d.endpoint != "" {
			o.BaseEndpoint = aws.String(d.endpoint)
			o.UsePathStyle = d.pathStyle
		}
	})
	d.ObjectStore = blob.NewObjectStore(
		d,
		blob.NewMetrics(d.promRegistry, "s3"),
		timeout,
	)
	d.logger.Info(
		"opened S3 blob store",
		"component", "database",
		"bucket", d.bucket,
		"prefix", d.prefix,
	)
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreS3) Stop() error {
	return nil
}

// Close implements the BlobStore interface
func (d *BlobStoreS3) Close() error {
	return d.Stop()
}

// NewTransaction returns a write-buffering transaction
func (d *BlobStoreS3) NewTransaction(readWrite bool) types.Txn {
	if d.ObjectStore == nil {
		return unavailableTxn{}
	}
	return d.ObjectStore.NewTransaction(readWrite)
}

func (d *BlobStoreS3) objectKey(name string) *string {
	return aws.String(d.prefix + name)
}

// GetObject implements blob.ObjectBackend
func (d *BlobStoreS3) GetObject(ctx context.Context, name string) ([]byte, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    d.objectKey(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, types.ErrBlobKeyNotFound
		}
		d.logger.Error(
			fmt.Sprintf("s3 get %q failed: %s", name, err),
			"component", "database",
		)
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// PutObject implements blob.ObjectBackend
func (d *BlobStoreS3) PutObject(ctx context.Context, name string, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    d.objectKey(name),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		d.logger.Error(
			fmt.Sprintf("s3 put %q failed: %s", name, err),
			"component", "database",
		)
	}
	return err
}

// DeleteObject implements blob.ObjectBackend
func (d *BlobStoreS3) DeleteObject(ctx context.Context, name string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    d.objectKey(name),
	})
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// ListObjects implements blob.ObjectBackend
func (d *BlobStoreS3) ListObjects(ctx context.Context, namePrefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: d.objectKey(namePrefix),
	})
	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			names = append(
				names,
				strings.TrimPrefix(aws.ToString(obj.Key), d.prefix),
			)
		}
	}
	return names, nil
}

// IsNotFound reports whether err is a missing-object error from S3
func IsNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

type unavailableTxn struct{}

func (unavailableTxn) Commit() error   { return types.ErrBlobStoreUnavailable }
func (unavailableTxn) Rollback() error { return nil }
