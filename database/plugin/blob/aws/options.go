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
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type BlobStoreS3OptionFunc func(*BlobStoreS3)

func WithLogger(logger *slog.Logger) BlobStoreS3OptionFunc {
	return func(b *BlobStoreS3) {
		b.logger = logger
	}
}

func WithPromRegistry(
	registry prometheus.Registerer,
) BlobStoreS3OptionFunc {
	return func(b *BlobStoreS3) {
		b.promRegistry = registry
	}
}

// WithLocation specifies the bucket and the key prefix for all objects.
// The prefix is normalized to end with a slash
func WithLocation(bucket, prefix string) BlobStoreS3OptionFunc {
	return func(b *BlobStoreS3) {
		b.bucket = bucket
		b.prefix = normalizePrefix(prefix)
	}
}

// WithURL specifies the location as "s3://bucket[/prefix]". An empty URL
// leaves the location unchanged
func WithURL(url string) BlobStoreS3OptionFunc {
	return func(b *BlobStoreS3) {
		if url == "" {
			return
		}
		bucket, prefix, err := ParseURL(url)
		if err != nil {
			if b.optErr == nil {
				b.optErr = err
			}
			return
		}
		b.bucket = bucket
		b.prefix = prefix
	}
}

func WithRegion(region string) BlobStoreS3OptionFunc {
	return func(b *BlobStoreS3) {
		b.region = region
	}
}

// WithTimeout bounds config loading and each object operation
func WithTimeout(timeout time.Duration) BlobStoreS3OptionFunc {
	return func(b *BlobStoreS3) {
		b.timeout = timeout
	}
}

// WithEndpoint points the client at an S3-compatible service such as
// minio. Most of those need path-style addressing
func WithEndpoint(endpoint string, pathStyle bool) BlobStoreS3OptionFunc {
	return func(b *BlobStoreS3) {
		b.endpoint = endpoint
		b.pathStyle = pathStyle
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
