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
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type BlobStoreGCSOptionFunc func(*BlobStoreGCS)

func WithLogger(logger *slog.Logger) BlobStoreGCSOptionFunc {
	return func(b *BlobStoreGCS) {
		b.logger = logger
	}
}

func WithPromRegistry(
	registry prometheus.Registerer,
) BlobStoreGCSOptionFunc {
	return func(b *BlobStoreGCS) {
		b.promRegistry = registry
	}
}

// WithLocation specifies the bucket and the object name prefix
func WithLocation(bucket, prefix string) BlobStoreGCSOptionFunc {
	return func(b *BlobStoreGCS) {
		b.bucketName = bucket
		b.prefix = objectPrefix(prefix)
	}
}

// WithURL specifies the location as "gcs://bucket[/prefix]". An empty URL
// leaves the location unchanged
func WithURL(url string) BlobStoreGCSOptionFunc {
	return func(b *BlobStoreGCS) {
		if url == "" {
			return
		}
		bucket, prefix, err := ParseURL(url)
		if err != nil {
			b.optErr = errors.Join(b.optErr, err)
			return
		}
		b.bucketName = bucket
		b.prefix = prefix
	}
}

// WithCredentialsFile uses a service account key instead of the
// application default credentials
func WithCredentialsFile(path string) BlobStoreGCSOptionFunc {
	return func(b *BlobStoreGCS) {
		b.credentialsFile = path
	}
}

func WithTimeout(timeout time.Duration) BlobStoreGCSOptionFunc {
	return func(b *BlobStoreGCS) {
		b.timeout = timeout
	}
}

func objectPrefix(prefix string) string {
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		return prefix + "/"
	}
	return ""
}
