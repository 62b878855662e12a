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
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type BlobStorePebbleOptionFunc func(*BlobStorePebble)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) BlobStorePebbleOptionFunc {
	return func(b *BlobStorePebble) {
		b.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(
	registry prometheus.Registerer,
) BlobStorePebbleOptionFunc {
	return func(b *BlobStorePebble) {
		b.promRegistry = registry
	}
}

// WithDataDir specifies the data directory to use for storage. An empty
// value keeps everything in memory
func WithDataDir(dataDir string) BlobStorePebbleOptionFunc {
	return func(b *BlobStorePebble) {
		b.dataDir = dataDir
	}
}

// WithCacheSize specifies the block cache size in bytes
func WithCacheSize(size uint64) BlobStorePebbleOptionFunc {
	return func(b *BlobStorePebble) {
		b.cacheSize = size
	}
}
