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

package agora

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	clock            ledger.Clock
	ledgerParams     *ledger.Params
	redisEventSink   *event.RedisSubscriberConfig
	dataDir          string
	blobPlugin       string
	metadataPlugin   string
	apiListenAddress string
	mempoolCapacity  int64
	mempoolMaxTxs    int
	maxBlockTxs      int
	blockInterval    time.Duration
	shutdownTimeout  time.Duration
	tracing          bool
	tracingStdout    bool
}

func (c *Config) validate() error {
	if c.blockInterval < 0 {
		return fmt.Errorf("invalid block interval: %s", c.blockInterval)
	}
	if c.maxBlockTxs < 0 {
		return fmt.Errorf("invalid max block transactions: %d", c.maxBlockTxs)
	}
	if c.mempoolCapacity < 0 || c.mempoolMaxTxs < 0 {
		return errors.New("mempool limits must not be negative")
	}
	if c.redisEventSink != nil && c.redisEventSink.Address == "" {
		return errors.New("redis event sink requires an address")
	}
	if c.ledgerParams != nil {
		if err := c.ledgerParams.Validate(); err != nil {
			return fmt.Errorf("invalid ledger parameters: %w", err)
		}
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new agora config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDataDir specifies the persistent data directory to use. The default is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithApiListenAddress specifies the listen address for the HTTP API. An
// empty string disables the API server
func WithApiListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = addr
	}
}

// WithBlockInterval specifies how often a block is produced from pending
// transactions. The default is 2 seconds
func WithBlockInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.blockInterval = interval
	}
}

// WithMaxBlockTxs limits the number of transactions in one block
func WithMaxBlockTxs(maxTxs int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxBlockTxs = maxTxs
	}
}

// WithMempoolCapacity sets the mempool capacity in bytes and in transactions.
// Zero values use the mempool defaults
func WithMempoolCapacity(capacity int64, maxTxs int) ConfigOptionFunc {
	return func(c *Config) {
		c.mempoolCapacity = capacity
		c.mempoolMaxTxs = maxTxs
	}
}

// WithLedgerParams specifies the governance parameters. The default is
// ledger.DefaultParams
func WithLedgerParams(params ledger.Params) ConfigOptionFunc {
	return func(c *Config) {
		c.ledgerParams = &params
	}
}

// WithRedisEventSink publishes every bus event to a Redis channel
func WithRedisEventSink(cfg event.RedisSubscriberConfig) ConfigOptionFunc {
	return func(c *Config) {
		c.redisEventSink = &cfg
	}
}

// WithClock overrides the time source used for block timestamps and
// ledger rules. This is mostly useful for testing
func WithClock(clock ledger.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
