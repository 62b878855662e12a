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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/agora"
	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NodeOptions builds the node options for a loaded config
func NodeOptions(
	cfg *config.Config,
	logger *slog.Logger,
) ([]agora.ConfigOptionFunc, error) {
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return nil, err
	}
	blockInterval, err := cfg.BlockIntervalDuration()
	if err != nil {
		return nil, err
	}
	opts := []agora.ConfigOptionFunc{
		agora.WithLogger(logger),
		agora.WithDataDir(cfg.DatabasePath),
		agora.WithBlobPlugin(cfg.BlobPlugin),
		agora.WithMetadataPlugin(cfg.MetadataPlugin),
		agora.WithApiListenAddress(cfg.ApiListenAddress),
		agora.WithBlockInterval(blockInterval),
		agora.WithMaxBlockTxs(cfg.MaxBlockTxs),
		agora.WithMempoolCapacity(cfg.MempoolCapacity, cfg.MempoolMaxTxs),
		agora.WithLedgerParams(cfg.Ledger),
		agora.WithShutdownTimeout(shutdownTimeout),
		agora.WithTracing(cfg.Tracing),
		agora.WithTracingStdout(cfg.TracingStdout),
		// Enable metrics with default prometheus registry
		agora.WithPrometheusRegistry(prometheus.DefaultRegisterer),
	}
	if cfg.Events.RedisAddress != "" {
		opts = append(
			opts,
			agora.WithRedisEventSink(event.RedisSubscriberConfig{
				Address:  cfg.Events.RedisAddress,
				Password: cfg.Events.RedisPassword,
				Channel:  cfg.Events.RedisChannel,
				DB:       cfg.Events.RedisDB,
			}),
		)
	}
	return opts, nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	opts, err := NodeOptions(cfg, logger)
	if err != nil {
		return err
	}
	shutdownTimeout, _ := cfg.ShutdownTimeoutDuration()
	n, err := agora.New(agora.NewConfig(opts...))
	if err != nil {
		return err
	}
	// Metrics and debug listener
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		http.Handle("/metrics", promhttp.Handler())
		metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component", "node",
		)
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	errChan := make(chan error, 2)
	if metricsServer != nil {
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics listener: %w", err)
			}
		}()
	}
	// Run node in goroutine
	go func() {
		//nolint:contextcheck
		if err := n.Run(signalCtx); err != nil {
			errChan <- err
		}
	}()

	var runErr error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
	case runErr = <-errChan:
		logger.Error("node error", "error", runErr)
		signalCtxStop()
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	if err := n.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "error", err)
		return errors.Join(runErr, err)
	}
	if runErr == nil {
		logger.Info("shutdown complete")
	}
	return runErr
}
