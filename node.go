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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/agora/api"
	"github.com/blinklabs-io/agora/chain"
	"github.com/blinklabs-io/agora/database"
	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/blinklabs-io/agora/mempool"
)

var ErrNodeStarted = errors.New("node already started")

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	ledger        *ledger.Ledger
	mempool       *mempool.Mempool
	chain         *chain.Chain
	producer      *chain.Producer
	api           *api.Server
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	startOnce     sync.Once
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
	}
	return n, nil
}

// Run starts the node and blocks until ctx is cancelled or Stop is called
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

// Start opens the database and starts the block producer and API server
// without blocking
func (n *Node) Start(ctx context.Context) error {
	err := ErrNodeStarted
	n.startOnce.Do(func() {
		err = n.start(ctx)
	})
	return err
}

func (n *Node) start(ctx context.Context) error {
	logger := n.config.logger
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:           n.config.dataDir,
		BlobPlugin:        n.config.blobPlugin,
		MetadataPlugin:    n.config.metadataPlugin,
		Logger:            logger,
		PromRegistry:      n.config.promRegistry,
		BlockCacheSize:    database.DefaultBlockCacheSize,
		ProposalCacheSize: database.DefaultProposalCacheSize,
	})
	if db != nil {
		n.db = db
	}
	if err != nil {
		var tsErr database.CommitTimestampError
		if errors.As(err, &tsErr) {
			logger.Error(
				"blob and metadata stores are out of sync",
				"metadata_timestamp", tsErr.MetadataTimestamp,
				"blob_timestamp", tsErr.BlobTimestamp,
			)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	// Remote event sink
	if n.config.redisEventSink != nil {
		sinkCfg := *n.config.redisEventSink
		if sinkCfg.Logger == nil {
			sinkCfg.Logger = logger
		}
		redisSub, err := event.NewRedisSubscriber(ctx, sinkCfg)
		if err != nil {
			return fmt.Errorf("failed to connect redis event sink: %w", err)
		}
		// The bus closes the subscriber when it stops
		n.eventBus.RegisterSubscriber(event.AllEvents, redisSub)
		logger.Info(
			"publishing events to redis",
			"component", "node",
			"address", sinkCfg.Address,
			"channel", sinkCfg.Channel,
		)
	}
	// Load ledger
	params := ledger.DefaultParams()
	if n.config.ledgerParams != nil {
		params = *n.config.ledgerParams
	}
	n.ledger, err = ledger.New(ledger.LedgerConfig{
		Logger:       logger,
		Database:     n.db,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		Clock:        n.config.clock,
		Params:       &params,
	})
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	// Initialize mempool
	n.mempool, err = mempool.NewMempool(mempool.MempoolConfig{
		Logger:       logger,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		Validator:    n.ledger,
		MaxTxs:       n.config.mempoolMaxTxs,
		MaxBytes:     n.config.mempoolCapacity,
	})
	if err != nil {
		return fmt.Errorf("failed to create mempool: %w", err)
	}
	// Load chain and start block production
	n.chain, err = chain.NewChain(n.db, n.eventBus)
	if err != nil {
		return fmt.Errorf("failed to load chain: %w", err)
	}
	n.producer, err = chain.NewProducer(chain.ProducerConfig{
		Logger:        logger,
		PromRegistry:  n.config.promRegistry,
		Chain:         n.chain,
		Ledger:        n.ledger,
		Mempool:       n.mempool,
		Clock:         n.config.clock,
		BlockInterval: n.config.blockInterval,
		MaxBlockTxs:   n.config.maxBlockTxs,
	})
	if err != nil {
		return fmt.Errorf("failed to create block producer: %w", err)
	}
	if err := n.producer.Start(ctx); err != nil {
		return err
	}
	// Start API
	if n.config.apiListenAddress != "" {
		n.api = api.New(
			api.ServerConfig{
				ListenAddress: n.config.apiListenAddress,
			},
			n,
			logger,
		)
		if err := n.api.Start(ctx); err != nil {
			return err
		}
	}
	tip, _ := n.chain.Tip()
	logger.Info(
		"node started",
		"component", "node",
		"height", tip.Height,
	)
	return nil
}

func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

func (n *Node) Chain() *chain.Chain {
	return n.chain
}

func (n *Node) Mempool() *mempool.Mempool {
	return n.mempool
}

func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

func (n *Node) Producer() *chain.Producer {
	return n.producer
}

// ApiAddr returns the bound API address, or an empty string when the API
// is disabled
func (n *Node) ApiAddr() string {
	if n.api == nil {
		return ""
	}
	return n.api.Addr()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	if n.mempool != nil {
		n.mempool.Stop()
	}

	// Phase 2: Finish the block in progress
	n.config.logger.Debug("shutdown phase 2: stopping block production")

	if n.producer != nil {
		n.producer.Stop()
	}

	// Phase 3: Close database
	n.config.logger.Debug("shutdown phase 3: closing database")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("database close: %w", closeErr),
			)
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
