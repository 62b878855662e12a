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

package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/agora/database"
	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/blinklabs-io/agora/mempool"
	"github.com/blinklabs-io/agora/tx"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultBlockInterval = 2 * time.Second
	DefaultMaxBlockTxs   = 500
)

// TxApplier applies signed transactions to the ledger
type TxApplier interface {
	ApplyTx(
		t *tx.Tx,
		at time.Time,
		record ledger.RecordFunc,
	) (ledger.ApplyResult, error)
}

// MempoolProvider supplies pending transactions in arrival order
type MempoolProvider interface {
	Pending(limit int) []mempool.MempoolTransaction
	RemoveTransactions(txHashes []string)
	Revalidate()
}

type ProducerConfig struct {
	Logger        *slog.Logger
	PromRegistry  prometheus.Registerer
	Chain         *Chain
	Ledger        TxApplier
	Mempool       MempoolProvider
	Clock         ledger.Clock
	BlockInterval time.Duration
	MaxBlockTxs   int
}

// Producer periodically drains the mempool into blocks
type Producer struct {
	logger        *slog.Logger
	chain         *Chain
	db            *database.Database
	ledger        TxApplier
	mempool       MempoolProvider
	clock         ledger.Clock
	metrics       *producerMetrics
	blockInterval time.Duration
	maxBlockTxs   int

	// Serializes block production
	produceMu sync.Mutex

	// State
	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if cfg.Chain == nil {
		return nil, errors.New("block producer requires a chain")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("block producer requires a ledger")
	}
	if cfg.Mempool == nil {
		return nil, errors.New("block producer requires a mempool")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.BlockInterval <= 0 {
		cfg.BlockInterval = DefaultBlockInterval
	}
	if cfg.MaxBlockTxs <= 0 {
		cfg.MaxBlockTxs = DefaultMaxBlockTxs
	}
	p := &Producer{
		logger:        cfg.Logger.With("component", "producer"),
		chain:         cfg.Chain,
		db:            cfg.Chain.db,
		ledger:        cfg.Ledger,
		mempool:       cfg.Mempool,
		clock:         cfg.Clock,
		metrics:       newProducerMetrics(cfg.PromRegistry),
		blockInterval: cfg.BlockInterval,
		maxBlockTxs:   cfg.MaxBlockTxs,
	}
	p.metrics.blockHeight.Set(float64(cfg.Chain.Height()))
	return p, nil
}

// Start begins producing blocks.
// The provided context controls the producer's lifecycle.
func (p *Producer) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrProducerRunning
	}
	p.running = true

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Info(
		"block producer started",
		"interval", p.blockInterval.String(),
		"max_block_txs", p.maxBlockTxs,
	)

	go p.runLoop(ctx)
	return nil
}

// Stop stops block production.
// It blocks until the runLoop goroutine has exited.
func (p *Producer) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}

	p.running = false
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	// Wait for the goroutine to finish before returning
	p.wg.Wait()
	p.logger.Info("block producer stopped")
}

func (p *Producer) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Producer) runLoop(ctx context.Context) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.blockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProduceBlock(); err != nil {
				p.logger.Error("block production failed", "error", err)
			}
		}
	}
}

func (p *Producer) now() time.Time {
	if p.clock == nil {
		return time.Now()
	}
	return p.clock.Now()
}

// ProduceBlock applies up to the block limit of pending transactions and
// persists them as the next block. It returns false when there was nothing
// to include.
func (p *Producer) ProduceBlock() (bool, error) {
	p.produceMu.Lock()
	defer p.produceMu.Unlock()
	pending := p.mempool.Pending(p.maxBlockTxs)
	if len(pending) == 0 {
		return false, nil
	}
	block := p.chain.NextBlock(p.now())
	blockTime := time.Unix(block.Timestamp, 0)
	var done []string
	var applyErr error
	for _, pendingTx := range pending {
		// A receipt means the transaction was applied before
		if receipt, err := p.db.GetReceipt(pendingTx.Tx.Hash(), nil); err == nil {
			if receipt.BlockHeight < block.Height {
				p.logger.Debug(
					"skipping already included transaction",
					"tx_hash", pendingTx.Hash,
				)
				p.metrics.txsSkipped.Inc()
				done = append(done, pendingTx.Hash)
				continue
			}
			// Applied for a block that was never written, so it belongs
			// to this one
			index := uint32(len(block.Txs)) // #nosec G115
			if err := p.db.MoveReceipt(receipt.TxHash, block.Height, index, nil); err != nil {
				applyErr = err
				break
			}
			block.Txs = append(block.Txs, pendingTx.Cbor)
			done = append(done, pendingTx.Hash)
			continue
		} else if !errors.Is(err, models.ErrReceiptNotFound) {
			applyErr = err
			break
		}
		index := uint32(len(block.Txs)) // #nosec G115
		result, err := p.ledger.ApplyTx(
			pendingTx.Tx,
			blockTime,
			p.recordReceipt(pendingTx, block.Height, index),
		)
		if err != nil {
			// Storage failure, leave the rest pending for the next block
			applyErr = err
			break
		}
		if result.Err != nil {
			p.metrics.txsFailed.Inc()
			p.logger.Debug(
				"transaction failed",
				"tx_hash", pendingTx.Hash,
				"code", result.Code,
				"error", result.Err,
			)
		}
		block.Txs = append(block.Txs, pendingTx.Cbor)
		done = append(done, pendingTx.Hash)
	}
	if len(block.Txs) > 0 {
		header, err := p.chain.AddBlock(block)
		if err != nil {
			return false, errors.Join(applyErr, err)
		}
		p.metrics.blocksProduced.Inc()
		p.metrics.blockHeight.Set(float64(header.Height))
		p.metrics.blockTxCount.Observe(float64(header.TxCount))
		p.logger.Info(
			"produced block",
			"height", header.Height,
			"tx_count", header.TxCount,
		)
	}
	p.mempool.RemoveTransactions(done)
	// Drop pending transactions whose nonces were just consumed
	p.mempool.Revalidate()
	return len(block.Txs) > 0, applyErr
}

func (p *Producer) recordReceipt(
	pendingTx mempool.MempoolTransaction,
	height uint64,
	index uint32,
) ledger.RecordFunc {
	return func(txn *database.Txn, result ledger.ApplyResult) error {
		receipt := &models.Receipt{
			TxHash:      pendingTx.Tx.Hash(),
			Sender:      result.Sender,
			Kind:        string(pendingTx.Tx.Kind),
			Nonce:       pendingTx.Tx.Nonce,
			BlockHeight: height,
			Index:       index,
			Success:     result.Err == nil,
		}
		if result.Err != nil {
			receipt.Error = result.Err.Error()
			receipt.ErrorCode = result.Code
		}
		if err := p.db.AddReceipt(receipt, txn); err != nil {
			return err
		}
		return p.db.SetTx(receipt.TxHash, pendingTx.Cbor, txn)
	}
}
