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

package mempool

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/tx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	AddTransactionEventType    event.EventType = "mempool.add_tx"
	RemoveTransactionEventType event.EventType = "mempool.remove_tx"
)

const (
	DefaultMaxTxs   = 10_000
	DefaultMaxBytes = 16 * 1024 * 1024
)

var (
	ErrDuplicateTx = errors.New("transaction already in mempool")
	ErrStopped     = errors.New("mempool is stopped")
)

type AddTransactionEvent struct {
	Hash   string `json:"hash"`
	Sender string `json:"sender"`
	Kind   string `json:"kind"`
	Nonce  uint64 `json:"nonce"`
}

type RemoveTransactionEvent struct {
	Hash string `json:"hash"`
}

type MempoolTransaction struct {
	LastSeen time.Time
	Tx       *tx.Tx
	Hash     string
	Sender   string
	Cbor     []byte
}

// TxValidator checks a transaction for admission and returns its sender
type TxValidator interface {
	ValidateTx(t *tx.Tx) (string, error)
}

type MempoolConfig struct {
	PromRegistry prometheus.Registerer
	Validator    TxValidator
	Logger       *slog.Logger
	EventBus     *event.EventBus
	MaxTxs       int
	MaxBytes     int64
}

// Mempool holds admitted transactions in arrival order until a block
// includes them
type Mempool struct {
	config  MempoolConfig
	metrics struct {
		txsProcessedNum prometheus.Counter
		txsRejectedNum  *prometheus.CounterVec
		txsInMempool    prometheus.Gauge
		mempoolBytes    prometheus.Gauge
	}
	validator    TxValidator
	logger       *slog.Logger
	eventBus     *event.EventBus
	transactions []*MempoolTransaction
	currentBytes int64
	stopped      bool
	sync.RWMutex
}

type MempoolFullError struct {
	CurrentCount int
	CurrentSize  int64
	TxSize       int
	MaxTxs       int
	Capacity     int64
}

func (e *MempoolFullError) Error() string {
	return fmt.Sprintf(
		"mempool full: current count=%d, current size=%d bytes, tx size=%d bytes, max count=%d, capacity=%d bytes",
		e.CurrentCount,
		e.CurrentSize,
		e.TxSize,
		e.MaxTxs,
		e.Capacity,
	)
}

func NewMempool(config MempoolConfig) (*Mempool, error) {
	if config.Validator == nil {
		return nil, errors.New("no transaction validator provided")
	}
	if config.MaxTxs <= 0 {
		config.MaxTxs = DefaultMaxTxs
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultMaxBytes
	}
	m := &Mempool{
		eventBus:  config.EventBus,
		validator: config.Validator,
		config:    config,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		m.logger = config.Logger
	}
	m.logger = m.logger.With("component", "mempool")
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	m.metrics.txsProcessedNum = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "agora_mempool_txs_processed_total",
			Help: "total transactions admitted to the mempool",
		},
	)
	m.metrics.txsRejectedNum = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_mempool_txs_rejected_total",
			Help: "total transactions refused admission, by reason",
		},
		[]string{"reason"},
	)
	m.metrics.txsInMempool = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "agora_mempool_txs",
		Help: "current count of mempool transactions",
	})
	m.metrics.mempoolBytes = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "agora_mempool_bytes",
		Help: "current size of mempool transactions in bytes",
	})
	return m, nil
}

// Stop refuses further admissions and drops pending transactions
func (m *Mempool) Stop() {
	m.Lock()
	defer m.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.transactions = nil
	m.currentBytes = 0
	m.metrics.txsInMempool.Set(0)
	m.metrics.mempoolBytes.Set(0)
}

// AddTransaction decodes, validates and queues a signed transaction. It
// returns the transaction hash.
func (m *Mempool) AddTransaction(txBytes []byte) (string, error) {
	// Decode transaction
	tmpTx, err := tx.Decode(txBytes)
	if err != nil {
		m.metrics.txsRejectedNum.WithLabelValues("decode").Inc()
		return "", err
	}
	// Validate transaction
	sender, err := m.validator.ValidateTx(tmpTx)
	if err != nil {
		m.metrics.txsRejectedNum.WithLabelValues("validation").Inc()
		return "", err
	}
	// Build mempool entry
	mempoolTx := MempoolTransaction{
		Hash:     tmpTx.HashHex(),
		Sender:   sender,
		Tx:       tmpTx,
		Cbor:     slices.Clone(txBytes),
		LastSeen: time.Now(),
	}
	m.Lock()
	defer m.Unlock()
	if m.stopped {
		return "", ErrStopped
	}
	if existingTx := m.getTransaction(mempoolTx.Hash); existingTx != nil {
		existingTx.LastSeen = time.Now()
		m.metrics.txsRejectedNum.WithLabelValues("duplicate").Inc()
		return "", fmt.Errorf("%w: %s", ErrDuplicateTx, mempoolTx.Hash)
	}
	// Enforce mempool capacity
	if len(m.transactions)+1 > m.config.MaxTxs ||
		m.currentBytes+int64(len(mempoolTx.Cbor)) > m.config.MaxBytes {
		m.metrics.txsRejectedNum.WithLabelValues("full").Inc()
		return "", &MempoolFullError{
			CurrentCount: len(m.transactions),
			CurrentSize:  m.currentBytes,
			TxSize:       len(mempoolTx.Cbor),
			MaxTxs:       m.config.MaxTxs,
			Capacity:     m.config.MaxBytes,
		}
	}
	// Add transaction record
	m.transactions = append(m.transactions, &mempoolTx)
	m.currentBytes += int64(len(mempoolTx.Cbor))
	m.logger.Debug(
		"added transaction",
		"tx_hash", mempoolTx.Hash,
		"sender", sender,
		"kind", tmpTx.Kind,
	)
	m.metrics.txsProcessedNum.Inc()
	m.metrics.txsInMempool.Inc()
	m.metrics.mempoolBytes.Add(float64(len(mempoolTx.Cbor)))
	// Generate event
	m.publish(
		AddTransactionEventType,
		AddTransactionEvent{
			Hash:   mempoolTx.Hash,
			Sender: sender,
			Kind:   string(tmpTx.Kind),
			Nonce:  tmpTx.Nonce,
		},
	)
	return mempoolTx.Hash, nil
}

func (m *Mempool) GetTransaction(txHash string) (MempoolTransaction, bool) {
	m.RLock()
	defer m.RUnlock()
	ret := m.getTransaction(txHash)
	if ret == nil {
		return MempoolTransaction{}, false
	}
	return *ret, true
}

// Transactions returns copies of the pending transactions in arrival order
func (m *Mempool) Transactions() []MempoolTransaction {
	m.RLock()
	defer m.RUnlock()
	ret := make([]MempoolTransaction, len(m.transactions))
	for i := range m.transactions {
		ret[i] = *m.transactions[i]
	}
	return ret
}

// Pending returns up to limit of the oldest pending transactions
func (m *Mempool) Pending(limit int) []MempoolTransaction {
	m.RLock()
	defer m.RUnlock()
	count := len(m.transactions)
	if limit > 0 {
		count = min(count, limit)
	}
	ret := make([]MempoolTransaction, count)
	for i := range count {
		ret[i] = *m.transactions[i]
	}
	return ret
}

func (m *Mempool) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.transactions)
}

func (m *Mempool) getTransaction(txHash string) *MempoolTransaction {
	for _, tx := range m.transactions {
		if tx.Hash == txHash {
			return tx
		}
	}
	return nil
}

func (m *Mempool) RemoveTransaction(txHash string) {
	m.Lock()
	defer m.Unlock()
	if m.removeTransaction(txHash) {
		m.logger.Debug(
			"removed transaction",
			"tx_hash", txHash,
		)
	}
}

// RemoveTransactions removes every listed transaction that is still pending
func (m *Mempool) RemoveTransactions(txHashes []string) {
	m.Lock()
	defer m.Unlock()
	for _, txHash := range txHashes {
		m.removeTransaction(txHash)
	}
}

// Revalidate drops pending transactions that no longer pass validation,
// such as those whose nonce was consumed by an included transaction
func (m *Mempool) Revalidate() {
	m.Lock()
	defer m.Unlock()
	// We iterate backward to avoid issues with shifting indexes when deleting
	for i := len(m.transactions) - 1; i >= 0; i-- {
		mempoolTx := m.transactions[i]
		if _, err := m.validator.ValidateTx(mempoolTx.Tx); err != nil {
			m.removeTransactionByIndex(i)
			m.logger.Debug(
				"removed transaction after re-validation failure",
				"tx_hash", mempoolTx.Hash,
				"error", err,
			)
		}
	}
}

func (m *Mempool) removeTransaction(txHash string) bool {
	for txIdx, tx := range m.transactions {
		if tx.Hash == txHash {
			return m.removeTransactionByIndex(txIdx)
		}
	}
	return false
}

func (m *Mempool) removeTransactionByIndex(txIdx int) bool {
	if txIdx >= len(m.transactions) {
		return false
	}
	mempoolTx := m.transactions[txIdx]
	m.transactions = slices.Delete(
		m.transactions,
		txIdx,
		txIdx+1,
	)
	m.currentBytes -= int64(len(mempoolTx.Cbor))
	m.metrics.txsInMempool.Dec()
	m.metrics.mempoolBytes.Sub(float64(len(mempoolTx.Cbor)))
	// Generate event
	m.publish(
		RemoveTransactionEventType,
		RemoveTransactionEvent{
			Hash: mempoolTx.Hash,
		},
	)
	return true
}

func (m *Mempool) publish(eventType event.EventType, data any) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
