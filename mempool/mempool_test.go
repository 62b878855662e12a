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
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/tx"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockValidator is a test validator that can be configured to pass or fail
type mockValidator struct {
	failHashes map[string]bool
	mu         sync.Mutex
	failAll    bool
}

func newMockValidator() *mockValidator {
	return &mockValidator{
		failHashes: make(map[string]bool),
	}
}

func (v *mockValidator) ValidateTx(t *tx.Tx) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failAll {
		return "", errors.New("validation disabled")
	}
	if v.failHashes[t.HashHex()] {
		return "", fmt.Errorf("validation failed for %s", t.HashHex())
	}
	return t.Sender()
}

func (v *mockValidator) setFailHash(hash string, fail bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failHashes[hash] = fail
}

func (v *mockValidator) setFailAll(fail bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failAll = fail
}

type testMempool struct {
	*Mempool
	validator *mockValidator
	registry  *prometheus.Registry
	bus       *event.EventBus
}

// newTestMempool creates a mempool configured for testing
func newTestMempool(t *testing.T, maxTxs int, maxBytes int64) *testMempool {
	t.Helper()
	v := newMockValidator()
	reg := prometheus.NewRegistry()
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	m, err := NewMempool(MempoolConfig{
		Logger:       slog.New(slog.NewJSONHandler(io.Discard, nil)),
		EventBus:     bus,
		PromRegistry: reg,
		Validator:    v,
		MaxTxs:       maxTxs,
		MaxBytes:     maxBytes,
	})
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return &testMempool{
		Mempool:   m,
		validator: v,
		registry:  reg,
		bus:       bus,
	}
}

// signedFaucetTx builds an encoded faucet transaction from a fresh key
func signedFaucetTx(t *testing.T, nonce uint64) ([]byte, string) {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	tmpTx, err := tx.New(tx.KindFaucet, nonce, &tx.Faucet{})
	require.NoError(t, err)
	require.NoError(t, tmpTx.Sign(key))
	raw, err := tmpTx.Encode()
	require.NoError(t, err)
	return raw, tmpTx.HashHex()
}

func TestNewMempoolRequiresValidator(t *testing.T) {
	_, err := NewMempool(MempoolConfig{})
	require.Error(t, err)
}

func TestMempool_AddTransaction(t *testing.T) {
	m := newTestMempool(t, 0, 0)
	_, events := m.bus.Subscribe(AddTransactionEventType)
	raw, expectedHash := signedFaucetTx(t, 0)

	hash, err := m.AddTransaction(raw)
	require.NoError(t, err)
	assert.Equal(t, expectedHash, hash)
	assert.Equal(t, 1, m.Len())

	pending, ok := m.GetTransaction(hash)
	require.True(t, ok)
	assert.Equal(t, raw, pending.Cbor)
	assert.Equal(t, tx.KindFaucet, pending.Tx.Kind)
	sender, err := pending.Tx.Sender()
	require.NoError(t, err)
	assert.Equal(t, sender, pending.Sender)

	select {
	case evt := <-events:
		data, ok := evt.Data.(AddTransactionEvent)
		require.True(t, ok)
		assert.Equal(t, hash, data.Hash)
		assert.Equal(t, sender, data.Sender)
		assert.Equal(t, "faucet", data.Kind)
	default:
		t.Fatal("expected add event")
	}

	assert.InDelta(t, 1, testutil.ToFloat64(m.metrics.txsInMempool), 0)
	assert.InDelta(t, float64(len(raw)), testutil.ToFloat64(m.metrics.mempoolBytes), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.metrics.txsProcessedNum), 0)
}

func TestMempool_AddTransaction_Malformed(t *testing.T) {
	m := newTestMempool(t, 0, 0)
	_, err := m.AddTransaction([]byte{0x01, 0x02})
	require.Error(t, err)

	// Unsigned transactions never reach the validator
	unsigned, err := tx.New(tx.KindFaucet, 0, &tx.Faucet{})
	require.NoError(t, err)
	raw, err := unsigned.Encode()
	require.NoError(t, err)
	_, err = m.AddTransaction(raw)
	require.ErrorIs(t, err, tx.ErrInvalidSignature)
	assert.Zero(t, m.Len())
	assert.InDelta(
		t,
		2,
		testutil.ToFloat64(m.metrics.txsRejectedNum.WithLabelValues("decode")),
		0,
	)
}

func TestMempool_AddTransaction_ValidationFailure(t *testing.T) {
	m := newTestMempool(t, 0, 0)
	raw, hash := signedFaucetTx(t, 0)
	m.validator.setFailHash(hash, true)
	_, err := m.AddTransaction(raw)
	require.Error(t, err)
	assert.Zero(t, m.Len())
}

func TestMempool_AddTransaction_DuplicateUpdatesLastSeen(t *testing.T) {
	m := newTestMempool(t, 0, 0)
	raw, _ := signedFaucetTx(t, 0)
	hash, err := m.AddTransaction(raw)
	require.NoError(t, err)
	first, ok := m.GetTransaction(hash)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	_, err = m.AddTransaction(raw)
	require.ErrorIs(t, err, ErrDuplicateTx)
	assert.Equal(t, 1, m.Len())
	second, ok := m.GetTransaction(hash)
	require.True(t, ok)
	assert.True(t, second.LastSeen.After(first.LastSeen))
}

func TestMempool_MempoolFull(t *testing.T) {
	m := newTestMempool(t, 2, 0)
	for i := range 2 {
		raw, _ := signedFaucetTx(t, uint64(i))
		_, err := m.AddTransaction(raw)
		require.NoError(t, err)
	}
	raw, _ := signedFaucetTx(t, 0)
	_, err := m.AddTransaction(raw)
	var fullErr *MempoolFullError
	require.ErrorAs(t, err, &fullErr)
	assert.Equal(t, 2, fullErr.CurrentCount)
	assert.Equal(t, 2, fullErr.MaxTxs)
	assert.Equal(t, 2, m.Len())
}

func TestMempool_MempoolFullBytes(t *testing.T) {
	raw, _ := signedFaucetTx(t, 0)
	m := newTestMempool(t, 0, int64(len(raw))+1)
	_, err := m.AddTransaction(raw)
	require.NoError(t, err)
	raw2, _ := signedFaucetTx(t, 0)
	_, err = m.AddTransaction(raw2)
	var fullErr *MempoolFullError
	require.ErrorAs(t, err, &fullErr)
	assert.Equal(t, len(raw2), fullErr.TxSize)
}

func TestMempool_PendingIsFIFO(t *testing.T) {
	m := newTestMempool(t, 0, 0)
	var hashes []string
	for range 5 {
		raw, _ := signedFaucetTx(t, 0)
		hash, err := m.AddTransaction(raw)
		require.NoError(t, err)
		hashes = append(hashes, hash)
	}
	pending := m.Pending(3)
	require.Len(t, pending, 3)
	for i := range pending {
		assert.Equal(t, hashes[i], pending[i].Hash)
	}
	assert.Len(t, m.Pending(0), 5)
	assert.Len(t, m.Transactions(), 5)
}

func TestMempool_Transactions_ReturnsCopies(t *testing.T) {
	m := newTestMempool(t, 0, 0)
	raw, _ := signedFaucetTx(t, 0)
	hash, err := m.AddTransaction(raw)
	require.NoError(t, err)
	txs := m.Transactions()
	txs[0].Hash = "modified"
	_, ok := m.GetTransaction(hash)
	assert.True(t, ok)
}

func TestMempool_RemoveTransactions(t *testing.T) {
	m := newTestMempool(t, 0, 0)
	_, events := m.bus.Subscribe(RemoveTransactionEventType)
	var hashes []string
	for range 3 {
		raw, _ := signedFaucetTx(t, 0)
		hash, err := m.AddTransaction(raw)
		require.NoError(t, err)
		hashes = append(hashes, hash)
	}
	m.RemoveTransactions([]string{hashes[0], hashes[2], "unknown"})
	assert.Equal(t, 1, m.Len())
	_, ok := m.GetTransaction(hashes[1])
	assert.True(t, ok)
	assert.Len(t, events, 2)

	m.RemoveTransaction(hashes[1])
	assert.Zero(t, m.Len())
	assert.InDelta(t, 0, testutil.ToFloat64(m.metrics.mempoolBytes), 0)
}

func TestMempool_Revalidate(t *testing.T) {
	m := newTestMempool(t, 0, 0)
	var hashes []string
	for range 3 {
		raw, _ := signedFaucetTx(t, 0)
		hash, err := m.AddTransaction(raw)
		require.NoError(t, err)
		hashes = append(hashes, hash)
	}
	m.validator.setFailHash(hashes[1], true)
	m.Revalidate()
	pending := m.Pending(0)
	require.Len(t, pending, 2)
	assert.Equal(t, hashes[0], pending[0].Hash)
	assert.Equal(t, hashes[2], pending[1].Hash)

	m.validator.setFailAll(true)
	m.Revalidate()
	assert.Zero(t, m.Len())
}

func TestMempool_Stop(t *testing.T) {
	m := newTestMempool(t, 0, 0)
	raw, _ := signedFaucetTx(t, 0)
	_, err := m.AddTransaction(raw)
	require.NoError(t, err)
	m.Stop()
	assert.Zero(t, m.Len())
	raw2, _ := signedFaucetTx(t, 0)
	_, err = m.AddTransaction(raw2)
	require.ErrorIs(t, err, ErrStopped)
	// Stopping twice is harmless
	m.Stop()
}

func TestMempool_ConcurrentAddRemove(t *testing.T) {
	m := newTestMempool(t, 0, 0)
	var wg sync.WaitGroup
	hashCh := make(chan string, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, _ := signedFaucetTx(t, 0)
			hash, err := m.AddTransaction(raw)
			if err == nil {
				hashCh <- hash
			}
		}()
	}
	wg.Wait()
	close(hashCh)
	assert.Equal(t, 50, m.Len())
	for hash := range hashCh {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RemoveTransaction(hash)
		}()
	}
	wg.Wait()
	assert.Zero(t, m.Len())
}
