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

package chain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blinklabs-io/agora/chain"
	"github.com/blinklabs-io/agora/database"
	"github.com/blinklabs-io/agora/database/models"
	_ "github.com/blinklabs-io/agora/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/agora/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/blinklabs-io/agora/mempool"
	"github.com/blinklabs-io/agora/tx"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var genesisTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type testNode struct {
	db       *database.Database
	bus      *event.EventBus
	clock    *ledger.ManualClock
	ledger   *ledger.Ledger
	mempool  *mempool.Mempool
	chain    *chain.Chain
	producer *chain.Producer
	key      *secp256k1.PrivateKey
	sender   string
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()
	db, err := database.New(&database.Config{
		PromRegistry:      prometheus.NewRegistry(),
		BlockCacheSize:    8,
		ProposalCacheSize: 8,
	})
	require.NoError(t, err)
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(func() {
		bus.Stop()
		_ = db.Close()
	})
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	sender := tx.AddressFromPubKey(key.PubKey())
	params := ledger.DefaultParams()
	params.Genesis = []ledger.GenesisAllocation{
		{Address: sender, Balance: 5000},
	}
	clock := ledger.NewManualClock(genesisTime)
	l, err := ledger.New(ledger.LedgerConfig{
		Database:     db,
		EventBus:     bus,
		PromRegistry: prometheus.NewRegistry(),
		Clock:        clock,
		Params:       &params,
	})
	require.NoError(t, err)
	mp, err := mempool.NewMempool(mempool.MempoolConfig{
		EventBus:     bus,
		PromRegistry: prometheus.NewRegistry(),
		Validator:    l,
	})
	require.NoError(t, err)
	t.Cleanup(mp.Stop)
	c, err := chain.NewChain(db, bus)
	require.NoError(t, err)
	p, err := chain.NewProducer(chain.ProducerConfig{
		PromRegistry: prometheus.NewRegistry(),
		Chain:        c,
		Ledger:       l,
		Mempool:      mp,
		Clock:        clock,
		MaxBlockTxs:  3,
	})
	require.NoError(t, err)
	return &testNode{
		db:       db,
		bus:      bus,
		clock:    clock,
		ledger:   l,
		mempool:  mp,
		chain:    c,
		producer: p,
		key:      key,
		sender:   sender,
	}
}

func (tn *testNode) submit(
	t *testing.T,
	kind tx.Kind,
	nonce uint64,
	payload any,
) []byte {
	t.Helper()
	tmpTx, err := tx.New(kind, nonce, payload)
	require.NoError(t, err)
	require.NoError(t, tmpTx.Sign(tn.key))
	raw, err := tmpTx.Encode()
	require.NoError(t, err)
	_, err = tn.mempool.AddTransaction(raw)
	require.NoError(t, err)
	return tmpTx.Hash()
}

func TestProduceBlock(t *testing.T) {
	tn := newTestNode(t)
	_, blockEvents := tn.bus.Subscribe(chain.BlockEventType)
	recipient := "0x2222222222222222222222222222222222222222"

	produced, err := tn.producer.ProduceBlock()
	require.NoError(t, err)
	assert.False(t, produced)
	_, ok := tn.chain.Tip()
	assert.False(t, ok)

	okHash := tn.submit(t, tx.KindTransfer, 0, &tx.Transfer{To: recipient, Amount: 1000})
	failHash := tn.submit(t, tx.KindTransfer, 1, &tx.Transfer{To: recipient, Amount: 1_000_000})
	tn.clock.Advance(time.Minute)
	produced, err = tn.producer.ProduceBlock()
	require.NoError(t, err)
	assert.True(t, produced)
	assert.Zero(t, tn.mempool.Len())

	tip, ok := tn.chain.Tip()
	require.True(t, ok)
	assert.Equal(t, uint64(1), tip.Height)
	assert.Equal(t, uint32(2), tip.TxCount)
	assert.Equal(t, genesisTime.Add(time.Minute).Unix(), tip.Timestamp)
	assert.Empty(t, tip.PrevHash)

	status, err := tn.chain.TxStatus(okHash)
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.Equal(t, uint64(1), status.BlockHeight)
	assert.Equal(t, uint32(0), status.Index)
	assert.Equal(t, uint64(1), status.Confirmations)
	assert.Equal(t, tn.sender, status.Sender)
	assert.Equal(t, "transfer", status.Kind)

	status, err = tn.chain.TxStatus(failHash)
	require.NoError(t, err)
	assert.False(t, status.Success)
	assert.Equal(t, "InsufficientBalance", status.ErrorCode)
	assert.Equal(t, uint32(1), status.Index)

	balance, err := tn.ledger.BalanceOf(recipient)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), balance)
	nonce, err := tn.ledger.NextNonce(tn.sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)

	body, err := tn.chain.BlockBody(1)
	require.NoError(t, err)
	require.Len(t, body.Txs, 2)
	raw, err := tn.db.GetTx(okHash, nil)
	require.NoError(t, err)
	assert.Equal(t, body.Txs[0], raw)
	hash, err := body.Hash()
	require.NoError(t, err)
	assert.Equal(t, tip.Hash, hash)

	select {
	case evt := <-blockEvents:
		data, ok := evt.Data.(chain.BlockEvent)
		require.True(t, ok)
		assert.Equal(t, uint64(1), data.Height)
		assert.Equal(t, uint32(2), data.TxCount)
	default:
		t.Fatal("expected block event")
	}

	// Confirmations grow as blocks are added on top
	tn.submit(t, tx.KindStake, 2, &tx.Stake{Amount: 100, LockDays: 30})
	_, err = tn.producer.ProduceBlock()
	require.NoError(t, err)
	status, err = tn.chain.TxStatus(okHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), status.Confirmations)
	block2, err := tn.chain.Block(2)
	require.NoError(t, err)
	assert.Equal(t, tip.Hash, block2.PrevHash)
}

func TestProduceBlockRespectsLimit(t *testing.T) {
	tn := newTestNode(t)
	for nonce := range uint64(5) {
		tn.submit(t, tx.KindApprove, nonce, &tx.Approve{
			Spender: "0x3333333333333333333333333333333333333333",
			Amount:  nonce,
		})
	}
	_, err := tn.producer.ProduceBlock()
	require.NoError(t, err)
	tip, _ := tn.chain.Tip()
	assert.Equal(t, uint32(3), tip.TxCount)
	assert.Equal(t, 2, tn.mempool.Len())
	_, err = tn.producer.ProduceBlock()
	require.NoError(t, err)
	tip, _ = tn.chain.Tip()
	assert.Equal(t, uint64(2), tip.Height)
	assert.Equal(t, uint32(2), tip.TxCount)
	assert.Zero(t, tn.mempool.Len())
}

func TestProduceBlockDropsStaleNonces(t *testing.T) {
	tn := newTestNode(t)
	recipient := "0x4444444444444444444444444444444444444444"
	tn.submit(t, tx.KindTransfer, 0, &tx.Transfer{To: recipient, Amount: 1})
	// Same nonce, different payload: admitted, but stale once the first lands
	tn.submit(t, tx.KindTransfer, 0, &tx.Transfer{To: recipient, Amount: 2})
	produced, err := tn.producer.ProduceBlock()
	require.NoError(t, err)
	assert.True(t, produced)
	tip, _ := tn.chain.Tip()
	assert.Equal(t, uint32(2), tip.TxCount)
	balance, err := tn.ledger.BalanceOf(recipient)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), balance)
	// The second transaction is recorded as a nonce failure
	nonce, err := tn.ledger.NextNonce(tn.sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestProduceBlockAfterFailedWrite(t *testing.T) {
	tn := newTestNode(t)
	recipient := "0x5555555555555555555555555555555555555555"
	applied, err := tx.New(tx.KindTransfer, 0, &tx.Transfer{To: recipient, Amount: 1000})
	require.NoError(t, err)
	require.NoError(t, applied.Sign(tn.key))
	raw, err := applied.Encode()
	require.NoError(t, err)
	_, err = tn.mempool.AddTransaction(raw)
	require.NoError(t, err)
	// Apply the transaction with a receipt for a block that was never
	// written, as left behind when storing the block fails
	_, err = tn.ledger.ApplyTx(
		applied,
		genesisTime,
		func(txn *database.Txn, result ledger.ApplyResult) error {
			return tn.db.AddReceipt(&models.Receipt{
				TxHash:      applied.Hash(),
				Sender:      result.Sender,
				Kind:        string(applied.Kind),
				Nonce:       applied.Nonce,
				BlockHeight: 1,
				Index:       2,
				Success:     result.Err == nil,
			}, txn)
		},
	)
	require.NoError(t, err)
	nextHash := tn.submit(t, tx.KindTransfer, 1, &tx.Transfer{To: recipient, Amount: 500})

	produced, err := tn.producer.ProduceBlock()
	require.NoError(t, err)
	assert.True(t, produced)
	assert.Zero(t, tn.mempool.Len())
	tip, ok := tn.chain.Tip()
	require.True(t, ok)
	assert.Equal(t, uint64(1), tip.Height)
	assert.Equal(t, uint32(2), tip.TxCount)
	body, err := tn.chain.BlockBody(1)
	require.NoError(t, err)
	require.Len(t, body.Txs, 2)
	assert.Equal(t, raw, body.Txs[0])

	status, err := tn.chain.TxStatus(applied.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), status.BlockHeight)
	assert.Equal(t, uint32(0), status.Index)
	status, err = tn.chain.TxStatus(nextHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), status.BlockHeight)
	assert.Equal(t, uint32(1), status.Index)
	receipts, err := tn.db.GetReceiptsByBlock(1, nil)
	require.NoError(t, err)
	assert.Len(t, receipts, 2)

	// The transaction was not applied a second time
	balance, err := tn.ledger.BalanceOf(recipient)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), balance)
}

func TestAddBlockFitsTip(t *testing.T) {
	tn := newTestNode(t)
	_, err := tn.chain.AddBlock(&chain.Block{Height: 2, Timestamp: 1})
	var fitErr *chain.TipMismatchError
	require.ErrorAs(t, err, &fitErr)
	assert.Equal(t, uint64(2), fitErr.Height)
	assert.Equal(t, uint64(1), fitErr.ExpectedHeight)
	assert.ErrorIs(t, err, chain.ErrTipMismatch)

	first, err := tn.chain.AddBlock(tn.chain.NextBlock(genesisTime))
	require.NoError(t, err)
	_, err = tn.chain.AddBlock(&chain.Block{Height: 2, PrevHash: []byte{0x01}})
	require.ErrorAs(t, err, &fitErr)
	second := tn.chain.NextBlock(genesisTime)
	assert.Equal(t, first.Hash, second.PrevHash)
	_, err = tn.chain.AddBlock(second)
	require.NoError(t, err)

	// Reloading picks up the persisted tip
	c2, err := chain.NewChain(tn.db, nil)
	require.NoError(t, err)
	tip, ok := c2.Tip()
	require.True(t, ok)
	assert.Equal(t, uint64(2), tip.Height)
}

func TestTxStatusNotFound(t *testing.T) {
	tn := newTestNode(t)
	_, err := tn.chain.TxStatus([]byte{0x01})
	require.ErrorIs(t, err, models.ErrReceiptNotFound)
	_, err = tn.chain.Block(1)
	require.ErrorIs(t, err, models.ErrBlockNotFound)
}

func TestProducerStartStop(t *testing.T) {
	tn := newTestNode(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	p, err := chain.NewProducer(chain.ProducerConfig{
		PromRegistry:  prometheus.NewRegistry(),
		Chain:         tn.chain,
		Ledger:        tn.ledger,
		Mempool:       tn.mempool,
		BlockInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	iter := tn.chain.FromHeight(0)
	require.NoError(t, p.Start(context.Background()))
	require.ErrorIs(t, p.Start(context.Background()), chain.ErrProducerRunning)
	assert.True(t, p.IsRunning())
	tn.submit(t, tx.KindFaucet, 0, &tx.Faucet{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := iter.Next(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Block.Height)
	p.Stop()
	assert.False(t, p.IsRunning())
	// Stopping twice is harmless
	p.Stop()
}

func TestIterator(t *testing.T) {
	tn := newTestNode(t)
	for range 3 {
		_, err := tn.chain.AddBlock(tn.chain.NextBlock(genesisTime))
		require.NoError(t, err)
	}
	iter := tn.chain.FromHeight(2)
	result, err := iter.Next(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Block.Height)
	result, err = iter.Next(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), result.Block.Height)
	_, err = iter.Next(context.Background(), false)
	require.ErrorIs(t, err, chain.ErrIteratorChainTip)

	// A blocking call returns once a block arrives
	done := make(chan error, 1)
	go func() {
		result, err := iter.Next(context.Background(), true)
		if err == nil && result.Block.Height != 4 {
			err = errors.New("unexpected block height")
		}
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_, err = tn.chain.AddBlock(tn.chain.NextBlock(genesisTime))
	require.NoError(t, err)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("iterator did not wake up")
	}

	// A blocking call ends with its context
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = iter.Next(ctx, true)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
