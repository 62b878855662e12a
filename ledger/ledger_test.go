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

package ledger_test

import (
	"testing"
	"time"

	"github.com/blinklabs-io/agora/database"
	_ "github.com/blinklabs-io/agora/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/agora/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/blinklabs-io/agora/tx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminAddr    = "0xadadadadadadadadadadadadadadadadadadadad"
	proposerAddr = "0x1111111111111111111111111111111111111111"
	voterA       = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	voterB       = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	voterC       = "0xcccccccccccccccccccccccccccccccccccccccc"
	day          = 24 * time.Hour
)

var genesisTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type testLedger struct {
	*ledger.Ledger
	clock *ledger.ManualClock
	bus   *event.EventBus
	db    *database.Database
}

func testParams() *ledger.Params {
	params := ledger.DefaultParams()
	params.Admin = adminAddr
	params.Genesis = []ledger.GenesisAllocation{
		{Address: proposerAddr, Balance: 100_000, Experience: 1500},
		{Address: voterA, Balance: 10_000},
		{Address: voterB, Balance: 10_000},
	}
	return &params
}

func newTestLedger(t *testing.T, params *ledger.Params) *testLedger {
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
	clock := ledger.NewManualClock(genesisTime)
	if params == nil {
		params = testParams()
	}
	l, err := ledger.New(ledger.LedgerConfig{
		Database:     db,
		EventBus:     bus,
		PromRegistry: prometheus.NewRegistry(),
		Clock:        clock,
		Params:       params,
	})
	require.NoError(t, err)
	return &testLedger{Ledger: l, clock: clock, bus: bus, db: db}
}

// openProposal creates a two-option proposal from the genesis proposer
func (tl *testLedger) openProposal(t *testing.T) uint64 {
	t.Helper()
	require.NoError(t, tl.Stake(proposerAddr, 1000, 30))
	id, err := tl.CreateProposal(
		proposerAddr,
		"Fund the grants program",
		"Allocate treasury funds",
		[]string{"For", "Against"},
		2,
		false,
	)
	require.NoError(t, err)
	return id
}

func TestGenesis(t *testing.T) {
	tl := newTestLedger(t, nil)
	supply, err := tl.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, uint64(120_000), supply)
	balance, err := tl.BalanceOf(proposerAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), balance)
	rank, err := tl.GetUserRank(proposerAddr)
	require.NoError(t, err)
	assert.Equal(t, ledger.RankCouncil, rank)

	// Reopening the ledger on the same database does not mint again
	l2, err := ledger.New(ledger.LedgerConfig{
		Database: tl.db,
		Clock:    tl.clock,
		Params:   testParams(),
	})
	require.NoError(t, err)
	supply, err = l2.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, uint64(120_000), supply)
}

func TestInvalidParams(t *testing.T) {
	params := testParams()
	params.RankMultipliers = []uint32{100, 120}
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	defer db.Close()
	_, err = ledger.New(ledger.LedgerConfig{Database: db, Params: params})
	assert.Error(t, err)

	params = testParams()
	params.MaxSupply = 50_000
	_, err = ledger.New(ledger.LedgerConfig{Database: db, Params: params})
	assert.ErrorIs(t, err, ledger.ErrMaxSupply)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "AlreadyVoted", ledger.ErrorCode(ledger.ErrAlreadyVoted))
	assert.Equal(t, "", ledger.ErrorCode(nil))
	assert.False(t, ledger.IsRuleViolation(assert.AnError))
	tl := newTestLedger(t, nil)
	_, err := tl.GetProposal(42)
	assert.Equal(t, "NotFound", ledger.ErrorCode(err))
}

func TestFailedOperationLeavesStateUntouched(t *testing.T) {
	tl := newTestLedger(t, nil)
	_, events := tl.bus.Subscribe(event.AllEvents)
	// The voter has no stake, so the vote fails after the proposal and
	// account have been read
	id := tl.openProposal(t)
	drain(events)
	err := tl.Vote(id, voterC, ledger.OptionFor)
	require.ErrorIs(t, err, ledger.ErrNoVotingPower)
	vote, err := tl.GetUserVote(id, voterC)
	require.NoError(t, err)
	assert.False(t, vote.HasVoted)
	stats, err := tl.GetUserStats(voterC)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVotes)
	select {
	case evt := <-events:
		t.Fatalf("unexpected event after failed operation: %s", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	tl := newTestLedger(t, nil)
	_, events := tl.bus.Subscribe(ledger.ProposalCreatedEventType)
	id := tl.openProposal(t)
	select {
	case evt := <-events:
		data, ok := evt.Data.(ledger.ProposalCreatedEvent)
		require.True(t, ok)
		assert.Equal(t, id, data.ProposalId)
		assert.Equal(t, proposerAddr, data.Proposer)
		assert.Equal(t, genesisTime, evt.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for ProposalCreated event")
	}
}

func drain(ch <-chan event.Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestFaucet(t *testing.T) {
	tl := newTestLedger(t, nil)
	ok, remaining, err := tl.CanUseFaucet(voterC)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, remaining)
	require.NoError(t, tl.Faucet(voterC))
	err = tl.Faucet(voterC)
	require.ErrorIs(t, err, ledger.ErrFaucetCooldown)
	tl.clock.Advance(30 * time.Minute)
	ok, remaining, err = tl.CanUseFaucet(voterC)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1800), remaining)
	tl.clock.Advance(30 * time.Minute)
	require.NoError(t, tl.Faucet(voterC))
	balance, err := tl.BalanceOf(voterC)
	require.NoError(t, err)
	assert.Equal(t, uint64(20_000), balance)
}

func TestFaucetMaxSupply(t *testing.T) {
	params := testParams()
	params.MaxSupply = 125_000
	tl := newTestLedger(t, params)
	err := tl.Faucet(voterC)
	require.ErrorIs(t, err, ledger.ErrMaxSupply)
	balance, err := tl.BalanceOf(voterC)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestTransferAndAllowance(t *testing.T) {
	tl := newTestLedger(t, nil)
	require.NoError(t, tl.Transfer(voterA, voterC, 2500))
	err := tl.Transfer(voterC, voterA, 5000)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	require.ErrorIs(t, tl.Transfer(voterA, voterC, 0), ledger.ErrInvalidAmount)
	require.ErrorIs(t, tl.Transfer(voterA, "bogus", 1), tx.ErrInvalidAddress)

	require.NoError(t, tl.Approve(voterA, voterB, 1000))
	allowance, err := tl.Allowance(voterA, voterB)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), allowance)
	err = tl.TransferFrom(voterB, voterA, voterC, 1500)
	require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)
	require.NoError(t, tl.TransferFrom(voterB, voterA, voterC, 600))
	allowance, err = tl.Allowance(voterA, voterB)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), allowance)

	balanceA, err := tl.BalanceOf(voterA)
	require.NoError(t, err)
	balanceC, err := tl.BalanceOf(voterC)
	require.NoError(t, err)
	assert.Equal(t, uint64(6900), balanceA)
	assert.Equal(t, uint64(3100), balanceC)

	// Self transfers leave the balance unchanged
	require.NoError(t, tl.Transfer(voterC, voterC, 100))
	balanceC, err = tl.BalanceOf(voterC)
	require.NoError(t, err)
	assert.Equal(t, uint64(3100), balanceC)
}

func TestAddressesAreNormalized(t *testing.T) {
	tl := newTestLedger(t, nil)
	upper := "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	balance, err := tl.BalanceOf(upper)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), balance)
}
