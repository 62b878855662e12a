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

	"github.com/blinklabs-io/agora/database"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/blinklabs-io/agora/tx"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTx(
	t *testing.T,
	key *secp256k1.PrivateKey,
	kind tx.Kind,
	nonce uint64,
	payload any,
) *tx.Tx {
	t.Helper()
	ret, err := tx.New(kind, nonce, payload)
	require.NoError(t, err)
	require.NoError(t, ret.Sign(key))
	return ret
}

type recorder struct {
	results []ledger.ApplyResult
}

func (r *recorder) record(txn *database.Txn, result ledger.ApplyResult) error {
	r.results = append(r.results, result)
	return nil
}

func TestApplyTx(t *testing.T) {
	tl := newTestLedger(t, nil)
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	sender := tx.AddressFromPubKey(key.PubKey())
	rec := &recorder{}

	result, err := tl.ApplyTx(
		signedTx(t, key, tx.KindFaucet, 0, &tx.Faucet{}),
		tl.Now(),
		rec.record,
	)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.Equal(t, sender, result.Sender)
	balance, err := tl.BalanceOf(sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), balance)
	nonce, err := tl.NextNonce(sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)

	// A rule failure consumes the nonce and nothing else
	result, err = tl.ApplyTx(
		signedTx(t, key, tx.KindTransfer, 1, &tx.Transfer{To: voterA, Amount: 50_000}),
		tl.Now(),
		rec.record,
	)
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, ledger.ErrInsufficientBalance)
	assert.Equal(t, "InsufficientBalance", result.Code)
	nonce, err = tl.NextNonce(sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)
	balance, err = tl.BalanceOf(sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), balance)

	// A wrong nonce does not consume one
	result, err = tl.ApplyTx(
		signedTx(t, key, tx.KindTransfer, 5, &tx.Transfer{To: voterA, Amount: 1}),
		tl.Now(),
		rec.record,
	)
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, ledger.ErrInvalidNonce)
	nonce, err = tl.NextNonce(sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), nonce)

	result, err = tl.ApplyTx(
		signedTx(t, key, tx.KindStake, 2, &tx.Stake{Amount: 1000, LockDays: 30}),
		tl.Now(),
		rec.record,
	)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	staked, err := tl.StakedAmount(sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), staked)

	require.Len(t, rec.results, 4)
	assert.Empty(t, rec.results[0].Code)
	assert.Equal(t, "InsufficientBalance", rec.results[1].Code)
	assert.Equal(t, "InvalidNonce", rec.results[2].Code)
	assert.Empty(t, rec.results[3].Code)
}

func TestApplyTxUnsigned(t *testing.T) {
	tl := newTestLedger(t, nil)
	unsigned, err := tx.New(tx.KindFaucet, 0, &tx.Faucet{})
	require.NoError(t, err)
	rec := &recorder{}
	result, err := tl.ApplyTx(unsigned, tl.Now(), rec.record)
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, tx.ErrInvalidSignature)
	assert.Empty(t, result.Sender)
	require.Len(t, rec.results, 1)
}

func TestApplyTxRecordFailure(t *testing.T) {
	tl := newTestLedger(t, nil)
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	sender := tx.AddressFromPubKey(key.PubKey())
	_, err = tl.ApplyTx(
		signedTx(t, key, tx.KindFaucet, 0, &tx.Faucet{}),
		tl.Now(),
		func(*database.Txn, ledger.ApplyResult) error {
			return assert.AnError
		},
	)
	require.ErrorIs(t, err, assert.AnError)
	// The storage failure rolled the operation back
	balance, err := tl.BalanceOf(sender)
	require.NoError(t, err)
	assert.Zero(t, balance)
	nonce, err := tl.NextNonce(sender)
	require.NoError(t, err)
	assert.Zero(t, nonce)
}

func TestApplyTxAtBlockTime(t *testing.T) {
	tl := newTestLedger(t, nil)
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	sender := tx.AddressFromPubKey(key.PubKey())
	at := genesisTime.Add(3 * day)
	result, err := tl.ApplyTx(signedTx(t, key, tx.KindFaucet, 0, &tx.Faucet{}), at, nil)
	require.NoError(t, err)
	require.NoError(t, result.Err)
	stats, err := tl.GetUserStats(sender)
	require.NoError(t, err)
	assert.Equal(t, at.Unix(), stats.LastActivity)
}

func TestValidateTx(t *testing.T) {
	tl := newTestLedger(t, nil)
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	sender, err := tl.ValidateTx(signedTx(t, key, tx.KindFaucet, 3, &tx.Faucet{}))
	require.NoError(t, err)
	assert.Equal(t, tx.AddressFromPubKey(key.PubKey()), sender)

	_, err = tl.ApplyTx(signedTx(t, key, tx.KindFaucet, 0, &tx.Faucet{}), tl.Now(), nil)
	require.NoError(t, err)
	_, err = tl.ValidateTx(signedTx(t, key, tx.KindFaucet, 0, &tx.Faucet{}))
	require.ErrorIs(t, err, ledger.ErrInvalidNonce)

	bad := signedTx(t, key, tx.KindFaucet, 1, &tx.Faucet{})
	bad.Kind = tx.Kind("bogus")
	_, err = tl.ValidateTx(bad)
	require.ErrorIs(t, err, tx.ErrUnknownKind)
}
