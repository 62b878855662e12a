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

	"github.com/blinklabs-io/agora/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStakeLockMultiplier(t *testing.T) {
	tl := newTestLedger(t, nil)
	require.NoError(t, tl.Stake(voterA, 1000, 365))
	info, err := tl.Stakes(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), info.Amount)
	assert.Equal(t, uint32(20000), info.MultiplierBps)
	assert.Equal(t, uint32(365), info.LockDays)
	assert.Equal(t, genesisTime.Add(365*day).Unix(), info.LockEnd)
	balance, err := tl.BalanceOf(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(9000), balance)

	require.ErrorIs(t, tl.Stake(voterA, 100, 45), ledger.ErrInvalidLockPeriod)
	require.ErrorIs(t, tl.Stake(voterA, 0, 30), ledger.ErrInvalidAmount)
	require.ErrorIs(t, tl.Stake(voterA, 50_000, 30), ledger.ErrInsufficientBalance)
}

func TestUnstakeDuringLock(t *testing.T) {
	tl := newTestLedger(t, nil)
	require.NoError(t, tl.Stake(voterA, 1000, 365))
	tl.clock.Advance(day)

	err := tl.Unstake(voterA, 1000, false)
	require.ErrorIs(t, err, ledger.ErrLockActive)
	staked, err := tl.StakedAmount(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), staked)

	penalty, err := tl.CalculateUnstakePenalty(voterA, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), penalty)

	require.NoError(t, tl.Unstake(voterA, 1000, true))
	balance, err := tl.BalanceOf(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(9900), balance)
	info, err := tl.TokenInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), info.RewardsPool)
	assert.Zero(t, info.TotalStaked)

	// A full exit clears the lock
	stake, err := tl.Stakes(voterA)
	require.NoError(t, err)
	assert.Zero(t, stake.Amount)
	assert.Zero(t, stake.LockEnd)
	assert.Zero(t, stake.MultiplierBps)
}

func TestUnstakeAfterLock(t *testing.T) {
	tl := newTestLedger(t, nil)
	require.NoError(t, tl.Stake(voterA, 1000, 30))
	tl.clock.Advance(31 * day)
	penalty, err := tl.CalculateUnstakePenalty(voterA, 1000)
	require.NoError(t, err)
	assert.Zero(t, penalty)
	require.NoError(t, tl.Unstake(voterA, 400, false))
	balance, err := tl.BalanceOf(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(9400), balance)
	require.ErrorIs(t, tl.Unstake(voterA, 1000, false), ledger.ErrInsufficientStake)

	// One experience point per full day staked
	profile, err := tl.GetUserProfile(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(31), profile.TotalExperience)
}

func TestRestakeExtendsLock(t *testing.T) {
	tl := newTestLedger(t, nil)
	require.NoError(t, tl.Stake(voterA, 1000, 30))
	tl.clock.Advance(10 * day)
	require.NoError(t, tl.Stake(voterA, 500, 90))
	info, err := tl.Stakes(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), info.Amount)
	assert.Equal(t, genesisTime.Add(100*day).Unix(), info.LockEnd)
	assert.Equal(t, genesisTime.Unix(), info.StakingTimestamp)
	assert.Equal(t, uint32(100), info.LockDays)
	assert.Equal(t, uint32(12000), info.MultiplierBps)

	// A shorter lock never shortens the active one
	require.NoError(t, tl.Stake(voterA, 100, 30))
	info, err = tl.Stakes(voterA)
	require.NoError(t, err)
	assert.Equal(t, genesisTime.Add(100*day).Unix(), info.LockEnd)
	assert.Equal(t, uint32(12000), info.MultiplierBps)
}

func TestClaimReward(t *testing.T) {
	tl := newTestLedger(t, nil)
	_, err := tl.ClaimReward(voterA)
	require.ErrorIs(t, err, ledger.ErrNothingToClaim)

	require.NoError(t, tl.Stake(voterA, 10_000, 365))
	_, err = tl.ClaimReward(voterA)
	require.ErrorIs(t, err, ledger.ErrNothingToClaim)

	tl.clock.Advance(365 * day)
	info, err := tl.Stakes(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), info.Rewards)

	reward, err := tl.ClaimReward(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), reward)
	balance, err := tl.BalanceOf(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), balance)
	supply, err := tl.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, uint64(122_500), supply)

	stats, err := tl.GetUserStats(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), stats.TotalClaimedRewards)
	assert.Zero(t, stats.EarnedRewards)

	_, err = tl.ClaimReward(voterA)
	require.ErrorIs(t, err, ledger.ErrNothingToClaim)
}

func TestClaimRewardPaysFromPoolFirst(t *testing.T) {
	tl := newTestLedger(t, nil)
	// voterB funds the pool through an early exit penalty
	require.NoError(t, tl.Stake(voterB, 10_000, 30))
	require.NoError(t, tl.Unstake(voterB, 10_000, true))
	require.NoError(t, tl.Stake(voterA, 10_000, 365))
	tl.clock.Advance(365 * day)
	reward, err := tl.ClaimReward(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), reward)
	info, err := tl.TokenInfo()
	require.NoError(t, err)
	assert.Zero(t, info.RewardsPool)
	// The pool covered 1000 of the reward, the rest was minted
	assert.Equal(t, uint64(121_500), info.TotalSupply)
}

func TestRewardsCheckpointOnStakeChange(t *testing.T) {
	tl := newTestLedger(t, nil)
	require.NoError(t, tl.Stake(voterA, 5000, 365))
	tl.clock.Advance(365 * day / 2)
	require.NoError(t, tl.Stake(voterA, 5000, 365))
	info, err := tl.Stakes(voterA)
	require.NoError(t, err)
	// Half a year on 5000 at the 2x multiplier
	assert.Equal(t, uint64(625), info.Rewards)
	tl.clock.Advance(365 * day / 2)
	info, err = tl.Stakes(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(625+1250), info.Rewards)
}
