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

package ledger

import (
	"fmt"
	"math/big"

	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/database/types"
	"github.com/shopspring/decimal"
)

// StakeInfo is the staking position of an address
type StakeInfo struct {
	Amount           uint64 `json:"amount"`
	LockEnd          int64  `json:"lockEnd"`
	StakingTimestamp int64  `json:"stakingTimestamp"`
	Rewards          uint64 `json:"rewards"`
	MultiplierBps    uint32 `json:"multiplierBps"`
	LockDays         uint32 `json:"lockDays"`
}

func (l *Ledger) Stakes(address string) (StakeInfo, error) {
	acct, err := l.account(address)
	if err != nil {
		return StakeInfo{}, err
	}
	return StakeInfo{
		Amount:           uint64(acct.StakedAmount),
		LockEnd:          acct.LockEnd,
		StakingTimestamp: acct.StakingTimestamp,
		Rewards:          l.pendingRewards(&acct, l.clock.Now().Unix()),
		MultiplierBps:    acct.MultiplierBps,
		LockDays:         acct.LockDays,
	}, nil
}

func (l *Ledger) StakedAmount(address string) (uint64, error) {
	acct, err := l.account(address)
	if err != nil {
		return 0, err
	}
	return uint64(acct.StakedAmount), nil
}

// CalculateUnstakePenalty returns the units withheld if amount were
// unstaked now. It is zero once the lock has ended.
func (l *Ledger) CalculateUnstakePenalty(address string, amount uint64) (uint64, error) {
	acct, err := l.account(address)
	if err != nil {
		return 0, err
	}
	return l.unstakePenalty(&acct, amount, l.clock.Now().Unix()), nil
}

func (l *Ledger) Stake(address string, amount uint64, lockDays uint32) error {
	return l.update(func(op *operation) error {
		return op.stake(address, amount, lockDays)
	})
}

// Unstake returns staked units to the transferable balance. Before the lock
// ends it fails with ErrLockActive unless acceptPenalty is set.
func (l *Ledger) Unstake(address string, amount uint64, acceptPenalty bool) error {
	return l.update(func(op *operation) error {
		return op.unstake(address, amount, acceptPenalty)
	})
}

// ClaimReward pays out accrued staking rewards and returns the amount paid
func (l *Ledger) ClaimReward(address string) (uint64, error) {
	var ret uint64
	err := l.update(func(op *operation) error {
		var err error
		ret, err = op.claimReward(address)
		return err
	})
	return ret, err
}

func (l *Ledger) unstakePenalty(acct *models.Account, amount uint64, now int64) uint64 {
	if now >= acct.LockEnd {
		return 0
	}
	return mulDivFloor(amount, uint64(l.params.EarlyExitPenaltyBps), basisPoints)
}

// pendingRewards returns checkpointed plus not yet checkpointed rewards
func (l *Ledger) pendingRewards(acct *models.Account, now int64) uint64 {
	return uint64(acct.AccruedRewards) + l.rewardsSince(acct, now)
}

// rewardsSince computes linear rewards from the last checkpoint:
// staked * rate * elapsed / year, scaled by the lock multiplier
func (l *Ledger) rewardsSince(acct *models.Account, now int64) uint64 {
	if acct.StakedAmount == 0 || acct.RewardCheckpoint == 0 ||
		now <= acct.RewardCheckpoint {
		return 0
	}
	elapsed := now - acct.RewardCheckpoint
	reward := decimalFromUint64(uint64(acct.StakedAmount)).
		Mul(decimal.NewFromInt(int64(l.params.RewardRateBps))).
		Mul(decimal.NewFromInt(int64(acct.MultiplierBps))).
		Mul(decimal.NewFromInt(elapsed))
	return quotient(reward, decimal.NewFromInt(basisPoints*basisPoints*secondsPerYear))
}

// checkpointRewards moves rewards accrued so far into the account and
// restarts the accrual clock
func (op *operation) checkpointRewards(acct *models.Account) {
	acct.AccruedRewards += types.Uint64(op.l.rewardsSince(acct, op.nowSeconds))
	if acct.StakedAmount > 0 {
		acct.RewardCheckpoint = op.nowSeconds
	} else {
		acct.RewardCheckpoint = 0
	}
}

// creditStakingExperience awards experience for each full day staked since
// the last credit
func (op *operation) creditStakingExperience(acct *models.Account) {
	if acct.StakedAmount == 0 || acct.StakeXpCheckpoint == 0 {
		acct.StakeXpCheckpoint = 0
		return
	}
	days := (op.nowSeconds - acct.StakeXpCheckpoint) / secondsPerDay
	if days <= 0 {
		return
	}
	acct.StakeXpCheckpoint += days * secondsPerDay
	// #nosec G115
	op.awardExperience(acct, uint64(days)*op.params().Experience.StakingPerDay)
}

func (op *operation) stake(address string, amount uint64, lockDays uint32) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if _, ok := op.params().LockMultipliers[lockDays]; !ok {
		return fmt.Errorf(
			"%w: %d days (accepted: %v)",
			ErrInvalidLockPeriod,
			lockDays,
			op.params().LockPeriods(),
		)
	}
	acct, err := op.account(address)
	if err != nil {
		return err
	}
	if uint64(acct.Balance) < amount {
		return fmt.Errorf(
			"%w: have %d, need %d",
			ErrInsufficientBalance,
			acct.Balance,
			amount,
		)
	}
	state, err := op.ledgerState()
	if err != nil {
		return err
	}
	op.checkpointRewards(acct)
	op.creditStakingExperience(acct)
	firstStake := acct.StakedAmount == 0
	newEnd := op.nowSeconds + int64(lockDays)*secondsPerDay
	if acct.LockEnd > op.nowSeconds && !firstStake {
		// Extend the active lock and rate it by its cumulative length
		acct.LockEnd = max(acct.LockEnd, newEnd)
		// #nosec G115
		cumulativeDays := uint32((acct.LockEnd - acct.StakingTimestamp) / secondsPerDay)
		acct.LockDays = max(acct.LockDays, cumulativeDays)
		acct.MultiplierBps = op.params().lockMultiplier(acct.LockDays)
	} else {
		acct.StakingTimestamp = op.nowSeconds
		acct.LockEnd = newEnd
		acct.LockDays = lockDays
		acct.MultiplierBps = op.params().LockMultipliers[lockDays]
	}
	if firstStake {
		acct.StakeXpCheckpoint = op.nowSeconds
		acct.RewardCheckpoint = op.nowSeconds
	}
	acct.Balance -= types.Uint64(amount)
	acct.StakedAmount += types.Uint64(amount)
	state.TotalStaked += types.Uint64(amount)
	op.touch(acct)
	if err := op.mintAutoBadge(acct, BadgeStaking, "First Stake"); err != nil {
		return err
	}
	op.emit(StakedEventType, StakedEvent{
		Address:       address,
		Amount:        amount,
		LockEnd:       acct.LockEnd,
		LockDays:      acct.LockDays,
		MultiplierBps: acct.MultiplierBps,
	})
	return nil
}

func (op *operation) unstake(address string, amount uint64, acceptPenalty bool) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	acct, err := op.account(address)
	if err != nil {
		return err
	}
	if uint64(acct.StakedAmount) < amount {
		return fmt.Errorf(
			"%w: staked %d, requested %d",
			ErrInsufficientStake,
			acct.StakedAmount,
			amount,
		)
	}
	if op.nowSeconds < acct.LockEnd && !acceptPenalty {
		return fmt.Errorf(
			"%w: locked until %d",
			ErrLockActive,
			acct.LockEnd,
		)
	}
	state, err := op.ledgerState()
	if err != nil {
		return err
	}
	op.checkpointRewards(acct)
	op.creditStakingExperience(acct)
	penalty := op.l.unstakePenalty(acct, amount, op.nowSeconds)
	acct.StakedAmount -= types.Uint64(amount)
	acct.Balance += types.Uint64(amount - penalty)
	state.TotalStaked -= types.Uint64(amount)
	state.RewardsPool += types.Uint64(penalty)
	if acct.StakedAmount == 0 {
		acct.LockEnd = 0
		acct.LockDays = 0
		acct.MultiplierBps = 0
		acct.StakingTimestamp = 0
		acct.RewardCheckpoint = 0
		acct.StakeXpCheckpoint = 0
	}
	op.touch(acct)
	op.emit(UnstakedEventType, UnstakedEvent{
		Address: address,
		Amount:  amount,
		Penalty: penalty,
	})
	return nil
}

func (op *operation) claimReward(address string) (uint64, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return 0, err
	}
	acct, err := op.account(address)
	if err != nil {
		return 0, err
	}
	op.checkpointRewards(acct)
	op.creditStakingExperience(acct)
	reward := uint64(acct.AccruedRewards)
	if reward == 0 {
		return 0, ErrNothingToClaim
	}
	state, err := op.ledgerState()
	if err != nil {
		return 0, err
	}
	// The rewards pool pays first; the rest is minted
	fromPool := min(reward, uint64(state.RewardsPool))
	minted := reward - fromPool
	if minted > op.params().MaxSupply-min(op.params().MaxSupply, uint64(state.TotalSupply)) {
		return 0, ErrMaxSupply
	}
	state.RewardsPool -= types.Uint64(fromPool)
	state.TotalSupply += types.Uint64(minted)
	acct.Balance += types.Uint64(reward)
	acct.AccruedRewards = 0
	acct.TotalClaimedRewards += types.Uint64(reward)
	op.touch(acct)
	op.emit(RewardClaimedEventType, RewardClaimedEvent{
		Address: address,
		Amount:  reward,
	})
	return reward, nil
}

func decimalFromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// decimalToUint64 truncates d to an integer, saturating at the uint64 range
func decimalToUint64(d decimal.Decimal) uint64 {
	if d.Sign() <= 0 {
		return 0
	}
	tmp := d.BigInt()
	if !tmp.IsUint64() {
		return ^uint64(0)
	}
	return tmp.Uint64()
}

// quotient returns the integer part of num / den
func quotient(num, den decimal.Decimal) uint64 {
	q, _ := num.QuoRem(den, 0)
	return decimalToUint64(q)
}

// mulDivFloor returns floor(a * b / c) without intermediate overflow
func mulDivFloor(a, b, c uint64) uint64 {
	return quotient(
		decimalFromUint64(a).Mul(decimalFromUint64(b)),
		decimalFromUint64(c),
	)
}
