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

package models

import (
	"errors"

	"github.com/blinklabs-io/agora/database/types"
)

var ErrAccountNotFound = errors.New("account not found")

// Account holds all per-address ledger state. Accounts are created on first
// write; readers treat a missing row as the zero account.
type Account struct {
	Address             string `gorm:"uniqueIndex;size:42;not null"`
	DelegatedTo         string `gorm:"index;size:42"` // empty when undelegated
	ID                  uint   `gorm:"primarykey"`
	Balance             types.Uint64
	Nonce               uint64
	StakedAmount        types.Uint64
	LockEnd             int64
	LockDays            uint32
	MultiplierBps       uint32
	StakingTimestamp    int64
	RewardCheckpoint    int64
	AccruedRewards      types.Uint64
	TotalClaimedRewards types.Uint64
	StakeXpCheckpoint   int64
	TotalVotes          uint64
	TotalProposals      uint64
	VotingStreak        uint64
	LastVotedProposal   uint64
	Experience          uint64 `gorm:"index"`
	Rank                uint8
	EvolutionCount      uint64
	LastActivity        int64
	LastFaucetClaim     int64
	AutoBadges          uint32 // bitmask of automatically minted badge types
}

func (Account) TableName() string {
	return "account"
}

// Allowance is the amount a spender may move out of an owner's balance
type Allowance struct {
	Owner   string `gorm:"uniqueIndex:idx_allowance_pair,priority:1;size:42;not null"`
	Spender string `gorm:"uniqueIndex:idx_allowance_pair,priority:2;size:42;not null"`
	ID      uint   `gorm:"primarykey"`
	Amount  types.Uint64
}

func (Allowance) TableName() string {
	return "allowance"
}
