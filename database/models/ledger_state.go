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

import "github.com/blinklabs-io/agora/database/types"

const LedgerStateRowId = 1

// LedgerState holds the global counters. There is exactly one row.
type LedgerState struct {
	ID             uint `gorm:"primarykey"`
	TotalSupply    types.Uint64
	TotalStaked    types.Uint64
	RewardsPool    types.Uint64
	ProposalCount  uint64
	BadgeCount     uint64
	GenesisApplied bool // set once genesis allocations are minted
}

func (LedgerState) TableName() string {
	return "ledger_state"
}
