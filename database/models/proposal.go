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

var ErrProposalNotFound = errors.New("proposal not found")

// Vote option values
const (
	VoteAgainst = 0
	VoteFor     = 1
	VoteAbstain = 2
)

// Proposal is a governance proposal. Its status is computed from the flags
// and the current time and is never stored.
type Proposal struct {
	Title            string           `gorm:"size:256;not null"`
	Description      string           `gorm:"type:text"`
	Proposer         string           `gorm:"index;size:42;not null"`
	Options          []ProposalOption `gorm:"foreignKey:ProposalID;references:ID"`
	ID               uint64           `gorm:"primarykey;autoIncrement:false"`
	StartTime        int64            `gorm:"not null"`
	EndTime          int64            `gorm:"index;not null"`
	ExecutionDelay   int64
	ForVotes         types.Uint64
	AgainstVotes     types.Uint64
	AbstainVotes     types.Uint64
	ExecutedAt       int64
	CanceledAt       int64
	AddedHeight      uint64 `gorm:"index"`
	RequiresMultiSig bool
	Executed         bool
	Canceled         bool
}

func (Proposal) TableName() string {
	return "proposal"
}

// TotalVotes returns the sum of all tallies
func (p *Proposal) TotalVotes() uint64 {
	return uint64(p.ForVotes) + uint64(p.AgainstVotes) + uint64(p.AbstainVotes)
}

// OptionLabels returns the option labels in order
func (p *Proposal) OptionLabels() []string {
	ret := make([]string, len(p.Options))
	for i, opt := range p.Options {
		ret[i] = opt.Label
	}
	return ret
}

type ProposalOption struct {
	Label      string `gorm:"size:128;not null"`
	ID         uint   `gorm:"primarykey"`
	ProposalID uint64 `gorm:"uniqueIndex:idx_proposal_option,priority:1;not null"`
	Position   uint8  `gorm:"uniqueIndex:idx_proposal_option,priority:2;not null"`
}

func (ProposalOption) TableName() string {
	return "proposal_option"
}

// Vote is written once per (proposal, voter) pair and never updated. A
// vote with Delegate set was cast by that delegate with the voter's stake.
type Vote struct {
	Voter      string `gorm:"uniqueIndex:idx_vote_unique,priority:2;size:42;not null"`
	Delegate   string `gorm:"size:42"`
	ID         uint   `gorm:"primarykey"`
	ProposalID uint64 `gorm:"uniqueIndex:idx_vote_unique,priority:1;not null"`
	Weight     types.Uint64
	Timestamp  int64
	Option     uint8 `gorm:"not null"` // 0=Against, 1=For, 2=Abstain
}

func (Vote) TableName() string {
	return "vote"
}

// Comment records the content hash of an off-ledger comment
type Comment struct {
	Hash       string `gorm:"size:128;not null"`
	Author     string `gorm:"size:42;not null"`
	ID         uint   `gorm:"primarykey"`
	ProposalID uint64 `gorm:"index;not null"`
	Timestamp  int64
}

func (Comment) TableName() string {
	return "comment"
}
