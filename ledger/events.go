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

import "github.com/blinklabs-io/agora/event"

const (
	ProposalCreatedEventType  event.EventType = "ledger.proposal_created"
	VoteCastEventType         event.EventType = "ledger.vote_cast"
	ProposalExecutedEventType event.EventType = "ledger.proposal_executed"
	ProposalCanceledEventType event.EventType = "ledger.proposal_canceled"
	BadgeEarnedEventType      event.EventType = "ledger.badge_earned"
	RankUpgradedEventType     event.EventType = "ledger.rank_upgraded"
	NFTComposedEventType      event.EventType = "ledger.nft_composed"
	StakedEventType           event.EventType = "ledger.staked"
	UnstakedEventType         event.EventType = "ledger.unstaked"
	RewardClaimedEventType    event.EventType = "ledger.reward_claimed"
	TransferEventType         event.EventType = "ledger.transfer"
	ApprovalEventType         event.EventType = "ledger.approval"
	CommentAddedEventType     event.EventType = "ledger.comment_added"
	DelegatedEventType        event.EventType = "ledger.delegated"
)

// EventTypes returns every event type the ledger publishes
func EventTypes() []event.EventType {
	return []event.EventType{
		ProposalCreatedEventType,
		VoteCastEventType,
		ProposalExecutedEventType,
		ProposalCanceledEventType,
		BadgeEarnedEventType,
		RankUpgradedEventType,
		NFTComposedEventType,
		StakedEventType,
		UnstakedEventType,
		RewardClaimedEventType,
		TransferEventType,
		ApprovalEventType,
		CommentAddedEventType,
		DelegatedEventType,
	}
}

type ProposalCreatedEvent struct {
	Proposer   string `json:"proposer"`
	Title      string `json:"title"`
	ProposalId uint64 `json:"proposalId"`
	StartTime  int64  `json:"startTime"`
	EndTime    int64  `json:"endTime"`
}

type VoteCastEvent struct {
	Voter      string `json:"voter"`
	ProposalId uint64 `json:"proposalId"`
	Weight     uint64 `json:"weight"`
	Option     uint8  `json:"option"`
}

type ProposalExecutedEvent struct {
	Executor   string `json:"executor"`
	ProposalId uint64 `json:"proposalId"`
}

type ProposalCanceledEvent struct {
	Canceler   string `json:"canceler"`
	ProposalId uint64 `json:"proposalId"`
}

type BadgeEarnedEvent struct {
	Owner     string    `json:"owner"`
	Name      string    `json:"name"`
	BadgeId   uint64    `json:"badgeId"`
	BadgeType BadgeType `json:"badgeType"`
}

type RankUpgradedEvent struct {
	User    string `json:"user"`
	Name    string `json:"name"`
	OldRank Rank   `json:"oldRank"`
	NewRank Rank   `json:"newRank"`
}

type NFTComposedEvent struct {
	Owner      string   `json:"owner"`
	BurnedIds  []uint64 `json:"burnedIds"`
	NewBadgeId uint64   `json:"newBadgeId"`
	Level      uint32   `json:"level"`
}

type StakedEvent struct {
	Address       string `json:"address"`
	Amount        uint64 `json:"amount"`
	LockEnd       int64  `json:"lockEnd"`
	LockDays      uint32 `json:"lockDays"`
	MultiplierBps uint32 `json:"multiplierBps"`
}

type UnstakedEvent struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
	Penalty uint64 `json:"penalty"`
}

type RewardClaimedEvent struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// TransferEvent has an empty From for minted units
type TransferEvent struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type ApprovalEvent struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

type CommentAddedEvent struct {
	Author     string `json:"author"`
	Hash       string `json:"hash"`
	ProposalId uint64 `json:"proposalId"`
}

// DelegatedEvent has an empty To when delegation is withdrawn
type DelegatedEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}
