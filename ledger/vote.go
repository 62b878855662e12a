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

	"github.com/blinklabs-io/agora/database"
	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/database/types"
)

// Vote options
const (
	OptionAgainst uint8 = models.VoteAgainst
	OptionFor     uint8 = models.VoteFor
	OptionAbstain uint8 = models.VoteAbstain
)

// UserVote is the vote record of a voter on a proposal. CastBy names the
// delegate that voted with the voter's stake, if any.
type UserVote struct {
	CastBy   string `json:"castBy,omitempty"`
	Weight   uint64 `json:"weight"`
	Option   uint8  `json:"option"`
	HasVoted bool   `json:"hasVoted"`
}

// UserStats is the governance activity summary of an address
type UserStats struct {
	Staked              uint64 `json:"staked"`
	EarnedRewards       uint64 `json:"earnedRewards"`
	TotalClaimedRewards uint64 `json:"totalClaimedRewards"`
	VotingStreak        uint64 `json:"votingStreak"`
	TotalVotes          uint64 `json:"totalVotes"`
	TotalProposals      uint64 `json:"totalProposals"`
	LastActivity        int64  `json:"lastActivity"`
	VotingPower         uint64 `json:"votingPower"`
	DelegatedTo         string `json:"delegatedTo,omitempty"`
}

// Vote casts the voter's current weight for an option on a proposal. Each
// voter votes at most once per proposal.
func (l *Ledger) Vote(proposalId uint64, voter string, option uint8) error {
	return l.update(func(op *operation) error {
		return op.vote(proposalId, voter, option)
	})
}

func (l *Ledger) GetUserVote(proposalId uint64, voter string) (UserVote, error) {
	voter, err := normalizeAddress(voter)
	if err != nil {
		return UserVote{}, err
	}
	if _, err := l.db.GetProposal(proposalId, nil); err != nil {
		return UserVote{}, proposalLookupError(proposalId, err)
	}
	vote, found, err := l.db.GetVote(proposalId, voter, nil)
	if err != nil || !found {
		return UserVote{}, err
	}
	return UserVote{
		CastBy:   vote.Delegate,
		HasVoted: true,
		Option:   vote.Option,
		Weight:   uint64(vote.Weight),
	}, nil
}

func (l *Ledger) GetUserStats(address string) (UserStats, error) {
	acct, err := l.account(address)
	if err != nil {
		return UserStats{}, err
	}
	power, err := l.votingPower(&acct, nil)
	if err != nil {
		return UserStats{}, err
	}
	return UserStats{
		Staked:              uint64(acct.StakedAmount),
		EarnedRewards:       l.pendingRewards(&acct, l.clock.Now().Unix()),
		TotalClaimedRewards: uint64(acct.TotalClaimedRewards),
		VotingStreak:        acct.VotingStreak,
		TotalVotes:          acct.TotalVotes,
		TotalProposals:      acct.TotalProposals,
		LastActivity:        acct.LastActivity,
		VotingPower:         power,
		DelegatedTo:         acct.DelegatedTo,
	}, nil
}

// VotingPower returns the weight a vote from address would carry now
func (l *Ledger) VotingPower(address string) (uint64, error) {
	acct, err := l.account(address)
	if err != nil {
		return 0, err
	}
	return l.votingPower(&acct, nil)
}

// votingPower sums the lock-weighted stake of the account and of every
// account delegating to it, then applies the account's rank multiplier.
// An account that has delegated away contributes nothing of its own.
func (l *Ledger) votingPower(acct *models.Account, txn *database.Txn) (uint64, error) {
	power, _, err := l.proposalVotingPower(0, acct, txn)
	return power, err
}

// delegatedWeight is the share of a delegate's vote carried by one delegator
type delegatedWeight struct {
	address string
	weight  uint64
}

// proposalVotingPower is votingPower restricted to stake not yet voted on
// the proposal: delegators with their own vote record are skipped. A zero
// proposal id skips nothing. The counted delegators are returned with the
// weight each contributed.
func (l *Ledger) proposalVotingPower(
	proposalId uint64,
	acct *models.Account,
	txn *database.Txn,
) (uint64, []delegatedWeight, error) {
	rankPct := uint64(l.params.rankMultiplier(DeriveRank(acct.Experience)))
	var base uint64
	if acct.DelegatedTo == "" {
		base = stakeWeight(acct)
	}
	delegators, err := l.db.GetDelegators(acct.Address, txn)
	if err != nil {
		return 0, nil, err
	}
	var counted []delegatedWeight
	for i := range delegators {
		weight := stakeWeight(&delegators[i])
		if weight == 0 {
			continue
		}
		if proposalId != 0 {
			_, voted, err := l.db.GetVote(proposalId, delegators[i].Address, txn)
			if err != nil {
				return 0, nil, err
			}
			if voted {
				continue
			}
		}
		base += weight
		counted = append(counted, delegatedWeight{
			address: delegators[i].Address,
			weight:  mulDivFloor(weight, rankPct, 100),
		})
	}
	return mulDivFloor(base, rankPct, 100), counted, nil
}

func stakeWeight(acct *models.Account) uint64 {
	return mulDivFloor(
		uint64(acct.StakedAmount),
		uint64(acct.MultiplierBps),
		basisPoints,
	)
}

func (op *operation) vote(proposalId uint64, voter string, option uint8) error {
	voter, err := normalizeAddress(voter)
	if err != nil {
		return err
	}
	if option > OptionAbstain {
		return fmt.Errorf("%w: %d", ErrInvalidOption, option)
	}
	p, err := op.proposal(proposalId)
	if err != nil {
		return err
	}
	if p.Canceled {
		return ErrProposalCanceled
	}
	if p.Executed {
		return ErrProposalExecuted
	}
	if op.nowSeconds < p.StartTime {
		return ErrNotStarted
	}
	if op.nowSeconds > p.EndTime {
		return ErrVotingEnded
	}
	_, found, err := op.db().GetVote(proposalId, voter, op.txn)
	if err != nil {
		return err
	}
	if found {
		return ErrAlreadyVoted
	}
	acct, err := op.account(voter)
	if err != nil {
		return err
	}
	weight, delegated, err := op.l.proposalVotingPower(proposalId, acct, op.txn)
	if err != nil {
		return err
	}
	if weight == 0 {
		return ErrNoVotingPower
	}
	switch option {
	case OptionFor:
		p.ForVotes += types.Uint64(weight)
	case OptionAgainst:
		p.AgainstVotes += types.Uint64(weight)
	case OptionAbstain:
		p.AbstainVotes += types.Uint64(weight)
	}
	if err := op.db().UpdateProposal(p, op.txn); err != nil {
		return err
	}
	vote := &models.Vote{
		ProposalID: proposalId,
		Voter:      voter,
		Option:     option,
		Weight:     types.Uint64(weight),
		Timestamp:  op.nowSeconds,
	}
	if err := op.db().AddVote(vote, op.txn); err != nil {
		return err
	}
	// The delegated stake is spent on this proposal even if the delegator
	// later undelegates or redelegates
	for _, d := range delegated {
		marker := &models.Vote{
			ProposalID: proposalId,
			Voter:      d.address,
			Delegate:   voter,
			Option:     option,
			Weight:     types.Uint64(d.weight),
			Timestamp:  op.nowSeconds,
		}
		if err := op.db().AddVote(marker, op.txn); err != nil {
			return err
		}
	}
	acct.TotalVotes++
	if acct.LastVotedProposal != 0 && proposalId == acct.LastVotedProposal+1 {
		acct.VotingStreak++
	} else {
		acct.VotingStreak = 1
	}
	acct.LastVotedProposal = proposalId
	op.awardExperience(acct, op.params().Experience.Vote)
	if err := op.mintAutoBadge(acct, BadgeParticipation, "First Vote"); err != nil {
		return err
	}
	if streak := op.params().VotingStreakBadgeAt; streak > 0 && acct.VotingStreak >= streak {
		if err := op.mintAutoBadge(acct, BadgeVotingStreak, "Voting Streak"); err != nil {
			return err
		}
	}
	op.txn.OnCommit(op.l.metrics.votesCast.Inc)
	op.emit(VoteCastEventType, VoteCastEvent{
		ProposalId: proposalId,
		Voter:      voter,
		Option:     option,
		Weight:     weight,
	})
	return nil
}
