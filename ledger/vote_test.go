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
	"fmt"
	"testing"

	"github.com/blinklabs-io/agora/ledger"
	"github.com/blinklabs-io/agora/tx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVote(t *testing.T) {
	tl := newTestLedger(t, nil)
	id := tl.openProposal(t)
	require.NoError(t, tl.Stake(voterA, 500, 30))
	power, err := tl.VotingPower(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), power)

	require.NoError(t, tl.Vote(id, voterA, ledger.OptionFor))
	p, err := tl.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), p.ForVotes)
	assert.Zero(t, p.AgainstVotes)

	vote, err := tl.GetUserVote(id, voterA)
	require.NoError(t, err)
	assert.True(t, vote.HasVoted)
	assert.Equal(t, ledger.OptionFor, vote.Option)
	assert.Equal(t, uint64(500), vote.Weight)

	err = tl.Vote(id, voterA, ledger.OptionAgainst)
	require.ErrorIs(t, err, ledger.ErrAlreadyVoted)
	p, err = tl.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), p.ForVotes)
	assert.Zero(t, p.AgainstVotes)

	stats, err := tl.GetUserStats(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalVotes)
	assert.Equal(t, uint64(1), stats.VotingStreak)
	profile, err := tl.GetUserProfile(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), profile.TotalExperience)
}

func TestVoteWeightUsesRankMultiplier(t *testing.T) {
	tl := newTestLedger(t, nil)
	id := tl.openProposal(t)
	// The proposer is Council, so 1000 staked for 30 days carries 2x
	power, err := tl.VotingPower(proposerAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), power)
	require.NoError(t, tl.Vote(id, proposerAddr, ledger.OptionAbstain))
	p, err := tl.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), p.AbstainVotes)
}

func TestVoteChecks(t *testing.T) {
	tl := newTestLedger(t, nil)
	id := tl.openProposal(t)
	require.NoError(t, tl.Stake(voterA, 500, 30))

	require.ErrorIs(t, tl.Vote(99, voterA, 3), ledger.ErrInvalidOption)
	require.ErrorIs(t, tl.Vote(99, voterA, ledger.OptionFor), ledger.ErrNotFound)
	require.ErrorIs(t, tl.Vote(id, voterC, ledger.OptionFor), ledger.ErrNoVotingPower)
	require.ErrorIs(t, tl.Vote(id, "0x1234", ledger.OptionFor), tx.ErrInvalidAddress)

	tl.clock.Advance(8 * day)
	require.ErrorIs(t, tl.Vote(id, voterA, ledger.OptionFor), ledger.ErrVotingEnded)

	id2 := tl.openProposal(t)
	require.NoError(t, tl.CancelProposal(id2, proposerAddr))
	require.ErrorIs(t, tl.Vote(id2, voterA, ledger.OptionFor), ledger.ErrProposalCanceled)
}

func TestTalliesNeverDecrease(t *testing.T) {
	tl := newTestLedger(t, nil)
	id := tl.openProposal(t)
	voters := []string{voterA, voterB}
	var lastTotal uint64
	for i, voter := range voters {
		require.NoError(t, tl.Stake(voter, 1000, 90))
		require.NoError(t, tl.Vote(id, voter, uint8(i)))
		p, err := tl.GetProposal(id)
		require.NoError(t, err)
		total := p.ForVotes + p.AgainstVotes + p.AbstainVotes
		assert.Greater(t, total, lastTotal)
		lastTotal = total
		// Unstaking afterwards does not alter a recorded vote
		tl.clock.Advance(day)
		require.NoError(t, tl.Unstake(voter, 1000, true))
		p, err = tl.GetProposal(id)
		require.NoError(t, err)
		assert.Equal(t, lastTotal, p.ForVotes+p.AgainstVotes+p.AbstainVotes)
	}
	assert.Equal(t, uint64(2400), lastTotal)
}

func TestVotingStreak(t *testing.T) {
	tl := newTestLedger(t, nil)
	require.NoError(t, tl.Stake(proposerAddr, 1000, 30))
	require.NoError(t, tl.Stake(voterA, 500, 30))
	for i := range 6 {
		id, err := tl.CreateProposal(
			proposerAddr,
			fmt.Sprintf("Proposal %d", i+1),
			"",
			[]string{"Yes", "No"},
			0,
			false,
		)
		require.NoError(t, err)
		if i == 5 {
			break
		}
		require.NoError(t, tl.Vote(id, voterA, ledger.OptionFor))
	}
	stats, err := tl.GetUserStats(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), stats.VotingStreak)

	badges, err := tl.GetUserBadges(voterA)
	require.NoError(t, err)
	var names []string
	for _, id := range badges {
		badge, err := tl.GetBadge(id)
		require.NoError(t, err)
		names = append(names, badge.TypeName)
	}
	assert.ElementsMatch(t, []string{"Staking", "Participation", "VotingStreak"}, names)

	// Skipping proposal 6 restarts the streak
	id, err := tl.CreateProposal(proposerAddr, "Proposal 7", "", []string{"Yes", "No"}, 0, false)
	require.NoError(t, err)
	require.NoError(t, tl.Vote(id, voterA, ledger.OptionFor))
	stats, err = tl.GetUserStats(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.VotingStreak)
	badges, err = tl.GetUserBadges(voterA)
	require.NoError(t, err)
	assert.Len(t, badges, 3)
}

func TestDelegation(t *testing.T) {
	tl := newTestLedger(t, nil)
	id := tl.openProposal(t)
	require.NoError(t, tl.Stake(voterA, 1000, 30))
	require.NoError(t, tl.Stake(voterB, 1000, 90))

	require.ErrorIs(t, tl.Delegate(voterA, voterA), ledger.ErrSelfDelegation)
	require.ErrorIs(t, tl.Undelegate(voterA), ledger.ErrInvalidInput)
	require.NoError(t, tl.Delegate(voterA, voterB))
	require.ErrorIs(t, tl.Delegate(voterA, voterB), ledger.ErrInvalidInput)
	delegate, err := tl.GetDelegate(voterA)
	require.NoError(t, err)
	assert.Equal(t, voterB, delegate)

	power, err := tl.VotingPower(voterB)
	require.NoError(t, err)
	assert.Equal(t, uint64(2200), power)
	power, err = tl.VotingPower(voterA)
	require.NoError(t, err)
	assert.Zero(t, power)
	require.ErrorIs(t, tl.Vote(id, voterA, ledger.OptionFor), ledger.ErrNoVotingPower)
	require.NoError(t, tl.Vote(id, voterB, ledger.OptionFor))
	p, err := tl.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(2200), p.ForVotes)

	require.NoError(t, tl.Undelegate(voterA))
	power, err = tl.VotingPower(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), power)
	profile, err := tl.GetUserProfile(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), profile.TotalExperience)

	// The delegate already voted with A's stake, so taking it back does not
	// let A vote it a second time
	vote, err := tl.GetUserVote(id, voterA)
	require.NoError(t, err)
	assert.True(t, vote.HasVoted)
	assert.Equal(t, voterB, vote.CastBy)
	assert.Equal(t, uint64(1000), vote.Weight)
	require.ErrorIs(t, tl.Vote(id, voterA, ledger.OptionFor), ledger.ErrAlreadyVoted)

	// Nor does handing it to another delegate
	require.NoError(t, tl.Transfer(voterA, voterC, 2000))
	require.NoError(t, tl.Stake(voterC, 1000, 30))
	require.NoError(t, tl.Delegate(voterA, voterB))
	require.NoError(t, tl.Delegate(voterA, voterC))
	power, err = tl.VotingPower(voterC)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), power)
	require.NoError(t, tl.Vote(id, voterC, ledger.OptionFor))
	vote, err = tl.GetUserVote(id, voterC)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), vote.Weight)
	assert.Empty(t, vote.CastBy)
	p, err = tl.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3200), p.ForVotes)
}

func TestDelegatorVoteExcludedFromDelegate(t *testing.T) {
	tl := newTestLedger(t, nil)
	id := tl.openProposal(t)
	require.NoError(t, tl.Stake(voterA, 1000, 30))
	require.NoError(t, tl.Stake(voterB, 1000, 30))

	require.NoError(t, tl.Vote(id, voterA, ledger.OptionAgainst))
	require.NoError(t, tl.Delegate(voterA, voterB))
	require.NoError(t, tl.Vote(id, voterB, ledger.OptionFor))
	p, err := tl.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), p.ForVotes)
	assert.Equal(t, uint64(1000), p.AgainstVotes)
	vote, err := tl.GetUserVote(id, voterA)
	require.NoError(t, err)
	assert.Equal(t, ledger.OptionAgainst, vote.Option)
	assert.Empty(t, vote.CastBy)
}
