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

	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveRank(t *testing.T) {
	testDefs := []struct {
		score    uint64
		expected ledger.Rank
	}{
		{0, ledger.RankNewcomer},
		{99, ledger.RankNewcomer},
		{100, ledger.RankContributor},
		{499, ledger.RankContributor},
		{500, ledger.RankDelegate},
		{1499, ledger.RankDelegate},
		{1500, ledger.RankCouncil},
		{4999, ledger.RankCouncil},
		{5000, ledger.RankElder},
		{^uint64(0), ledger.RankElder},
	}
	for _, testDef := range testDefs {
		assert.Equal(
			t,
			testDef.expected,
			ledger.DeriveRank(testDef.score),
			"score %d",
			testDef.score,
		)
	}
	prev := ledger.DeriveRank(0)
	for score := uint64(0); score <= 6000; score += 7 {
		rank := ledger.DeriveRank(score)
		require.GreaterOrEqual(t, rank, prev, "score %d", score)
		prev = rank
	}
}

func TestParseRank(t *testing.T) {
	for _, rank := range []ledger.Rank{
		ledger.RankNewcomer,
		ledger.RankContributor,
		ledger.RankDelegate,
		ledger.RankCouncil,
		ledger.RankElder,
	} {
		parsed, err := ledger.ParseRank(ledger.RankName(rank))
		require.NoError(t, err)
		assert.Equal(t, rank, parsed)
	}
	_, err := ledger.ParseRank("Emperor")
	assert.Error(t, err)
}

func TestRankUpgradeEvent(t *testing.T) {
	tl := newTestLedger(t, nil)
	_, events := tl.bus.Subscribe(ledger.RankUpgradedEventType)
	id := tl.openProposal(t)
	require.NoError(t, tl.Stake(voterA, 10_000, 365))
	require.NoError(t, tl.Vote(id, voterA, ledger.OptionFor))
	tl.clock.Advance(9*day + time.Second)
	require.NoError(t, tl.ExecuteProposal(id, voterA))
	// Vote and execution experience lifts voterA to Contributor
	evt := receiveEvent(t, events)
	data, ok := evt.Data.(ledger.RankUpgradedEvent)
	require.True(t, ok)
	assert.Equal(t, voterA, data.User)
	assert.Equal(t, ledger.RankNewcomer, data.OldRank)
	assert.Equal(t, ledger.RankContributor, data.NewRank)
	assert.Equal(t, "Contributor", data.Name)
	score, err := tl.UserReputationScore(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(110), score)
}

func receiveEvent(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	default:
		t.Fatal("expected a published event")
	}
	return event.Event{}
}

func TestMintBadge(t *testing.T) {
	tl := newTestLedger(t, nil)
	_, err := tl.MintBadge(voterA, voterB, ledger.BadgeSeasonal, "Season 1")
	require.ErrorIs(t, err, ledger.ErrNotAuthorized)
	_, err = tl.MintBadge(adminAddr, voterB, ledger.BadgeStaking, "Staker")
	require.ErrorIs(t, err, ledger.ErrInvalidBadgeType)
	_, err = tl.MintBadge(adminAddr, voterB, ledger.BadgeSeasonal, "")
	require.ErrorIs(t, err, ledger.ErrInvalidInput)

	id, err := tl.MintBadge(adminAddr, voterB, ledger.BadgeSeasonal, "Season 1")
	require.NoError(t, err)
	require.NoError(t, tl.SetBadgeImage(adminAddr, ledger.BadgeSeasonal, "QmSeason"))
	require.ErrorIs(
		t,
		tl.SetBadgeImage(voterA, ledger.BadgeSeasonal, "QmOther"),
		ledger.ErrNotAuthorized,
	)
	badge, err := tl.GetBadge(id)
	require.NoError(t, err)
	assert.Equal(t, voterB, badge.Owner)
	assert.Equal(t, "Season 1", badge.Name)
	assert.Equal(t, "Seasonal", badge.TypeName)
	assert.Equal(t, "QmSeason", badge.ImageCid)
	assert.Equal(t, uint32(1), badge.Level)
	assert.False(t, badge.Burned)

	_, err = tl.GetBadge(99)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestComposeBadges(t *testing.T) {
	tl := newTestLedger(t, nil)
	_, events := tl.bus.Subscribe(ledger.NFTComposedEventType)
	var ids []uint64
	for _, name := range []string{"Season 1", "Season 2", "Season 3"} {
		id, err := tl.MintBadge(adminAddr, voterA, ledger.BadgeSeasonal, name)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	otherId, err := tl.MintBadge(adminAddr, voterB, ledger.BadgeSeasonal, "Season 1")
	require.NoError(t, err)

	_, err = tl.ComposeBadges(voterA, ids[:1], "")
	require.ErrorIs(t, err, ledger.ErrInvalidComposition)
	_, err = tl.ComposeBadges(voterA, []uint64{ids[0], ids[0]}, "")
	require.ErrorIs(t, err, ledger.ErrInvalidComposition)
	_, err = tl.ComposeBadges(voterA, []uint64{ids[0], otherId}, "")
	require.ErrorIs(t, err, ledger.ErrNotBadgeOwner)
	_, err = tl.ComposeBadges(voterA, []uint64{ids[0], 99}, "")
	require.ErrorIs(t, err, ledger.ErrNotBadgeOwner)

	newId, err := tl.ComposeBadges(voterA, ids[:2], "")
	require.NoError(t, err)
	badge, err := tl.GetBadge(newId)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), badge.Level)
	assert.Equal(t, ledger.BadgeAchievement, badge.Type)
	assert.Equal(t, "Composed Level 2", badge.Name)
	burned, err := tl.GetBadge(ids[0])
	require.NoError(t, err)
	assert.True(t, burned.Burned)

	// Burned badges cannot be composed again
	_, err = tl.ComposeBadges(voterA, []uint64{ids[0], ids[2]}, "")
	require.ErrorIs(t, err, ledger.ErrNotBadgeOwner)

	owned, err := tl.GetUserBadges(voterA)
	require.NoError(t, err)
	assert.Equal(t, []uint64{ids[2], newId}, owned)
	profile, err := tl.GetUserProfile(voterA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), profile.EvolutionCount)
	assert.Equal(t, uint64(2), profile.BadgeCount)
	assert.Equal(t, uint64(2), profile.UniqueBadgeTypes)

	evt := receiveEvent(t, events)
	data, ok := evt.Data.(ledger.NFTComposedEvent)
	require.True(t, ok)
	assert.Equal(t, ids[:2], data.BurnedIds)
	assert.Equal(t, newId, data.NewBadgeId)
	assert.Equal(t, uint32(2), data.Level)
}
