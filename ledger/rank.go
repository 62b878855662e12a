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

import "fmt"

// Rank is a reputation tier derived from experience
type Rank uint8

const (
	RankNewcomer Rank = iota
	RankContributor
	RankDelegate
	RankCouncil
	RankElder
)

// Lower experience bound of each rank above Newcomer
const (
	contributorThreshold = 100
	delegateThreshold    = 500
	councilThreshold     = 1500
	elderThreshold       = 5000
)

var rankNames = []string{
	"Newcomer",
	"Contributor",
	"Delegate",
	"Council",
	"Elder",
}

func (r Rank) String() string {
	if int(r) < len(rankNames) {
		return rankNames[r]
	}
	return fmt.Sprintf("Rank(%d)", r)
}

// DeriveRank maps a reputation score to its rank. It is monotonic in score.
func DeriveRank(score uint64) Rank {
	switch {
	case score >= elderThreshold:
		return RankElder
	case score >= councilThreshold:
		return RankCouncil
	case score >= delegateThreshold:
		return RankDelegate
	case score >= contributorThreshold:
		return RankContributor
	default:
		return RankNewcomer
	}
}

// RankName returns the display name of a rank
func RankName(rank Rank) string {
	return rank.String()
}

// ParseRank returns the rank with the given display name
func ParseRank(name string) (Rank, error) {
	for i, rankName := range rankNames {
		if rankName == name {
			return Rank(i), nil // #nosec G115
		}
	}
	return 0, fmt.Errorf("unknown rank: %s", name)
}

// BadgeType classifies reputation badges
type BadgeType uint8

const (
	BadgeParticipation BadgeType = iota
	BadgeVotingStreak
	BadgeProposalCreator
	BadgeStaking
	BadgeDelegation
	BadgeExecution
	BadgeSeasonal
	BadgeAchievement
)

var badgeTypeNames = []string{
	"Participation",
	"VotingStreak",
	"ProposalCreator",
	"Staking",
	"Delegation",
	"Execution",
	"Seasonal",
	"Achievement",
}

func (b BadgeType) Valid() bool {
	return int(b) < len(badgeTypeNames)
}

func (b BadgeType) String() string {
	if b.Valid() {
		return badgeTypeNames[b]
	}
	return fmt.Sprintf("BadgeType(%d)", b)
}
