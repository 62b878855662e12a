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
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/blinklabs-io/agora/tx"
)

const (
	basisPoints    = 10000
	day            = 24 * time.Hour
	secondsPerDay  = int64(day / time.Second)
	secondsPerYear = 365 * secondsPerDay
)

// Params holds the governance parameters of the ledger
type Params struct {
	TokenName             string              `yaml:"tokenName"             toml:"tokenName"`
	TokenSymbol           string              `yaml:"tokenSymbol"           toml:"tokenSymbol"`
	Admin                 string              `yaml:"admin"                 toml:"admin"                 envconfig:"ADMIN"`
	LockMultipliers       map[uint32]uint32   `yaml:"lockMultipliers"       toml:"lockMultipliers"`
	RankMultipliers       []uint32            `yaml:"rankMultipliers"       toml:"rankMultipliers"`
	Genesis               []GenesisAllocation `yaml:"genesis"               toml:"genesis"`
	Experience            ExperienceParams    `yaml:"experience"            toml:"experience"`
	MaxSupply             uint64              `yaml:"maxSupply"             toml:"maxSupply"`
	FaucetAmount          uint64              `yaml:"faucetAmount"          toml:"faucetAmount"          envconfig:"FAUCET_AMOUNT"`
	FaucetCooldown        time.Duration       `yaml:"faucetCooldown"        toml:"faucetCooldown"        envconfig:"FAUCET_COOLDOWN"`
	MinProposalStake      uint64              `yaml:"minProposalStake"      toml:"minProposalStake"`
	VotingPeriod          time.Duration       `yaml:"votingPeriod"          toml:"votingPeriod"          envconfig:"VOTING_PERIOD"`
	Quorum                uint64              `yaml:"quorum"                toml:"quorum"                envconfig:"QUORUM"`
	VotingStreakBadgeAt   uint64              `yaml:"votingStreakBadgeAt"   toml:"votingStreakBadgeAt"`
	EarlyExitPenaltyBps   uint32              `yaml:"earlyExitPenaltyBps"   toml:"earlyExitPenaltyBps"`
	RewardRateBps         uint32              `yaml:"rewardRateBps"         toml:"rewardRateBps"`
	MaxExecutionDelayDays uint32              `yaml:"maxExecutionDelayDays" toml:"maxExecutionDelayDays"`
	MinProposalRank       Rank                `yaml:"minProposalRank"       toml:"minProposalRank"`
}

// ExperienceParams holds the experience awarded per action
type ExperienceParams struct {
	Vote                   uint64 `yaml:"vote"                   toml:"vote"`
	ProposalBase           uint64 `yaml:"proposalBase"           toml:"proposalBase"`
	ProposalPerExtraOption uint64 `yaml:"proposalPerExtraOption" toml:"proposalPerExtraOption"`
	ProposalMultiSig       uint64 `yaml:"proposalMultiSig"       toml:"proposalMultiSig"`
	ProposalMax            uint64 `yaml:"proposalMax"            toml:"proposalMax"`
	Comment                uint64 `yaml:"comment"                toml:"comment"`
	Delegation             uint64 `yaml:"delegation"             toml:"delegation"`
	Execution              uint64 `yaml:"execution"              toml:"execution"`
	StakingPerDay          uint64 `yaml:"stakingPerDay"          toml:"stakingPerDay"`
}

// GenesisAllocation seeds an account when the ledger is first created
type GenesisAllocation struct {
	Address    string `yaml:"address"    toml:"address"`
	Balance    uint64 `yaml:"balance"    toml:"balance"`
	Experience uint64 `yaml:"experience" toml:"experience"`
}

// DefaultParams returns the default governance parameters
func DefaultParams() Params {
	return Params{
		TokenName:   "SOMIAGOV Token",
		TokenSymbol: "SGOV",
		LockMultipliers: map[uint32]uint32{
			30:  10000,
			90:  12000,
			180: 15000,
			365: 20000,
		},
		RankMultipliers: []uint32{100, 120, 150, 200, 300},
		Experience: ExperienceParams{
			Vote:                   10,
			ProposalBase:           50,
			ProposalPerExtraOption: 50,
			ProposalMultiSig:       50,
			ProposalMax:            200,
			Comment:                5,
			Delegation:             15,
			Execution:              100,
			StakingPerDay:          1,
		},
		MaxSupply:             1_000_000_000,
		FaucetAmount:          10_000,
		FaucetCooldown:        time.Hour,
		MinProposalStake:      1000,
		VotingPeriod:          7 * day,
		Quorum:                1000,
		VotingStreakBadgeAt:   5,
		EarlyExitPenaltyBps:   1000,
		RewardRateBps:         1250,
		MaxExecutionDelayDays: 30,
		MinProposalRank:       RankCouncil,
	}
}

// Validate checks the parameters for internal consistency and normalizes
// the admin and genesis addresses
func (p *Params) Validate() error {
	if len(p.LockMultipliers) == 0 {
		return errors.New("at least one lock period is required")
	}
	for days, bps := range p.LockMultipliers {
		if days == 0 || bps == 0 {
			return fmt.Errorf(
				"invalid lock period %d days at %d bps",
				days,
				bps,
			)
		}
	}
	if len(p.RankMultipliers) != len(rankNames) {
		return fmt.Errorf(
			"expected %d rank multipliers, got %d",
			len(rankNames),
			len(p.RankMultipliers),
		)
	}
	if !slices.IsSorted(p.RankMultipliers) {
		return errors.New("rank multipliers must not decrease with rank")
	}
	if p.EarlyExitPenaltyBps > basisPoints {
		return fmt.Errorf(
			"early exit penalty of %d bps exceeds 100%%",
			p.EarlyExitPenaltyBps,
		)
	}
	if p.VotingPeriod <= 0 {
		return errors.New("voting period must be positive")
	}
	if int(p.MinProposalRank) >= len(rankNames) {
		return fmt.Errorf(
			"unknown minimum proposal rank: %d",
			p.MinProposalRank,
		)
	}
	if p.Admin != "" {
		admin, err := tx.NormalizeAddress(p.Admin)
		if err != nil {
			return fmt.Errorf("admin: %w", err)
		}
		p.Admin = admin
	}
	var total uint64
	for i := range p.Genesis {
		addr, err := tx.NormalizeAddress(p.Genesis[i].Address)
		if err != nil {
			return fmt.Errorf("genesis allocation %d: %w", i, err)
		}
		p.Genesis[i].Address = addr
		if p.Genesis[i].Balance > p.MaxSupply-total {
			return fmt.Errorf("genesis allocations: %w", ErrMaxSupply)
		}
		total += p.Genesis[i].Balance
	}
	return nil
}

// LockPeriods returns the accepted lock periods in days, shortest first
func (p *Params) LockPeriods() []uint32 {
	ret := make([]uint32, 0, len(p.LockMultipliers))
	for days := range p.LockMultipliers {
		ret = append(ret, days)
	}
	slices.Sort(ret)
	return ret
}

// lockMultiplier returns the multiplier of the longest lock period that
// fits within lockDays
func (p *Params) lockMultiplier(lockDays uint32) uint32 {
	var ret uint32
	for _, days := range p.LockPeriods() {
		if days > lockDays {
			break
		}
		ret = p.LockMultipliers[days]
	}
	return ret
}

func (p *Params) rankMultiplier(rank Rank) uint32 {
	if int(rank) < len(p.RankMultipliers) {
		return p.RankMultipliers[rank]
	}
	return p.RankMultipliers[len(p.RankMultipliers)-1]
}

// proposalExperience returns the experience awarded for creating a proposal
func (p *Params) proposalExperience(optionCount int, multiSig bool) uint64 {
	xp := p.Experience.ProposalBase
	if optionCount > 2 {
		// #nosec G115
		xp += uint64(optionCount-2) * p.Experience.ProposalPerExtraOption
	}
	if multiSig {
		xp += p.Experience.ProposalMultiSig
	}
	if p.Experience.ProposalMax > 0 {
		xp = min(xp, p.Experience.ProposalMax)
	}
	return xp
}
