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

	"github.com/blinklabs-io/agora/database/models"
)

// UserProfile is the reputation summary of an address. The reputation score
// and total experience are the same quantity.
type UserProfile struct {
	RankName         string `json:"rankName"`
	TotalExperience  uint64 `json:"totalExperience"`
	ReputationScore  uint64 `json:"reputationScore"`
	BadgeCount       uint64 `json:"badgeCount"`
	UniqueBadgeTypes uint64 `json:"uniqueBadgeTypes"`
	EvolutionCount   uint64 `json:"evolutionCount"`
	LastActivity     int64  `json:"lastActivity"`
	Rank             Rank   `json:"rank"`
}

// Badge is the public view of a reputation badge
type Badge struct {
	Owner    string    `json:"owner"`
	Name     string    `json:"name"`
	TypeName string    `json:"typeName"`
	ImageCid string    `json:"imageCid,omitempty"`
	Id       uint64    `json:"id"`
	MintedAt int64     `json:"mintedAt"`
	BurnedAt int64     `json:"burnedAt,omitempty"`
	Level    uint32    `json:"level"`
	Type     BadgeType `json:"type"`
	Burned   bool      `json:"burned"`
}

func (l *Ledger) GetUserProfile(address string) (UserProfile, error) {
	acct, err := l.account(address)
	if err != nil {
		return UserProfile{}, err
	}
	badges, err := l.db.GetBadgesByOwner(acct.Address, nil)
	if err != nil {
		return UserProfile{}, err
	}
	badgeTypes := make(map[uint8]struct{})
	for _, badge := range badges {
		badgeTypes[badge.Type] = struct{}{}
	}
	rank := DeriveRank(acct.Experience)
	return UserProfile{
		Rank:             rank,
		RankName:         rank.String(),
		TotalExperience:  acct.Experience,
		ReputationScore:  acct.Experience,
		BadgeCount:       uint64(len(badges)),
		UniqueBadgeTypes: uint64(len(badgeTypes)),
		EvolutionCount:   acct.EvolutionCount,
		LastActivity:     acct.LastActivity,
	}, nil
}

func (l *Ledger) GetUserRank(address string) (Rank, error) {
	acct, err := l.account(address)
	if err != nil {
		return 0, err
	}
	return DeriveRank(acct.Experience), nil
}

func (l *Ledger) UserReputationScore(address string) (uint64, error) {
	acct, err := l.account(address)
	if err != nil {
		return 0, err
	}
	return acct.Experience, nil
}

// GetUserBadges returns the ids of the unburned badges an address owns
func (l *Ledger) GetUserBadges(address string) ([]uint64, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	badges, err := l.db.GetBadgesByOwner(address, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]uint64, len(badges))
	for i, badge := range badges {
		ret[i] = badge.ID
	}
	return ret, nil
}

func (l *Ledger) GetBadge(id uint64) (Badge, error) {
	badge, err := l.db.GetBadge(id, nil)
	if err != nil {
		if errors.Is(err, models.ErrBadgeNotFound) {
			return Badge{}, fmt.Errorf("%w: badge %d", ErrNotFound, id)
		}
		return Badge{}, err
	}
	cid, err := l.db.GetBadgeImage(badge.Type, nil)
	if err != nil {
		return Badge{}, err
	}
	badgeType := BadgeType(badge.Type)
	return Badge{
		Id:       badge.ID,
		Owner:    badge.Owner,
		Name:     badge.Name,
		Type:     badgeType,
		TypeName: badgeType.String(),
		ImageCid: cid,
		Level:    badge.Level,
		MintedAt: badge.MintedAt,
		BurnedAt: badge.BurnedAt,
		Burned:   badge.Burned,
	}, nil
}

// MintBadge lets the admin award a Seasonal or Achievement badge
func (l *Ledger) MintBadge(caller, to string, badgeType BadgeType, name string) (uint64, error) {
	var ret uint64
	err := l.update(func(op *operation) error {
		var err error
		ret, err = op.adminMintBadge(caller, to, badgeType, name)
		return err
	})
	return ret, err
}

// ComposeBadges burns the given badges and mints one badge a level above
// the highest of them
func (l *Ledger) ComposeBadges(owner string, ids []uint64, name string) (uint64, error) {
	var ret uint64
	err := l.update(func(op *operation) error {
		var err error
		ret, err = op.composeBadges(owner, ids, name)
		return err
	})
	return ret, err
}

// SetBadgeImage sets the content-addressed image of a badge type
func (l *Ledger) SetBadgeImage(caller string, badgeType BadgeType, cid string) error {
	return l.update(func(op *operation) error {
		return op.setBadgeImage(caller, badgeType, cid)
	})
}

// awardExperience raises an account's experience and announces any rank
// change it causes
func (op *operation) awardExperience(acct *models.Account, xp uint64) {
	if xp == 0 {
		return
	}
	oldRank := Rank(acct.Rank)
	acct.Experience += xp
	op.touch(acct)
	newRank := DeriveRank(acct.Experience)
	if newRank == oldRank {
		return
	}
	acct.Rank = uint8(newRank)
	op.emit(RankUpgradedEventType, RankUpgradedEvent{
		User:    acct.Address,
		OldRank: oldRank,
		NewRank: newRank,
		Name:    newRank.String(),
	})
}

func (op *operation) mintBadge(
	owner string,
	badgeType BadgeType,
	name string,
	level uint32,
) (uint64, error) {
	state, err := op.ledgerState()
	if err != nil {
		return 0, err
	}
	state.BadgeCount++
	badge := &models.Badge{
		ID:       state.BadgeCount,
		Owner:    owner,
		Type:     uint8(badgeType),
		Name:     name,
		Level:    level,
		MintedAt: op.nowSeconds,
	}
	if err := op.db().CreateBadge(badge, op.txn); err != nil {
		return 0, err
	}
	op.emit(BadgeEarnedEventType, BadgeEarnedEvent{
		Owner:     owner,
		BadgeId:   badge.ID,
		BadgeType: badgeType,
		Name:      name,
	})
	return badge.ID, nil
}

// mintAutoBadge mints a milestone badge unless the account already received
// one of that type
func (op *operation) mintAutoBadge(acct *models.Account, badgeType BadgeType, name string) error {
	bit := uint32(1) << badgeType
	if acct.AutoBadges&bit != 0 {
		return nil
	}
	acct.AutoBadges |= bit
	_, err := op.mintBadge(acct.Address, badgeType, name, 1)
	return err
}

func (op *operation) requireAdmin(caller string) error {
	if op.params().Admin == "" || caller != op.params().Admin {
		return fmt.Errorf("%w: %s is not the admin", ErrNotAuthorized, caller)
	}
	return nil
}

func (op *operation) adminMintBadge(
	caller, to string,
	badgeType BadgeType,
	name string,
) (uint64, error) {
	caller, err := normalizeAddress(caller)
	if err != nil {
		return 0, err
	}
	to, err = normalizeAddress(to)
	if err != nil {
		return 0, err
	}
	if badgeType != BadgeSeasonal && badgeType != BadgeAchievement {
		return 0, fmt.Errorf(
			"%w: only Seasonal and Achievement badges are minted directly",
			ErrInvalidBadgeType,
		)
	}
	if name == "" || len(name) > maxLabelLength {
		return 0, fmt.Errorf(
			"%w: badge name must be 1 to %d bytes",
			ErrInvalidInput,
			maxLabelLength,
		)
	}
	if err := op.requireAdmin(caller); err != nil {
		return 0, err
	}
	return op.mintBadge(to, badgeType, name, 1)
}

func (op *operation) composeBadges(owner string, ids []uint64, name string) (uint64, error) {
	owner, err := normalizeAddress(owner)
	if err != nil {
		return 0, err
	}
	if len(ids) < 2 {
		return 0, fmt.Errorf(
			"%w: at least 2 badges are required",
			ErrInvalidComposition,
		)
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	if len(slices.Compact(sorted)) != len(ids) {
		return 0, fmt.Errorf("%w: duplicate badge ids", ErrInvalidComposition)
	}
	// Check every input before burning any of them
	badges := make([]models.Badge, 0, len(ids))
	var level uint32
	for _, id := range ids {
		badge, err := op.db().GetBadge(id, op.txn)
		if err != nil {
			if errors.Is(err, models.ErrBadgeNotFound) {
				return 0, fmt.Errorf("%w: badge %d does not exist", ErrNotBadgeOwner, id)
			}
			return 0, err
		}
		if badge.Burned || badge.Owner != owner {
			return 0, fmt.Errorf("%w: badge %d", ErrNotBadgeOwner, id)
		}
		level = max(level, badge.Level)
		badges = append(badges, badge)
	}
	if name == "" {
		name = fmt.Sprintf("Composed Level %d", level+1)
	}
	if len(name) > maxLabelLength {
		return 0, fmt.Errorf(
			"%w: badge name exceeds %d bytes",
			ErrInvalidComposition,
			maxLabelLength,
		)
	}
	for i := range badges {
		badges[i].Burned = true
		badges[i].BurnedAt = op.nowSeconds
		if err := op.db().UpdateBadge(&badges[i], op.txn); err != nil {
			return 0, err
		}
	}
	newId, err := op.mintBadge(owner, BadgeAchievement, name, level+1)
	if err != nil {
		return 0, err
	}
	acct, err := op.account(owner)
	if err != nil {
		return 0, err
	}
	acct.EvolutionCount++
	op.touch(acct)
	op.emit(NFTComposedEventType, NFTComposedEvent{
		Owner:      owner,
		BurnedIds:  slices.Clone(ids),
		NewBadgeId: newId,
		Level:      level + 1,
	})
	return newId, nil
}

func (op *operation) setBadgeImage(caller string, badgeType BadgeType, cid string) error {
	caller, err := normalizeAddress(caller)
	if err != nil {
		return err
	}
	if !badgeType.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidBadgeType, badgeType)
	}
	if cid == "" || len(cid) > maxHashLength {
		return fmt.Errorf(
			"%w: image cid must be 1 to %d bytes",
			ErrInvalidInput,
			maxHashLength,
		)
	}
	if err := op.requireAdmin(caller); err != nil {
		return err
	}
	return op.db().SetBadgeImage(uint8(badgeType), cid, op.txn)
}
