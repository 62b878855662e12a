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

package database

import (
	"errors"

	"github.com/blinklabs-io/agora/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetBadge returns a badge by id, including burned badges
func (d *Database) GetBadge(id uint64, txn *Txn) (models.Badge, error) {
	var ret models.Badge
	result := d.metadataDB(txn).Where("id = ?", id).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ret, models.ErrBadgeNotFound
		}
		return ret, result.Error
	}
	return ret, nil
}

// GetBadgesByOwner returns the unburned badges held by an address, oldest first
func (d *Database) GetBadgesByOwner(owner string, txn *Txn) ([]models.Badge, error) {
	var ret []models.Badge
	result := d.metadataDB(txn).
		Where("owner = ? AND burned = ?", owner, false).
		Order("id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CreateBadge inserts a newly minted badge
func (d *Database) CreateBadge(badge *models.Badge, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return txn.Metadata().Create(badge).Error
	})
}

// UpdateBadge saves all fields of an existing badge
func (d *Database) UpdateBadge(badge *models.Badge, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return txn.Metadata().Save(badge).Error
	})
}

// GetBadgeImage returns the image CID for a badge type, empty when unset
func (d *Database) GetBadgeImage(badgeType uint8, txn *Txn) (string, error) {
	var ret models.BadgeImage
	result := d.metadataDB(txn).Where("type = ?", badgeType).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return ret.Cid, nil
}

// SetBadgeImage sets the image CID for a badge type
func (d *Database) SetBadgeImage(badgeType uint8, cid string, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		tmpItem := models.BadgeImage{Type: badgeType, Cid: cid}
		return txn.Metadata().Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{"cid"}),
		}).Create(&tmpItem).Error
	})
}
