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
	"github.com/blinklabs-io/agora/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetAccount returns the account for an address, or models.ErrAccountNotFound
func (d *Database) GetAccount(address string, txn *Txn) (models.Account, error) {
	var ret models.Account
	result := d.metadataDB(txn).Where("address = ?", address).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ret, models.ErrAccountNotFound
		}
		return ret, result.Error
	}
	return ret, nil
}

// SetAccount inserts a new account or saves all fields of an existing one
func (d *Database) SetAccount(account *models.Account, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		db := txn.Metadata()
		if account.ID == 0 {
			return db.Create(account).Error
		}
		return db.Save(account).Error
	})
}

// GetAccounts returns accounts ordered by address
func (d *Database) GetAccounts(offset, limit int, txn *Txn) ([]models.Account, error) {
	var ret []models.Account
	result := d.metadataDB(txn).
		Order("address ASC").
		Offset(offset).
		Limit(limit).
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetDelegators returns the accounts that delegate their voting power to
// the given address
func (d *Database) GetDelegators(address string, txn *Txn) ([]models.Account, error) {
	var ret []models.Account
	result := d.metadataDB(txn).
		Where("delegated_to = ?", address).
		Order("address ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetAllowance returns the approved amount, 0 when none was set
func (d *Database) GetAllowance(owner, spender string, txn *Txn) (uint64, error) {
	var ret models.Allowance
	result := d.metadataDB(txn).
		Where("owner = ? AND spender = ?", owner, spender).
		First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return uint64(ret.Amount), nil
}

// SetAllowance replaces the approved amount for an (owner, spender) pair
func (d *Database) SetAllowance(owner, spender string, amount uint64, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		tmpItem := models.Allowance{
			Owner:   owner,
			Spender: spender,
			Amount:  types.Uint64(amount),
		}
		return txn.Metadata().Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "owner"},
				{Name: "spender"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"amount"}),
		}).Create(&tmpItem).Error
	})
}

// GetLedgerState returns the global counters. A fresh database yields the
// zero state.
func (d *Database) GetLedgerState(txn *Txn) (models.LedgerState, error) {
	ret := models.LedgerState{ID: models.LedgerStateRowId}
	result := d.metadataDB(txn).
		Where("id = ?", models.LedgerStateRowId).
		First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.LedgerState{ID: models.LedgerStateRowId}, nil
		}
		return ret, result.Error
	}
	return ret, nil
}

// SetLedgerState upserts the global counters
func (d *Database) SetLedgerState(state *models.LedgerState, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		state.ID = models.LedgerStateRowId
		return txn.Metadata().Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(state).Error
	})
}
