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

// AddBlock stores the block header in the metadata store and the encoded
// body in the blob store
func (d *Database) AddBlock(block *models.Block, body []byte, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		if err := d.blob.Set(txn.Blob(), types.BlockBlobKey(block.Height), body); err != nil {
			return err
		}
		if err := txn.Metadata().Create(block).Error; err != nil {
			return err
		}
		height := block.Height
		txn.OnCommit(func() {
			d.blockCache.invalidate(height)
		})
		return nil
	})
}

// GetBlock returns the block header at a height
func (d *Database) GetBlock(height uint64, txn *Txn) (models.Block, error) {
	var gen uint64
	if txn == nil {
		var cached any
		var ok bool
		cached, gen, ok = d.blockCache.lookup(height)
		if ok {
			return *(cached.(*models.Block)), nil
		}
	}
	var ret models.Block
	result := d.metadataDB(txn).Where("height = ?", height).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ret, models.ErrBlockNotFound
		}
		return ret, result.Error
	}
	if txn == nil {
		tmp := ret
		d.blockCache.add(gen, height, &tmp)
	}
	return ret, nil
}

// GetTip returns the highest block, or models.ErrBlockNotFound before the
// first block
func (d *Database) GetTip(txn *Txn) (models.Block, error) {
	var ret models.Block
	result := d.metadataDB(txn).Order("height DESC").First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ret, models.ErrBlockNotFound
		}
		return ret, result.Error
	}
	return ret, nil
}

// GetBlockBody returns the encoded block body from the blob store
func (d *Database) GetBlockBody(height uint64, txn *Txn) ([]byte, error) {
	return d.blobGet(types.BlockBlobKey(height), txn, models.ErrBlockNotFound)
}

// SetTx stores a raw signed transaction by hash
func (d *Database) SetTx(hash []byte, raw []byte, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return d.blob.Set(txn.Blob(), types.TxBlobKey(hash), raw)
	})
}

// GetTx returns a raw signed transaction by hash
func (d *Database) GetTx(hash []byte, txn *Txn) ([]byte, error) {
	return d.blobGet(types.TxBlobKey(hash), txn, models.ErrTxNotFound)
}

func (d *Database) blobGet(key []byte, txn *Txn, notFound error) ([]byte, error) {
	var blobTxn types.Txn
	if txn != nil {
		blobTxn = txn.Blob()
	} else {
		blobTxn = d.blob.NewTransaction(false)
		defer blobTxn.Rollback() //nolint:errcheck
	}
	val, err := d.blob.Get(blobTxn, key)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, notFound
		}
		return nil, err
	}
	return val, nil
}

// AddReceipt records the outcome of an applied transaction
func (d *Database) AddReceipt(receipt *models.Receipt, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return txn.Metadata().Create(receipt).Error
	})
}

// MoveReceipt points the receipt for a transaction hash at a new block
// position
func (d *Database) MoveReceipt(
	hash []byte,
	height uint64,
	index uint32,
	txn *Txn,
) error {
	return d.withTxn(txn, func(txn *Txn) error {
		result := txn.Metadata().
			Model(&models.Receipt{}).
			Where("tx_hash = ?", hash).
			Updates(map[string]any{
				"block_height": height,
				"index":        index,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrReceiptNotFound
		}
		return nil
	})
}

// GetReceipt returns the receipt for a transaction hash
func (d *Database) GetReceipt(hash []byte, txn *Txn) (models.Receipt, error) {
	var ret models.Receipt
	result := d.metadataDB(txn).Where("tx_hash = ?", hash).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ret, models.ErrReceiptNotFound
		}
		return ret, result.Error
	}
	return ret, nil
}

// GetReceiptsByBlock returns the receipts of a block in application order
func (d *Database) GetReceiptsByBlock(height uint64, txn *Txn) ([]models.Receipt, error) {
	var ret []models.Receipt
	result := d.metadataDB(txn).
		Where("block_height = ?", height).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "index"}}).
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
