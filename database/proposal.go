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
	"slices"

	"github.com/blinklabs-io/agora/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func preloadOptions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func copyProposal(p *models.Proposal) models.Proposal {
	ret := *p
	ret.Options = slices.Clone(p.Options)
	return ret
}

// GetProposal returns a proposal with its options in order. Reads outside a
// transaction are served from the proposal cache.
func (d *Database) GetProposal(id uint64, txn *Txn) (models.Proposal, error) {
	var gen uint64
	if txn == nil {
		var cached any
		var ok bool
		cached, gen, ok = d.proposalCache.lookup(id)
		if ok {
			return copyProposal(cached.(*models.Proposal)), nil
		}
	}
	var ret models.Proposal
	result := d.metadataDB(txn).
		Preload("Options", preloadOptions).
		Where("id = ?", id).
		First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ret, models.ErrProposalNotFound
		}
		return ret, result.Error
	}
	if txn == nil {
		tmp := copyProposal(&ret)
		d.proposalCache.add(gen, id, &tmp)
	}
	return ret, nil
}

// CreateProposal inserts a proposal along with its options
func (d *Database) CreateProposal(proposal *models.Proposal, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		for i := range proposal.Options {
			proposal.Options[i].ProposalID = proposal.ID
			// Option count is bounded well below 256
			proposal.Options[i].Position = uint8(i) // #nosec G115
		}
		if err := txn.Metadata().Create(proposal).Error; err != nil {
			return err
		}
		d.invalidateProposalOnCommit(proposal.ID, txn)
		return nil
	})
}

// UpdateProposal saves the mutable proposal fields. Options never change
// after creation.
func (d *Database) UpdateProposal(proposal *models.Proposal, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		result := txn.Metadata().
			Omit(clause.Associations).
			Save(proposal)
		if result.Error != nil {
			return result.Error
		}
		d.invalidateProposalOnCommit(proposal.ID, txn)
		return nil
	})
}

func (d *Database) invalidateProposalOnCommit(id uint64, txn *Txn) {
	txn.OnCommit(func() {
		d.proposalCache.invalidate(id)
	})
}

// GetProposals returns proposals newest first
func (d *Database) GetProposals(offset, limit int, txn *Txn) ([]models.Proposal, error) {
	var ret []models.Proposal
	result := d.metadataDB(txn).
		Preload("Options", preloadOptions).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetVote returns the vote cast by voter on a proposal. The second return
// value is false when the voter has not voted.
func (d *Database) GetVote(proposalId uint64, voter string, txn *Txn) (models.Vote, bool, error) {
	var ret models.Vote
	result := d.metadataDB(txn).
		Where("proposal_id = ? AND voter = ?", proposalId, voter).
		First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ret, false, nil
		}
		return ret, false, result.Error
	}
	return ret, true, nil
}

// AddVote writes a vote record. The (proposal, voter) pair is unique.
func (d *Database) AddVote(vote *models.Vote, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return txn.Metadata().Create(vote).Error
	})
}

// GetVotes returns the votes on a proposal in the order they were cast
func (d *Database) GetVotes(proposalId uint64, txn *Txn) ([]models.Vote, error) {
	var ret []models.Vote
	result := d.metadataDB(txn).
		Where("proposal_id = ?", proposalId).
		Order("id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// AddComment records a comment hash on a proposal
func (d *Database) AddComment(comment *models.Comment, txn *Txn) error {
	return d.withTxn(txn, func(txn *Txn) error {
		return txn.Metadata().Create(comment).Error
	})
}

// GetComments returns the comments on a proposal in the order they were added
func (d *Database) GetComments(proposalId uint64, txn *Txn) ([]models.Comment, error) {
	var ret []models.Comment
	result := d.metadataDB(txn).
		Where("proposal_id = ?", proposalId).
		Order("id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CountComments returns the number of comments on a proposal
func (d *Database) CountComments(proposalId uint64, txn *Txn) (uint64, error) {
	var count int64
	result := d.metadataDB(txn).
		Model(&models.Comment{}).
		Where("proposal_id = ?", proposalId).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return uint64(count), nil // #nosec G115
}
