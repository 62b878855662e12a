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

package chain

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/agora/database"
	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/event"
)

const (
	initialBlockHeight uint64 = 1
)

type Chain struct {
	mutex            sync.RWMutex
	db               *database.Database
	eventBus         *event.EventBus
	currentTip       models.Block
	hasTip           bool
	waitingChan      chan struct{}
	waitingChanMutex sync.Mutex
}

func NewChain(
	db *database.Database,
	eventBus *event.EventBus,
) (*Chain, error) {
	if db == nil {
		return nil, errors.New("no database provided")
	}
	c := &Chain{
		db:       db,
		eventBus: eventBus,
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}
	return c, nil
}

func (c *Chain) load() error {
	tip, err := c.db.GetTip(nil)
	if err != nil {
		if errors.Is(err, models.ErrBlockNotFound) {
			return nil
		}
		return err
	}
	c.currentTip = tip
	c.hasTip = true
	return nil
}

// Tip returns the latest block header and whether any block exists yet
func (c *Chain) Tip() (models.Block, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.currentTip, c.hasTip
}

// Height returns the tip height, or 0 before the first block
func (c *Chain) Height() uint64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.currentTip.Height
}

// NextBlock returns an empty block that fits on the current tip
func (c *Chain) NextBlock(timestamp time.Time) *Block {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	ret := &Block{
		Height:    initialBlockHeight,
		Timestamp: timestamp.Unix(),
	}
	if c.hasTip {
		ret.Height = c.currentTip.Height + 1
		ret.PrevHash = c.currentTip.Hash
	}
	return ret
}

// AddBlock persists a block on top of the current tip
func (c *Chain) AddBlock(block *Block) (models.Block, error) {
	header, err := block.Header()
	if err != nil {
		return models.Block{}, err
	}
	body, err := block.Encode()
	if err != nil {
		return models.Block{}, err
	}
	c.mutex.Lock()
	// Check that this block fits on the current chain tip
	expectedHeight := initialBlockHeight
	var tipHash []byte
	if c.hasTip {
		expectedHeight = c.currentTip.Height + 1
		tipHash = c.currentTip.Hash
	}
	if block.Height != expectedHeight ||
		!bytes.Equal(block.PrevHash, tipHash) {
		c.mutex.Unlock()
		return models.Block{}, &TipMismatchError{
			PrevHash:       block.PrevHash,
			TipHash:        tipHash,
			Height:         block.Height,
			ExpectedHeight: expectedHeight,
		}
	}
	err = c.db.Transaction(true).Do(func(txn *database.Txn) error {
		return c.db.AddBlock(&header, body, txn)
	})
	if err != nil {
		c.mutex.Unlock()
		return models.Block{}, err
	}
	// Update tip
	c.currentTip = header
	c.hasTip = true
	c.mutex.Unlock()
	// Notify waiting iterators
	c.waitingChanMutex.Lock()
	if c.waitingChan != nil {
		close(c.waitingChan)
		c.waitingChan = nil
	}
	c.waitingChanMutex.Unlock()
	// Generate event
	if c.eventBus != nil {
		c.eventBus.Publish(
			BlockEventType,
			event.NewEventAt(
				BlockEventType,
				BlockEvent{
					Height:    header.Height,
					Hash:      hex.EncodeToString(header.Hash),
					PrevHash:  hex.EncodeToString(header.PrevHash),
					Timestamp: header.Timestamp,
					TxCount:   header.TxCount,
				},
				time.Unix(header.Timestamp, 0),
			),
		)
	}
	return header, nil
}

// Block returns the header of the block at a height
func (c *Chain) Block(height uint64) (models.Block, error) {
	return c.db.GetBlock(height, nil)
}

// BlockBody returns the full block at a height
func (c *Chain) BlockBody(height uint64) (*Block, error) {
	body, err := c.db.GetBlockBody(height, nil)
	if err != nil {
		return nil, err
	}
	return DecodeBlock(body)
}

// TxStatus is the receipt of an included transaction along with how many
// blocks have been built on top of it
type TxStatus struct {
	models.Receipt
	Confirmations uint64
}

// TxStatus looks up the receipt for a transaction hash
func (c *Chain) TxStatus(hash []byte) (TxStatus, error) {
	receipt, err := c.db.GetReceipt(hash, nil)
	if err != nil {
		return TxStatus{}, err
	}
	ret := TxStatus{Receipt: receipt}
	if tipHeight := c.Height(); tipHeight >= receipt.BlockHeight {
		ret.Confirmations = tipHeight - receipt.BlockHeight + 1
	}
	return ret, nil
}

// FromHeight returns a ChainIterator whose first result is the block at the
// given height
func (c *Chain) FromHeight(height uint64) *ChainIterator {
	return newChainIterator(c, max(height, initialBlockHeight))
}

func (c *Chain) iterNext(
	iter *ChainIterator,
	waitFn func(<-chan struct{}) error,
) (*ChainIteratorResult, error) {
	for {
		c.waitingChanMutex.Lock()
		c.mutex.RLock()
		available := c.hasTip && iter.nextHeight <= c.currentTip.Height
		c.mutex.RUnlock()
		if available {
			c.waitingChanMutex.Unlock()
			tmpBlock, err := c.db.GetBlock(iter.nextHeight, nil)
			if err != nil {
				return nil, err
			}
			iter.nextHeight++
			return &ChainIteratorResult{Block: tmpBlock}, nil
		}
		// Return immediately if we're not blocking
		if waitFn == nil {
			c.waitingChanMutex.Unlock()
			return nil, ErrIteratorChainTip
		}
		if c.waitingChan == nil {
			c.waitingChan = make(chan struct{})
		}
		waitingChan := c.waitingChan
		c.waitingChanMutex.Unlock()
		// Wait for chain update
		if err := waitFn(waitingChan); err != nil {
			return nil, err
		}
	}
}
