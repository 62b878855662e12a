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
	"context"

	"github.com/blinklabs-io/agora/database/models"
)

type ChainIterator struct {
	chain      *Chain
	nextHeight uint64
}

type ChainIteratorResult struct {
	Block models.Block
}

func newChainIterator(chain *Chain, startHeight uint64) *ChainIterator {
	return &ChainIterator{
		chain:      chain,
		nextHeight: startHeight,
	}
}

// Next returns the next block. When blocking is set and the iterator is at
// the chain tip, it waits for a new block or for the context to end.
func (ci *ChainIterator) Next(
	ctx context.Context,
	blocking bool,
) (*ChainIteratorResult, error) {
	if !blocking {
		return ci.chain.iterNext(ci, nil)
	}
	return ci.chain.iterNext(ci, func(waitingChan <-chan struct{}) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-waitingChan:
			return nil
		}
	})
}

// NextHeight returns the height of the block the next call will return
func (ci *ChainIterator) NextHeight() uint64 {
	return ci.nextHeight
}
