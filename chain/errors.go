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
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrIteratorChainTip = errors.New("chain iterator is at chain tip")
	ErrProducerRunning  = errors.New("block producer already running")
	ErrTipMismatch      = errors.New("block does not extend the chain tip")
)

// TipMismatchError reports a block whose height or parent hash does not
// follow the current tip. It matches ErrTipMismatch with errors.Is
type TipMismatchError struct {
	PrevHash       []byte
	TipHash        []byte
	Height         uint64
	ExpectedHeight uint64
}

func (e *TipMismatchError) Error() string {
	return fmt.Sprintf(
		"block %d (prev %s) does not extend tip at height %d (hash %s)",
		e.Height,
		hex.EncodeToString(e.PrevHash),
		e.ExpectedHeight-1,
		hex.EncodeToString(e.TipHash),
	)
}

func (e *TipMismatchError) Is(target error) bool {
	return target == ErrTipMismatch
}
