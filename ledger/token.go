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
	"fmt"

	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/database/types"
)

// TokenInfo describes the governance token
type TokenInfo struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply uint64 `json:"totalSupply"`
	MaxSupply   uint64 `json:"maxSupply"`
	TotalStaked uint64 `json:"totalStaked"`
	RewardsPool uint64 `json:"rewardsPool"`
	Decimals    uint8  `json:"decimals"`
}

func (l *Ledger) TokenInfo() (TokenInfo, error) {
	state, err := l.db.GetLedgerState(nil)
	if err != nil {
		return TokenInfo{}, err
	}
	return TokenInfo{
		Name:        l.params.TokenName,
		Symbol:      l.params.TokenSymbol,
		TotalSupply: uint64(state.TotalSupply),
		MaxSupply:   l.params.MaxSupply,
		TotalStaked: uint64(state.TotalStaked),
		RewardsPool: uint64(state.RewardsPool),
	}, nil
}

func (l *Ledger) TotalSupply() (uint64, error) {
	state, err := l.db.GetLedgerState(nil)
	if err != nil {
		return 0, err
	}
	return uint64(state.TotalSupply), nil
}

// BalanceOf returns the transferable balance of an address
func (l *Ledger) BalanceOf(address string) (uint64, error) {
	acct, err := l.account(address)
	if err != nil {
		return 0, err
	}
	return uint64(acct.Balance), nil
}

func (l *Ledger) Allowance(owner, spender string) (uint64, error) {
	owner, err := normalizeAddress(owner)
	if err != nil {
		return 0, err
	}
	spender, err = normalizeAddress(spender)
	if err != nil {
		return 0, err
	}
	return l.db.GetAllowance(owner, spender, nil)
}

// CanUseFaucet reports whether an address may claim from the faucet now and
// otherwise how many seconds remain until it may
func (l *Ledger) CanUseFaucet(address string) (bool, uint64, error) {
	acct, err := l.account(address)
	if err != nil {
		return false, 0, err
	}
	remaining := l.faucetWait(&acct, l.clock.Now().Unix())
	return remaining == 0, remaining, nil
}

func (l *Ledger) faucetWait(acct *models.Account, now int64) uint64 {
	if acct.LastFaucetClaim == 0 {
		return 0
	}
	next := acct.LastFaucetClaim + int64(l.params.FaucetCooldown.Seconds())
	if now >= next {
		return 0
	}
	return uint64(next - now) // #nosec G115
}

func (l *Ledger) Transfer(from, to string, amount uint64) error {
	return l.update(func(op *operation) error {
		return op.transfer(from, to, amount)
	})
}

func (l *Ledger) Approve(owner, spender string, amount uint64) error {
	return l.update(func(op *operation) error {
		return op.approve(owner, spender, amount)
	})
}

func (l *Ledger) TransferFrom(spender, from, to string, amount uint64) error {
	return l.update(func(op *operation) error {
		return op.transferFrom(spender, from, to, amount)
	})
}

// Faucet mints the configured faucet amount to an address
func (l *Ledger) Faucet(address string) error {
	return l.update(func(op *operation) error {
		return op.faucet(address)
	})
}

func (op *operation) transfer(from, to string, amount uint64) error {
	from, err := normalizeAddress(from)
	if err != nil {
		return err
	}
	to, err = normalizeAddress(to)
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	sender, err := op.account(from)
	if err != nil {
		return err
	}
	if uint64(sender.Balance) < amount {
		return fmt.Errorf(
			"%w: have %d, need %d",
			ErrInsufficientBalance,
			sender.Balance,
			amount,
		)
	}
	recipient, err := op.account(to)
	if err != nil {
		return err
	}
	// sender and recipient are the same record for a self transfer
	sender.Balance -= types.Uint64(amount)
	recipient.Balance += types.Uint64(amount)
	op.touch(sender)
	op.emit(TransferEventType, TransferEvent{
		From:   from,
		To:     to,
		Amount: amount,
	})
	return nil
}

func (op *operation) approve(owner, spender string, amount uint64) error {
	owner, err := normalizeAddress(owner)
	if err != nil {
		return err
	}
	spender, err = normalizeAddress(spender)
	if err != nil {
		return err
	}
	if err := op.db().SetAllowance(owner, spender, amount, op.txn); err != nil {
		return err
	}
	op.emit(ApprovalEventType, ApprovalEvent{
		Owner:   owner,
		Spender: spender,
		Amount:  amount,
	})
	return nil
}

func (op *operation) transferFrom(spender, from, to string, amount uint64) error {
	spender, err := normalizeAddress(spender)
	if err != nil {
		return err
	}
	from, err = normalizeAddress(from)
	if err != nil {
		return err
	}
	allowance, err := op.db().GetAllowance(from, spender, op.txn)
	if err != nil {
		return err
	}
	if allowance < amount {
		return fmt.Errorf(
			"%w: allowed %d, need %d",
			ErrInsufficientAllowance,
			allowance,
			amount,
		)
	}
	if err := op.transfer(from, to, amount); err != nil {
		return err
	}
	return op.db().SetAllowance(from, spender, allowance-amount, op.txn)
}

func (op *operation) faucet(address string) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}
	acct, err := op.account(address)
	if err != nil {
		return err
	}
	if wait := op.l.faucetWait(acct, op.nowSeconds); wait > 0 {
		return fmt.Errorf("%w: %d seconds remaining", ErrFaucetCooldown, wait)
	}
	if err := op.mint(acct, op.params().FaucetAmount); err != nil {
		return err
	}
	acct.LastFaucetClaim = op.nowSeconds
	op.touch(acct)
	return nil
}

// mint creates new units in an account's balance, bounded by max supply
func (op *operation) mint(acct *models.Account, amount uint64) error {
	state, err := op.ledgerState()
	if err != nil {
		return err
	}
	if amount > op.params().MaxSupply-min(op.params().MaxSupply, uint64(state.TotalSupply)) {
		return ErrMaxSupply
	}
	state.TotalSupply += types.Uint64(amount)
	acct.Balance += types.Uint64(amount)
	op.emit(TransferEventType, TransferEvent{
		To:     acct.Address,
		Amount: amount,
	})
	return nil
}
