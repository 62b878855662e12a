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

	"github.com/blinklabs-io/agora/tx"
)

// applyTx checks the sender's nonce, performs the operation named by the
// transaction kind and consumes the nonce
func (op *operation) applyTx(t *tx.Tx, sender string) error {
	acct, err := op.account(sender)
	if err != nil {
		return err
	}
	if t.Nonce != acct.Nonce {
		return fmt.Errorf(
			"%w: expected %d, got %d",
			ErrInvalidNonce,
			acct.Nonce,
			t.Nonce,
		)
	}
	payload, err := t.DecodePayload()
	if err != nil {
		return err
	}
	if err := op.dispatch(sender, payload); err != nil {
		return err
	}
	acct.Nonce++
	return nil
}

func (op *operation) dispatch(sender string, payload any) error {
	switch p := payload.(type) {
	case *tx.Transfer:
		return op.transfer(sender, p.To, p.Amount)
	case *tx.Approve:
		return op.approve(sender, p.Spender, p.Amount)
	case *tx.TransferFrom:
		return op.transferFrom(sender, p.From, p.To, p.Amount)
	case *tx.Faucet:
		return op.faucet(sender)
	case *tx.Stake:
		return op.stake(sender, p.Amount, p.LockDays)
	case *tx.Unstake:
		return op.unstake(sender, p.Amount, p.AcceptPenalty)
	case *tx.ClaimReward:
		_, err := op.claimReward(sender)
		return err
	case *tx.CreateProposal:
		_, err := op.createProposal(
			sender,
			p.Title,
			p.Description,
			p.Options,
			p.ExecutionDelayDays,
			p.RequiresMultiSig,
		)
		return err
	case *tx.Vote:
		return op.vote(p.ProposalId, sender, p.Option)
	case *tx.CancelProposal:
		return op.cancelProposal(p.ProposalId, sender)
	case *tx.ExecuteProposal:
		return op.executeProposal(p.ProposalId, sender)
	case *tx.AddComment:
		return op.addComment(p.ProposalId, sender, p.Hash)
	case *tx.Delegate:
		return op.delegate(sender, p.To)
	case *tx.Undelegate:
		return op.undelegate(sender)
	case *tx.MintBadge:
		_, err := op.adminMintBadge(sender, p.To, BadgeType(p.BadgeType), p.Name)
		return err
	case *tx.ComposeBadges:
		_, err := op.composeBadges(sender, p.BadgeIds, p.Name)
		return err
	case *tx.SetBadgeImage:
		return op.setBadgeImage(sender, BadgeType(p.BadgeType), p.Cid)
	default:
		return fmt.Errorf("%w: %T", tx.ErrInvalidPayload, payload)
	}
}
