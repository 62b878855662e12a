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

package tx

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// DefaultExecutionDelayDays applies when a create_proposal payload omits the delay
const DefaultExecutionDelayDays = 2

// Kind names the ledger operation a transaction performs
type Kind string

const (
	KindTransfer        Kind = "transfer"
	KindApprove         Kind = "approve"
	KindTransferFrom    Kind = "transfer_from"
	KindFaucet          Kind = "faucet"
	KindStake           Kind = "stake"
	KindUnstake         Kind = "unstake"
	KindClaimReward     Kind = "claim_reward"
	KindCreateProposal  Kind = "create_proposal"
	KindVote            Kind = "vote"
	KindCancelProposal  Kind = "cancel_proposal"
	KindExecuteProposal Kind = "execute_proposal"
	KindAddComment      Kind = "add_comment"
	KindDelegate        Kind = "delegate"
	KindUndelegate      Kind = "undelegate"
	KindMintBadge       Kind = "mint_badge"
	KindComposeBadges   Kind = "compose_badges"
	KindSetBadgeImage   Kind = "set_badge_image"
)

var payloadTypes = map[Kind]func() any{
	KindTransfer:        func() any { return &Transfer{} },
	KindApprove:         func() any { return &Approve{} },
	KindTransferFrom:    func() any { return &TransferFrom{} },
	KindFaucet:          func() any { return &Faucet{} },
	KindStake:           func() any { return &Stake{} },
	KindUnstake:         func() any { return &Unstake{} },
	KindClaimReward:     func() any { return &ClaimReward{} },
	KindCreateProposal: func() any {
		return &CreateProposal{ExecutionDelayDays: DefaultExecutionDelayDays}
	},
	KindVote:            func() any { return &Vote{} },
	KindCancelProposal:  func() any { return &CancelProposal{} },
	KindExecuteProposal: func() any { return &ExecuteProposal{} },
	KindAddComment:      func() any { return &AddComment{} },
	KindDelegate:        func() any { return &Delegate{} },
	KindUndelegate:      func() any { return &Undelegate{} },
	KindMintBadge:       func() any { return &MintBadge{} },
	KindComposeBadges:   func() any { return &ComposeBadges{} },
	KindSetBadgeImage:   func() any { return &SetBadgeImage{} },
}

func (k Kind) Valid() bool {
	_, ok := payloadTypes[k]
	return ok
}

// Kinds returns every known transaction kind
func Kinds() []Kind {
	ret := make([]Kind, 0, len(payloadTypes))
	for k := range payloadTypes {
		ret = append(ret, k)
	}
	return ret
}

func newPayload(kind Kind) (any, error) {
	fn, ok := payloadTypes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return fn(), nil
}

func checkPayloadType(kind Kind, payload any) error {
	want, err := newPayload(kind)
	if err != nil {
		return err
	}
	got := reflect.TypeOf(payload)
	if got != nil && got.Kind() == reflect.Pointer {
		got = got.Elem()
	}
	if got != reflect.TypeOf(want).Elem() {
		return fmt.Errorf("%w: %T for kind %s", ErrInvalidPayload, payload, kind)
	}
	return nil
}

// ParsePayloadJSON decodes a JSON payload for the given kind
func ParsePayloadJSON(kind Kind, data []byte) (any, error) {
	payload, err := newPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return payload, nil
}

// The CBOR encoder falls back to the json tags for field names

type Transfer struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type Approve struct {
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

type TransferFrom struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type Faucet struct{}

type Stake struct {
	Amount   uint64 `json:"amount"`
	LockDays uint32 `json:"lockDays"`
}

type Unstake struct {
	Amount        uint64 `json:"amount"`
	AcceptPenalty bool   `json:"acceptPenalty"`
}

type ClaimReward struct{}

type CreateProposal struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Options            []string `json:"options"`
	ExecutionDelayDays uint32   `json:"executionDelayDays"`
	RequiresMultiSig   bool     `json:"requiresMultiSig"`
}

type Vote struct {
	ProposalId uint64 `json:"proposalId"`
	Option     uint8  `json:"option"`
}

type CancelProposal struct {
	ProposalId uint64 `json:"proposalId"`
}

type ExecuteProposal struct {
	ProposalId uint64 `json:"proposalId"`
}

type AddComment struct {
	ProposalId uint64 `json:"proposalId"`
	Hash       string `json:"hash"`
}

type Delegate struct {
	To string `json:"to"`
}

type Undelegate struct{}

type MintBadge struct {
	To        string `json:"to"`
	BadgeType uint8  `json:"badgeType"`
	Name      string `json:"name"`
}

type ComposeBadges struct {
	BadgeIds []uint64 `json:"badgeIds"`
	Name     string   `json:"name"`
}

type SetBadgeImage struct {
	BadgeType uint8  `json:"badgeType"`
	Cid       string `json:"cid"`
}
