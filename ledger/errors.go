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
	"errors"

	"github.com/blinklabs-io/agora/tx"
)

// Ledger rule failures. A transaction failing with one of these leaves the
// ledger untouched.
var (
	ErrInsufficientRank      = errors.New("insufficient rank")
	ErrInsufficientStake     = errors.New("insufficient stake")
	ErrAlreadyVoted          = errors.New("already voted")
	ErrNotStarted            = errors.New("voting has not started")
	ErrVotingEnded           = errors.New("voting has ended")
	ErrLockActive            = errors.New("stake lock is active")
	ErrNothingToClaim        = errors.New("nothing to claim")
	ErrNotFound              = errors.New("not found")
	ErrNoVotingPower         = errors.New("no voting power")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidLockPeriod     = errors.New("invalid lock period")
	ErrInvalidOption         = errors.New("invalid vote option")
	ErrInvalidOptions        = errors.New("invalid proposal options")
	ErrProposalCanceled      = errors.New("proposal is canceled")
	ErrProposalExecuted      = errors.New("proposal is executed")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrNotPassed             = errors.New("proposal has not passed")
	ErrExecutionDelay        = errors.New("execution delay has not elapsed")
	ErrFaucetCooldown        = errors.New("faucet cooldown active")
	ErrMaxSupply             = errors.New("max supply exceeded")
	ErrNotBadgeOwner         = errors.New("not badge owner")
	ErrInvalidComposition    = errors.New("invalid badge composition")
	ErrSelfDelegation        = errors.New("cannot delegate to self")
	ErrInvalidNonce          = errors.New("invalid nonce")
	ErrInvalidBadgeType      = errors.New("invalid badge type")
	ErrInvalidInput          = errors.New("invalid input")
)

var errorCodes = map[error]string{
	ErrInsufficientRank:      "InsufficientRank",
	ErrInsufficientStake:     "InsufficientStake",
	ErrAlreadyVoted:          "AlreadyVoted",
	ErrNotStarted:            "NotStarted",
	ErrVotingEnded:           "VotingEnded",
	ErrLockActive:            "LockActive",
	ErrNothingToClaim:        "NothingToClaim",
	ErrNotFound:              "NotFound",
	ErrNoVotingPower:         "NoVotingPower",
	ErrInvalidAmount:         "InvalidAmount",
	ErrInsufficientBalance:   "InsufficientBalance",
	ErrInsufficientAllowance: "InsufficientAllowance",
	ErrInvalidLockPeriod:     "InvalidLockPeriod",
	ErrInvalidOption:         "InvalidOption",
	ErrInvalidOptions:        "InvalidOptions",
	ErrProposalCanceled:      "ProposalCanceled",
	ErrProposalExecuted:      "ProposalExecuted",
	ErrNotAuthorized:         "NotAuthorized",
	ErrNotPassed:             "NotPassed",
	ErrExecutionDelay:        "ExecutionDelay",
	ErrFaucetCooldown:        "FaucetCooldown",
	ErrMaxSupply:             "MaxSupply",
	ErrNotBadgeOwner:         "NotBadgeOwner",
	ErrInvalidComposition:    "InvalidComposition",
	ErrSelfDelegation:        "SelfDelegation",
	ErrInvalidNonce:          "InvalidNonce",
	ErrInvalidBadgeType:      "InvalidBadgeType",
	ErrInvalidInput:          "InvalidInput",
	tx.ErrInvalidAddress:     "InvalidAddress",
	tx.ErrInvalidPayload:     "InvalidPayload",
	tx.ErrInvalidEncoding:    "InvalidEncoding",
	tx.ErrInvalidSignature:   "InvalidSignature",
	tx.ErrUnknownKind:        "UnknownKind",
}

// ErrorCode returns the stable name of a ledger rule failure, or an empty
// string when err is not one
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// IsRuleViolation reports whether err is a ledger rule failure rather than
// a storage or internal error
func IsRuleViolation(err error) bool {
	return ErrorCode(err) != ""
}
