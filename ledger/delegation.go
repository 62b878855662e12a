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

import "fmt"

// Delegate assigns the voting weight of from's stake to another address
func (l *Ledger) Delegate(from, to string) error {
	return l.update(func(op *operation) error {
		return op.delegate(from, to)
	})
}

// Undelegate takes back the voting weight of from's stake
func (l *Ledger) Undelegate(from string) error {
	return l.update(func(op *operation) error {
		return op.undelegate(from)
	})
}

// GetDelegate returns the address from delegates to, or an empty string
func (l *Ledger) GetDelegate(from string) (string, error) {
	acct, err := l.account(from)
	if err != nil {
		return "", err
	}
	return acct.DelegatedTo, nil
}

func (op *operation) delegate(from, to string) error {
	from, err := normalizeAddress(from)
	if err != nil {
		return err
	}
	to, err = normalizeAddress(to)
	if err != nil {
		return err
	}
	if from == to {
		return ErrSelfDelegation
	}
	acct, err := op.account(from)
	if err != nil {
		return err
	}
	if acct.DelegatedTo == to {
		return fmt.Errorf("%w: already delegated to %s", ErrInvalidInput, to)
	}
	acct.DelegatedTo = to
	op.awardExperience(acct, op.params().Experience.Delegation)
	if err := op.mintAutoBadge(acct, BadgeDelegation, "First Delegation"); err != nil {
		return err
	}
	op.emit(DelegatedEventType, DelegatedEvent{
		From: from,
		To:   to,
	})
	return nil
}

func (op *operation) undelegate(from string) error {
	from, err := normalizeAddress(from)
	if err != nil {
		return err
	}
	acct, err := op.account(from)
	if err != nil {
		return err
	}
	if acct.DelegatedTo == "" {
		return fmt.Errorf("%w: not delegated", ErrInvalidInput)
	}
	acct.DelegatedTo = ""
	op.touch(acct)
	op.emit(DelegatedEventType, DelegatedEvent{
		From: from,
	})
	return nil
}
