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
	"fmt"
	"time"

	"github.com/blinklabs-io/agora/database"
	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/tx"
)

// operation is the working set of one atomic ledger write. Records are
// loaded once through the open transaction and written back by flush.
type operation struct {
	l          *Ledger
	txn        *database.Txn
	now        time.Time
	accounts   map[string]*models.Account
	originals  map[string]models.Account
	order      []string
	state      *models.LedgerState
	origState  models.LedgerState
	events     []event.Event
	nowSeconds int64
}

func newOperation(l *Ledger, txn *database.Txn, now time.Time) *operation {
	return &operation{
		l:          l,
		txn:        txn,
		now:        now,
		nowSeconds: now.Unix(),
		accounts:   make(map[string]*models.Account),
		originals:  make(map[string]models.Account),
	}
}

func (op *operation) params() *Params {
	return &op.l.params
}

func (op *operation) db() *database.Database {
	return op.l.db
}

// account returns the working copy of an account, loading it on first use.
// Unknown addresses start from the zero account.
func (op *operation) account(address string) (*models.Account, error) {
	if acct, ok := op.accounts[address]; ok {
		return acct, nil
	}
	acct, err := op.db().GetAccount(address, op.txn)
	if err != nil {
		if !errors.Is(err, models.ErrAccountNotFound) {
			return nil, err
		}
		acct = models.Account{Address: address}
	}
	op.originals[address] = acct
	op.accounts[address] = &acct
	op.order = append(op.order, address)
	return &acct, nil
}

func (op *operation) ledgerState() (*models.LedgerState, error) {
	if op.state != nil {
		return op.state, nil
	}
	state, err := op.db().GetLedgerState(op.txn)
	if err != nil {
		return nil, err
	}
	op.origState = state
	op.state = &state
	return op.state, nil
}

// flush writes back every record that changed
func (op *operation) flush() error {
	for _, address := range op.order {
		acct := op.accounts[address]
		if *acct == op.originals[address] {
			continue
		}
		if err := op.db().SetAccount(acct, op.txn); err != nil {
			return fmt.Errorf("save account %s: %w", address, err)
		}
	}
	if op.state != nil && *op.state != op.origState {
		if err := op.db().SetLedgerState(op.state, op.txn); err != nil {
			return fmt.Errorf("save ledger state: %w", err)
		}
	}
	return nil
}

func (op *operation) emit(evtType event.EventType, data any) {
	op.events = append(op.events, event.NewEventAt(evtType, data, op.now))
}

// touch records activity on an account
func (op *operation) touch(acct *models.Account) {
	acct.LastActivity = op.nowSeconds
}

func normalizeAddress(address string) (string, error) {
	addr, err := tx.NormalizeAddress(address)
	if err != nil {
		return "", fmt.Errorf("%w: %q", tx.ErrInvalidAddress, address)
	}
	return addr, nil
}
