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
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/agora/database"
	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/event"
	"github.com/blinklabs-io/agora/tx"
	"github.com/prometheus/client_golang/prometheus"
)

type LedgerConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Clock        Clock
	Params       *Params
}

// Ledger applies governance operations to the database. Every write runs in
// its own database transaction and either commits fully or not at all.
type Ledger struct {
	config  LedgerConfig
	db      *database.Database
	logger  *slog.Logger
	clock   Clock
	params  Params
	metrics ledgerMetrics
}

func New(cfg LedgerConfig) (*Ledger, error) {
	if cfg.Database == nil {
		return nil, errors.New("no database provided")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	params := DefaultParams()
	if cfg.Params != nil {
		params = *cfg.Params
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger params: %w", err)
	}
	l := &Ledger{
		config: cfg,
		db:     cfg.Database,
		logger: cfg.Logger.With("component", "ledger"),
		clock:  cfg.Clock,
		params: params,
	}
	l.metrics.init(cfg.PromRegistry)
	if err := l.applyGenesis(); err != nil {
		return nil, fmt.Errorf("failed to apply genesis: %w", err)
	}
	state, err := l.db.GetLedgerState(nil)
	if err != nil {
		return nil, err
	}
	l.metrics.update(&state)
	return l, nil
}

func (l *Ledger) Params() Params {
	return l.params
}

func (l *Ledger) Database() *database.Database {
	return l.db
}

// Now returns the current ledger time
func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}

func (l *Ledger) applyGenesis() error {
	return l.update(func(op *operation) error {
		state, err := op.ledgerState()
		if err != nil {
			return err
		}
		if state.GenesisApplied {
			return nil
		}
		for _, alloc := range l.params.Genesis {
			acct, err := op.account(alloc.Address)
			if err != nil {
				return err
			}
			if alloc.Balance > 0 {
				if err := op.mint(acct, alloc.Balance); err != nil {
					return err
				}
			}
			op.awardExperience(acct, alloc.Experience)
		}
		state.GenesisApplied = true
		l.logger.Info(
			"applied genesis allocations",
			"accounts", len(l.params.Genesis),
			"supply", uint64(state.TotalSupply),
		)
		return nil
	})
}

// update runs fn as a single atomic operation at the current clock time
func (l *Ledger) update(fn func(*operation) error) error {
	return l.updateAt(l.clock.Now(), fn)
}

func (l *Ledger) updateAt(now time.Time, fn func(*operation) error) error {
	return l.db.Transaction(true).Do(func(txn *database.Txn) error {
		return l.run(txn, now, fn)
	})
}

// run applies fn inside txn. Events raised by fn are published only once
// txn commits.
func (l *Ledger) run(
	txn *database.Txn,
	now time.Time,
	fn func(*operation) error,
) error {
	op := newOperation(l, txn, now)
	if err := fn(op); err != nil {
		return err
	}
	if err := op.flush(); err != nil {
		return err
	}
	events := op.events
	state := op.state
	txn.OnCommit(func() {
		if state != nil {
			l.metrics.update(state)
		}
		l.publish(events)
	})
	return nil
}

func (l *Ledger) publish(events []event.Event) {
	if l.config.EventBus == nil {
		return
	}
	for _, evt := range events {
		l.config.EventBus.Publish(evt.Type, evt)
	}
}

// ApplyResult is the outcome of applying a transaction
type ApplyResult struct {
	Err    error  // ledger rule failure, nil on success
	Code   string // stable name of Err
	Sender string
}

// RecordFunc persists the outcome of a transaction. It runs inside the
// database transaction that commits that outcome.
type RecordFunc func(txn *database.Txn, result ApplyResult) error

// ApplyTx applies a signed transaction at the given time. A transaction that
// breaks a ledger rule changes nothing except consuming its nonce. The
// returned error is only set for storage failures, in which case nothing
// was committed.
func (l *Ledger) ApplyTx(
	t *tx.Tx,
	at time.Time,
	record RecordFunc,
) (ApplyResult, error) {
	var result ApplyResult
	sender, err := t.Sender()
	if err == nil {
		result.Sender = sender
		err = l.db.Transaction(true).Do(func(txn *database.Txn) error {
			if err := l.run(txn, at, func(op *operation) error {
				return op.applyTx(t, sender)
			}); err != nil {
				return err
			}
			if record != nil {
				return record(txn, result)
			}
			return nil
		})
		if err == nil {
			l.metrics.txApplied.WithLabelValues(string(t.Kind)).Inc()
			return result, nil
		}
	}
	if !IsRuleViolation(err) {
		return result, err
	}
	result.Err = err
	result.Code = ErrorCode(err)
	l.metrics.txFailed.WithLabelValues(string(t.Kind), result.Code).Inc()
	l.logger.Debug(
		"transaction rejected",
		"tx", t.HashHex(),
		"kind", t.Kind,
		"code", result.Code,
		"error", err,
	)
	err = l.db.Transaction(true).Do(func(txn *database.Txn) error {
		// A failed transaction still uses up its nonce when it was the
		// one expected
		if sender != "" && !errors.Is(result.Err, ErrInvalidNonce) {
			if err := l.run(txn, at, func(op *operation) error {
				acct, err := op.account(sender)
				if err != nil {
					return err
				}
				if acct.Nonce == t.Nonce {
					acct.Nonce++
				}
				return nil
			}); err != nil {
				return err
			}
		}
		if record != nil {
			return record(txn, result)
		}
		return nil
	})
	return result, err
}

// ValidateTx checks a transaction for admission to the mempool without
// applying it. The nonce may run ahead of the account nonce to allow
// several queued transactions from one sender.
func (l *Ledger) ValidateTx(t *tx.Tx) (string, error) {
	if !t.Kind.Valid() {
		return "", fmt.Errorf("%w: %s", tx.ErrUnknownKind, t.Kind)
	}
	sender, err := t.Sender()
	if err != nil {
		return "", err
	}
	if _, err := t.DecodePayload(); err != nil {
		return "", err
	}
	acct, err := l.account(sender)
	if err != nil {
		return "", err
	}
	if t.Nonce < acct.Nonce {
		return "", fmt.Errorf(
			"%w: nonce %d is below account nonce %d",
			ErrInvalidNonce,
			t.Nonce,
			acct.Nonce,
		)
	}
	return sender, nil
}

// NextNonce returns the nonce the next transaction from address must carry
func (l *Ledger) NextNonce(address string) (uint64, error) {
	acct, err := l.account(address)
	if err != nil {
		return 0, err
	}
	return acct.Nonce, nil
}

// account reads committed account state, treating a missing account as the
// zero account
func (l *Ledger) account(address string) (models.Account, error) {
	addr, err := tx.NormalizeAddress(address)
	if err != nil {
		return models.Account{}, err
	}
	acct, err := l.db.GetAccount(addr, nil)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return models.Account{Address: addr}, nil
		}
		return models.Account{}, err
	}
	return acct, nil
}
