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
	"strings"

	"github.com/blinklabs-io/agora/database/models"
)

const (
	minProposalOptions = 2
	maxProposalOptions = 6
	maxTitleLength     = 256
	maxLabelLength     = 128
	maxHashLength      = 128
)

// ProposalStatus is derived from a proposal's flags, its voting window and
// the current time. It is never stored.
type ProposalStatus uint8

const (
	ProposalPending ProposalStatus = iota
	ProposalActive
	ProposalCanceled
	ProposalFailed
	ProposalPassed
	ProposalExecuted
)

var proposalStatusNames = []string{
	"Pending",
	"Active",
	"Canceled",
	"Failed",
	"Passed",
	"Executed",
}

func (s ProposalStatus) String() string {
	if int(s) < len(proposalStatusNames) {
		return proposalStatusNames[s]
	}
	return fmt.Sprintf("ProposalStatus(%d)", s)
}

func (s ProposalStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DeriveStatus computes the status of a proposal at time now (unix seconds).
// Quorum is a minimum total of cast weight across all options.
func DeriveStatus(p *models.Proposal, now int64, quorum uint64) ProposalStatus {
	switch {
	case p.Canceled:
		return ProposalCanceled
	case p.Executed:
		return ProposalExecuted
	case now < p.StartTime:
		return ProposalPending
	case now <= p.EndTime:
		return ProposalActive
	case p.TotalVotes() >= quorum && p.ForVotes > p.AgainstVotes:
		return ProposalPassed
	default:
		return ProposalFailed
	}
}

// Proposal is the public view of a proposal
type Proposal struct {
	Proposer         string         `json:"proposer"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Options          []string       `json:"options"`
	Id               uint64         `json:"id"`
	StartTime        int64          `json:"startTime"`
	EndTime          int64          `json:"endTime"`
	ExecutionDelay   int64          `json:"executionDelay"`
	ForVotes         uint64         `json:"forVotes"`
	AgainstVotes     uint64         `json:"againstVotes"`
	AbstainVotes     uint64         `json:"abstainVotes"`
	ExecutedAt       int64          `json:"executedAt,omitempty"`
	CanceledAt       int64          `json:"canceledAt,omitempty"`
	Status           ProposalStatus `json:"status"`
	RequiresMultiSig bool           `json:"requiresMultiSig"`
	Executed         bool           `json:"executed"`
	Canceled         bool           `json:"canceled"`
}

func (l *Ledger) proposalView(p *models.Proposal, now int64) Proposal {
	return Proposal{
		Id:               p.ID,
		Proposer:         p.Proposer,
		Title:            p.Title,
		Description:      p.Description,
		Options:          p.OptionLabels(),
		StartTime:        p.StartTime,
		EndTime:          p.EndTime,
		ExecutionDelay:   p.ExecutionDelay,
		ForVotes:         uint64(p.ForVotes),
		AgainstVotes:     uint64(p.AgainstVotes),
		AbstainVotes:     uint64(p.AbstainVotes),
		ExecutedAt:       p.ExecutedAt,
		CanceledAt:       p.CanceledAt,
		Status:           DeriveStatus(p, now, l.params.Quorum),
		RequiresMultiSig: p.RequiresMultiSig,
		Executed:         p.Executed,
		Canceled:         p.Canceled,
	}
}

// GetProposal returns a proposal with its status as of now
func (l *Ledger) GetProposal(id uint64) (Proposal, error) {
	p, err := l.db.GetProposal(id, nil)
	if err != nil {
		return Proposal{}, proposalLookupError(id, err)
	}
	return l.proposalView(&p, l.clock.Now().Unix()), nil
}

func (l *Ledger) ProposalCount() (uint64, error) {
	state, err := l.db.GetLedgerState(nil)
	if err != nil {
		return 0, err
	}
	return state.ProposalCount, nil
}

func (l *Ledger) GetProposalOptions(id uint64) ([]string, error) {
	p, err := l.db.GetProposal(id, nil)
	if err != nil {
		return nil, proposalLookupError(id, err)
	}
	return p.OptionLabels(), nil
}

// ListProposals returns proposals newest first
func (l *Ledger) ListProposals(offset, limit int) ([]Proposal, error) {
	proposals, err := l.db.GetProposals(offset, limit, nil)
	if err != nil {
		return nil, err
	}
	now := l.clock.Now().Unix()
	ret := make([]Proposal, len(proposals))
	for i := range proposals {
		ret[i] = l.proposalView(&proposals[i], now)
	}
	return ret, nil
}

func (l *Ledger) Status(id uint64) (ProposalStatus, error) {
	p, err := l.db.GetProposal(id, nil)
	if err != nil {
		return 0, proposalLookupError(id, err)
	}
	return DeriveStatus(&p, l.clock.Now().Unix(), l.params.Quorum), nil
}

// GetProposalComments returns the comment hashes and their authors in
// posting order
func (l *Ledger) GetProposalComments(id uint64) ([]string, []string, error) {
	if _, err := l.db.GetProposal(id, nil); err != nil {
		return nil, nil, proposalLookupError(id, err)
	}
	comments, err := l.db.GetComments(id, nil)
	if err != nil {
		return nil, nil, err
	}
	hashes := make([]string, len(comments))
	authors := make([]string, len(comments))
	for i, comment := range comments {
		hashes[i] = comment.Hash
		authors[i] = comment.Author
	}
	return hashes, authors, nil
}

func (l *Ledger) GetProposalCommentCount(id uint64) (uint64, error) {
	if _, err := l.db.GetProposal(id, nil); err != nil {
		return 0, proposalLookupError(id, err)
	}
	return l.db.CountComments(id, nil)
}

// CreateProposal opens a proposal for voting from now until the end of the
// voting period and returns its id
func (l *Ledger) CreateProposal(
	proposer string,
	title string,
	description string,
	options []string,
	executionDelayDays uint32,
	requiresMultiSig bool,
) (uint64, error) {
	var ret uint64
	err := l.update(func(op *operation) error {
		var err error
		ret, err = op.createProposal(
			proposer,
			title,
			description,
			options,
			executionDelayDays,
			requiresMultiSig,
		)
		return err
	})
	return ret, err
}

// CancelProposal cancels a proposal that has not been executed. Only the
// proposer or the admin may cancel.
func (l *Ledger) CancelProposal(id uint64, caller string) error {
	return l.update(func(op *operation) error {
		return op.cancelProposal(id, caller)
	})
}

// ExecuteProposal marks a passed proposal as executed once its execution
// delay has elapsed
func (l *Ledger) ExecuteProposal(id uint64, caller string) error {
	return l.update(func(op *operation) error {
		return op.executeProposal(id, caller)
	})
}

// AddComment records the content hash of an off-ledger comment
func (l *Ledger) AddComment(id uint64, author string, hash string) error {
	return l.update(func(op *operation) error {
		return op.addComment(id, author, hash)
	})
}

func proposalLookupError(id uint64, err error) error {
	if errors.Is(err, models.ErrProposalNotFound) {
		return fmt.Errorf("%w: proposal %d", ErrNotFound, id)
	}
	return err
}

func (op *operation) proposal(id uint64) (*models.Proposal, error) {
	p, err := op.db().GetProposal(id, op.txn)
	if err != nil {
		return nil, proposalLookupError(id, err)
	}
	return &p, nil
}

func (op *operation) createProposal(
	proposer string,
	title string,
	description string,
	options []string,
	executionDelayDays uint32,
	requiresMultiSig bool,
) (uint64, error) {
	proposer, err := normalizeAddress(proposer)
	if err != nil {
		return 0, err
	}
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLength {
		return 0, fmt.Errorf(
			"%w: title must be 1 to %d bytes",
			ErrInvalidInput,
			maxTitleLength,
		)
	}
	if len(options) < minProposalOptions || len(options) > maxProposalOptions {
		return 0, fmt.Errorf(
			"%w: need %d to %d options, got %d",
			ErrInvalidOptions,
			minProposalOptions,
			maxProposalOptions,
			len(options),
		)
	}
	propOptions := make([]models.ProposalOption, len(options))
	for i, label := range options {
		label = strings.TrimSpace(label)
		if label == "" || len(label) > maxLabelLength {
			return 0, fmt.Errorf(
				"%w: option %d must be 1 to %d bytes",
				ErrInvalidOptions,
				i,
				maxLabelLength,
			)
		}
		propOptions[i].Label = label
	}
	if executionDelayDays > op.params().MaxExecutionDelayDays {
		return 0, fmt.Errorf(
			"%w: execution delay of %d days exceeds %d",
			ErrInvalidInput,
			executionDelayDays,
			op.params().MaxExecutionDelayDays,
		)
	}
	acct, err := op.account(proposer)
	if err != nil {
		return 0, err
	}
	if rank := DeriveRank(acct.Experience); rank < op.params().MinProposalRank {
		return 0, fmt.Errorf(
			"%w: %s is below %s",
			ErrInsufficientRank,
			rank,
			op.params().MinProposalRank,
		)
	}
	if uint64(acct.StakedAmount) < op.params().MinProposalStake {
		return 0, fmt.Errorf(
			"%w: staked %d, need %d",
			ErrInsufficientStake,
			acct.StakedAmount,
			op.params().MinProposalStake,
		)
	}
	state, err := op.ledgerState()
	if err != nil {
		return 0, err
	}
	state.ProposalCount++
	p := &models.Proposal{
		ID:               state.ProposalCount,
		Proposer:         proposer,
		Title:            title,
		Description:      description,
		Options:          propOptions,
		StartTime:        op.nowSeconds,
		EndTime:          op.nowSeconds + int64(op.params().VotingPeriod.Seconds()),
		ExecutionDelay:   int64(executionDelayDays) * secondsPerDay,
		RequiresMultiSig: requiresMultiSig,
	}
	if err := op.db().CreateProposal(p, op.txn); err != nil {
		return 0, err
	}
	acct.TotalProposals++
	op.awardExperience(
		acct,
		op.params().proposalExperience(len(options), requiresMultiSig),
	)
	if err := op.mintAutoBadge(acct, BadgeProposalCreator, "First Proposal"); err != nil {
		return 0, err
	}
	op.emit(ProposalCreatedEventType, ProposalCreatedEvent{
		ProposalId: p.ID,
		Proposer:   proposer,
		Title:      title,
		StartTime:  p.StartTime,
		EndTime:    p.EndTime,
	})
	return p.ID, nil
}

func (op *operation) cancelProposal(id uint64, caller string) error {
	caller, err := normalizeAddress(caller)
	if err != nil {
		return err
	}
	p, err := op.proposal(id)
	if err != nil {
		return err
	}
	if p.Executed {
		return ErrProposalExecuted
	}
	if p.Canceled {
		return ErrProposalCanceled
	}
	if caller != p.Proposer && caller != op.params().Admin {
		return fmt.Errorf(
			"%w: only the proposer or admin may cancel",
			ErrNotAuthorized,
		)
	}
	p.Canceled = true
	p.CanceledAt = op.nowSeconds
	if err := op.db().UpdateProposal(p, op.txn); err != nil {
		return err
	}
	op.emit(ProposalCanceledEventType, ProposalCanceledEvent{
		ProposalId: id,
		Canceler:   caller,
	})
	return nil
}

func (op *operation) executeProposal(id uint64, caller string) error {
	caller, err := normalizeAddress(caller)
	if err != nil {
		return err
	}
	p, err := op.proposal(id)
	if err != nil {
		return err
	}
	if p.Canceled {
		return ErrProposalCanceled
	}
	if p.Executed {
		return ErrProposalExecuted
	}
	if p.RequiresMultiSig && caller != op.params().Admin {
		return fmt.Errorf(
			"%w: multi-sig proposals are executed by the admin",
			ErrNotAuthorized,
		)
	}
	if status := DeriveStatus(p, op.nowSeconds, op.params().Quorum); status != ProposalPassed {
		return fmt.Errorf("%w: status is %s", ErrNotPassed, status)
	}
	if readyAt := p.EndTime + p.ExecutionDelay; op.nowSeconds < readyAt {
		return fmt.Errorf(
			"%w: executable from %d",
			ErrExecutionDelay,
			readyAt,
		)
	}
	p.Executed = true
	p.ExecutedAt = op.nowSeconds
	if err := op.db().UpdateProposal(p, op.txn); err != nil {
		return err
	}
	acct, err := op.account(caller)
	if err != nil {
		return err
	}
	op.awardExperience(acct, op.params().Experience.Execution)
	if err := op.mintAutoBadge(acct, BadgeExecution, "First Execution"); err != nil {
		return err
	}
	op.emit(ProposalExecutedEventType, ProposalExecutedEvent{
		ProposalId: id,
		Executor:   caller,
	})
	return nil
}

func (op *operation) addComment(id uint64, author string, hash string) error {
	author, err := normalizeAddress(author)
	if err != nil {
		return err
	}
	hash = strings.TrimSpace(hash)
	if hash == "" || len(hash) > maxHashLength {
		return fmt.Errorf(
			"%w: comment hash must be 1 to %d bytes",
			ErrInvalidInput,
			maxHashLength,
		)
	}
	if _, err := op.proposal(id); err != nil {
		return err
	}
	comment := &models.Comment{
		ProposalID: id,
		Author:     author,
		Hash:       hash,
		Timestamp:  op.nowSeconds,
	}
	if err := op.db().AddComment(comment, op.txn); err != nil {
		return err
	}
	acct, err := op.account(author)
	if err != nil {
		return err
	}
	op.awardExperience(acct, op.params().Experience.Comment)
	op.emit(CommentAddedEventType, CommentAddedEvent{
		ProposalId: id,
		Author:     author,
		Hash:       hash,
	})
	return nil
}
