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

package api

import (
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/blinklabs-io/agora/internal/version"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/blinklabs-io/agora/tx"
)

func pathUint(r *http.Request, name string) (uint64, error) {
	val, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, badRequest("invalid %s: %q", name, r.PathValue(name))
	}
	return val, nil
}

func pathAddress(r *http.Request, name string) (string, error) {
	return tx.NormalizeAddress(r.PathValue(name))
}

// handleHealth handles GET /health and returns node health
// status.
func (s *Server) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
		Height:    s.node.Chain().Height(),
	})
}

// handleInfo handles GET /api/v0/info and returns token supply, governance
// parameters and the chain tip.
func (s *Server) handleInfo(
	w http.ResponseWriter,
	r *http.Request,
) {
	l := s.node.Ledger()
	tokenInfo, err := l.TokenInfo()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params := l.Params()
	resp := InfoResponse{
		Token: tokenInfo,
		Params: ParamsResponse{
			Admin:                 params.Admin,
			MinProposalRank:       ledger.RankName(params.MinProposalRank),
			LockMultipliers:       params.LockMultipliers,
			VotingPeriodSeconds:   int64(params.VotingPeriod.Seconds()),
			FaucetCooldownSeconds: int64(params.FaucetCooldown.Seconds()),
			Quorum:                params.Quorum,
			MinProposalStake:      params.MinProposalStake,
			FaucetAmount:          params.FaucetAmount,
			EarlyExitPenaltyBps:   params.EarlyExitPenaltyBps,
			RewardRateBps:         params.RewardRateBps,
			MaxExecutionDelayDays: params.MaxExecutionDelayDays,
		},
		MempoolSize: s.node.Mempool().Len(),
		Version:     version.GetVersionString(),
	}
	if tip, ok := s.node.Chain().Tip(); ok {
		resp.Height = tip.Height
		resp.TipHash = hex.EncodeToString(tip.Hash)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAccount handles GET /api/v0/accounts/{address} and returns the
// combined account view.
func (s *Server) handleAccount(
	w http.ResponseWriter,
	r *http.Request,
) {
	address, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	l := s.node.Ledger()
	resp := AccountResponse{Address: address}
	if resp.Balance, err = l.BalanceOf(address); err != nil {
		s.writeError(w, r, err)
		return
	}
	if resp.Nonce, err = l.NextNonce(address); err != nil {
		s.writeError(w, r, err)
		return
	}
	if resp.Stake, err = l.Stakes(address); err != nil {
		s.writeError(w, r, err)
		return
	}
	if resp.Stats, err = l.GetUserStats(address); err != nil {
		s.writeError(w, r, err)
		return
	}
	if resp.Profile, err = l.GetUserProfile(address); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAccountStake handles GET /api/v0/accounts/{address}/stake.
func (s *Server) handleAccountStake(
	w http.ResponseWriter,
	r *http.Request,
) {
	address, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := s.node.Ledger().Stakes(address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleAccountStats handles GET /api/v0/accounts/{address}/stats.
func (s *Server) handleAccountStats(
	w http.ResponseWriter,
	r *http.Request,
) {
	address, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := s.node.Ledger().GetUserStats(address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleAccountProfile handles GET /api/v0/accounts/{address}/profile.
func (s *Server) handleAccountProfile(
	w http.ResponseWriter,
	r *http.Request,
) {
	address, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	profile, err := s.node.Ledger().GetUserProfile(address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleAccountBadges handles GET /api/v0/accounts/{address}/badges.
func (s *Server) handleAccountBadges(
	w http.ResponseWriter,
	r *http.Request,
) {
	address, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ids, err := s.node.Ledger().GetUserBadges(address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, BadgesResponse{
		Address:  address,
		BadgeIds: ids,
	})
}

// handleAccountFaucet handles GET /api/v0/accounts/{address}/faucet.
func (s *Server) handleAccountFaucet(
	w http.ResponseWriter,
	r *http.Request,
) {
	address, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	canUse, wait, err := s.node.Ledger().CanUseFaucet(address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FaucetResponse{
		Address:     address,
		CanUse:      canUse,
		WaitSeconds: wait,
	})
}

// handleAccountAllowance handles
// GET /api/v0/accounts/{address}/allowance/{spender}.
func (s *Server) handleAccountAllowance(
	w http.ResponseWriter,
	r *http.Request,
) {
	owner, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	spender, err := pathAddress(r, "spender")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := s.node.Ledger().Allowance(owner, spender)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AllowanceResponse{
		Owner:   owner,
		Spender: spender,
		Amount:  amount,
	})
}

// handleProposals handles GET /api/v0/proposals and returns a page of
// proposals, newest first.
func (s *Server) handleProposals(
	w http.ResponseWriter,
	r *http.Request,
) {
	params, err := ParsePagination(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	l := s.node.Ledger()
	total, err := l.ProposalCount()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	proposals, err := l.ListProposals(params.Offset(), params.Count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if proposals == nil {
		proposals = []ledger.Proposal{}
	}
	SetPaginationHeaders(w, int(total), params) // #nosec G115
	writeJSON(w, http.StatusOK, proposals)
}

// handleProposal handles GET /api/v0/proposals/{id}.
func (s *Server) handleProposal(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	proposal, err := s.node.Ledger().GetProposal(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

// handleProposalVote handles GET /api/v0/proposals/{id}/votes/{address}.
func (s *Server) handleProposalVote(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	address, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	vote, err := s.node.Ledger().GetUserVote(id, address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vote)
}

// handleProposalComments handles GET /api/v0/proposals/{id}/comments.
func (s *Server) handleProposalComments(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hashes, authors, err := s.node.Ledger().GetProposalComments(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := make([]CommentResponse, 0, len(hashes))
	for i := range hashes {
		resp = append(resp, CommentResponse{
			Hash:   hashes[i],
			Author: authors[i],
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleProposalOptions handles GET /api/v0/proposals/{id}/options.
func (s *Server) handleProposalOptions(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	options, err := s.node.Ledger().GetProposalOptions(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

// handleBadge handles GET /api/v0/badges/{id}.
func (s *Server) handleBadge(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	badge, err := s.node.Ledger().GetBadge(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, badge)
}

// handleRank handles GET /api/v0/ranks/{score} and returns the rank a
// reputation score maps to.
func (s *Server) handleRank(
	w http.ResponseWriter,
	r *http.Request,
) {
	score, err := pathUint(r, "score")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rank := ledger.DeriveRank(score)
	writeJSON(w, http.StatusOK, RankResponse{
		Score: score,
		Rank:  rank,
		Name:  ledger.RankName(rank),
	})
}
