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

import "github.com/blinklabs-io/agora/ledger"

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	IsHealthy bool   `json:"is_healthy"`
	Height    uint64 `json:"height"`
}

// InfoResponse is returned by GET /api/v0/info.
type InfoResponse struct {
	Token       ledger.TokenInfo `json:"token"`
	Params      ParamsResponse   `json:"params"`
	Height      uint64           `json:"height"`
	TipHash     string           `json:"tipHash,omitempty"`
	MempoolSize int              `json:"mempoolSize"`
	Version     string           `json:"version"`
}

// ParamsResponse carries the governance parameters clients need to build
// valid transactions
type ParamsResponse struct {
	Admin                 string            `json:"admin,omitempty"`
	MinProposalRank       string            `json:"minProposalRank"`
	LockMultipliers       map[uint32]uint32 `json:"lockMultipliers"`
	VotingPeriodSeconds   int64             `json:"votingPeriodSeconds"`
	FaucetCooldownSeconds int64             `json:"faucetCooldownSeconds"`
	Quorum                uint64            `json:"quorum"`
	MinProposalStake      uint64            `json:"minProposalStake"`
	FaucetAmount          uint64            `json:"faucetAmount"`
	EarlyExitPenaltyBps   uint32            `json:"earlyExitPenaltyBps"`
	RewardRateBps         uint32            `json:"rewardRateBps"`
	MaxExecutionDelayDays uint32            `json:"maxExecutionDelayDays"`
}

// AccountResponse is returned by GET /api/v0/accounts/{address}.
type AccountResponse struct {
	Address string             `json:"address"`
	Stake   ledger.StakeInfo   `json:"stake"`
	Stats   ledger.UserStats   `json:"stats"`
	Profile ledger.UserProfile `json:"profile"`
	Balance uint64             `json:"balance"`
	Nonce   uint64             `json:"nonce"`
}

type FaucetResponse struct {
	Address     string `json:"address"`
	CanUse      bool   `json:"canUse"`
	WaitSeconds uint64 `json:"waitSeconds"`
}

type AllowanceResponse struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  uint64 `json:"amount"`
}

type BadgesResponse struct {
	Address  string   `json:"address"`
	BadgeIds []uint64 `json:"badgeIds"`
}

type CommentResponse struct {
	Hash   string `json:"hash"`
	Author string `json:"author"`
}

type RankResponse struct {
	Name  string      `json:"name"`
	Score uint64      `json:"score"`
	Rank  ledger.Rank `json:"rank"`
}

// SubmitRequest is the JSON form of a transaction submission
type SubmitRequest struct {
	Tx string `json:"tx"`
}

type SubmitResponse struct {
	Hash string `json:"hash"`
}

const (
	TxStatusPending = "pending"
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
)

// TxResponse is returned by GET /api/v0/tx/{hash}.
type TxResponse struct {
	Hash          string `json:"hash"`
	Status        string `json:"status"`
	Sender        string `json:"sender"`
	Kind          string `json:"kind"`
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"errorCode,omitempty"`
	Nonce         uint64 `json:"nonce"`
	BlockHeight   uint64 `json:"blockHeight,omitempty"`
	Confirmations uint64 `json:"confirmations"`
	Index         uint32 `json:"index"`
}

// BlockResponse is returned by the block endpoints.
type BlockResponse struct {
	Hash          string   `json:"hash"`
	PrevHash      string   `json:"prevHash"`
	TxHashes      []string `json:"txHashes,omitempty"`
	Height        uint64   `json:"height"`
	Timestamp     int64    `json:"timestamp"`
	Confirmations uint64   `json:"confirmations"`
	TxCount       uint32   `json:"txCount"`
}
