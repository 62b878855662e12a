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
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/agora/chain"
	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/tx"
)

const (
	maxTxSubmitBytes = 64 * 1024
	maxBlockWait     = 60 * time.Second
	cborContentType  = "application/cbor"
)

func decodeHex(val string) ([]byte, error) {
	val = strings.TrimPrefix(strings.TrimPrefix(val, "0x"), "0X")
	return hex.DecodeString(val)
}

// handleTxSubmit handles POST /api/v0/tx/submit. The body is either the raw
// CBOR transaction with Content-Type application/cbor, or a JSON object
// carrying it hex encoded.
func (s *Server) handleTxSubmit(
	w http.ResponseWriter,
	r *http.Request,
) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTxSubmitBytes))
	if err != nil {
		s.writeError(w, r, badRequest("failed to read body: %s", err))
		return
	}
	txBytes := body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != cborContentType {
		var req SubmitRequest
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, r, badRequest("invalid JSON body: %s", err))
			return
		}
		txBytes, err = decodeHex(req.Tx)
		if err != nil || len(txBytes) == 0 {
			s.writeError(w, r, badRequest("invalid transaction hex"))
			return
		}
	}
	hash, err := s.node.Mempool().AddTransaction(txBytes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{Hash: hash})
}

// handleTx handles GET /api/v0/tx/{hash} and returns the receipt of an
// included transaction, or its pending state while in the mempool.
func (s *Server) handleTx(
	w http.ResponseWriter,
	r *http.Request,
) {
	hash, err := decodeHex(r.PathValue("hash"))
	if err != nil || len(hash) != 32 {
		s.writeError(w, r, badRequest("invalid transaction hash"))
		return
	}
	hashHex := hex.EncodeToString(hash)
	status, err := s.node.Chain().TxStatus(hash)
	if err == nil {
		resp := TxResponse{
			Hash:          hashHex,
			Status:        TxStatusSuccess,
			Sender:        status.Sender,
			Kind:          status.Kind,
			Nonce:         status.Nonce,
			BlockHeight:   status.BlockHeight,
			Index:         status.Index,
			Confirmations: status.Confirmations,
		}
		if !status.Success {
			resp.Status = TxStatusFailed
			resp.Error = status.Error
			resp.ErrorCode = status.ErrorCode
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if !errors.Is(err, models.ErrReceiptNotFound) {
		s.writeError(w, r, err)
		return
	}
	pending, ok := s.node.Mempool().GetTransaction(hashHex)
	if !ok {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TxResponse{
		Hash:   hashHex,
		Status: TxStatusPending,
		Sender: pending.Sender,
		Kind:   string(pending.Tx.Kind),
		Nonce:  pending.Tx.Nonce,
	})
}

func (s *Server) blockResponse(
	header models.Block,
	withTxs bool,
) (BlockResponse, error) {
	resp := BlockResponse{
		Hash:      hex.EncodeToString(header.Hash),
		PrevHash:  hex.EncodeToString(header.PrevHash),
		Height:    header.Height,
		Timestamp: header.Timestamp,
		TxCount:   header.TxCount,
	}
	if tipHeight := s.node.Chain().Height(); tipHeight >= header.Height {
		resp.Confirmations = tipHeight - header.Height + 1
	}
	if !withTxs {
		return resp, nil
	}
	block, err := s.node.Chain().BlockBody(header.Height)
	if err != nil {
		return resp, err
	}
	resp.TxHashes = make([]string, 0, len(block.Txs))
	for _, txCbor := range block.Txs {
		tmpTx, err := tx.Decode(txCbor)
		if err != nil {
			return resp, err
		}
		resp.TxHashes = append(resp.TxHashes, tmpTx.HashHex())
	}
	return resp, nil
}

// handleLatestBlock handles GET /api/v0/blocks/latest and
// returns the latest block.
func (s *Server) handleLatestBlock(
	w http.ResponseWriter,
	r *http.Request,
) {
	tip, ok := s.node.Chain().Tip()
	if !ok {
		s.writeError(w, r, models.ErrBlockNotFound)
		return
	}
	resp, err := s.blockResponse(tip, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBlock handles GET /api/v0/blocks/{height}.
func (s *Server) handleBlock(
	w http.ResponseWriter,
	r *http.Request,
) {
	height, err := pathUint(r, "height")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	header, err := s.node.Chain().Block(height)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.blockResponse(header, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBlocks handles GET /api/v0/blocks?from=H&count=N&wait=S. It returns
// up to count blocks starting at height from. With wait set, a request at
// the chain tip waits up to that many seconds for the next block.
func (s *Server) handleBlocks(
	w http.ResponseWriter,
	r *http.Request,
) {
	query := r.URL.Query()
	var from uint64
	if fromParam := query.Get("from"); fromParam != "" {
		var err error
		from, err = strconv.ParseUint(fromParam, 10, 64)
		if err != nil {
			s.writeError(w, r, badRequest("invalid from: %q", fromParam))
			return
		}
	}
	count := s.config.MaxBlockListCount
	if countParam := query.Get("count"); countParam != "" {
		tmpCount, err := strconv.Atoi(countParam)
		if err != nil || tmpCount < 1 {
			s.writeError(w, r, badRequest("invalid count: %q", countParam))
			return
		}
		count = min(tmpCount, s.config.MaxBlockListCount)
	}
	var wait time.Duration
	if waitParam := query.Get("wait"); waitParam != "" {
		waitSecs, err := strconv.ParseUint(waitParam, 10, 32)
		if err != nil {
			s.writeError(w, r, badRequest("invalid wait: %q", waitParam))
			return
		}
		wait = min(time.Duration(waitSecs)*time.Second, maxBlockWait)
	}
	iter := s.node.Chain().FromHeight(from)
	resp := make([]BlockResponse, 0, count)
	for len(resp) < count {
		var result *chain.ChainIteratorResult
		var err error
		if len(resp) == 0 && wait > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), wait)
			result, err = iter.Next(ctx, true)
			cancel()
		} else {
			result, err = iter.Next(r.Context(), false)
		}
		if err != nil {
			if errors.Is(err, chain.ErrIteratorChainTip) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, context.Canceled) {
				break
			}
			s.writeError(w, r, err)
			return
		}
		tmpResp, err := s.blockResponse(result.Block, false)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp = append(resp, tmpResp)
	}
	writeJSON(w, http.StatusOK, resp)
}
