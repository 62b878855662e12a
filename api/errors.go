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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/blinklabs-io/agora/database/models"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/blinklabs-io/agora/mempool"
	"github.com/blinklabs-io/agora/tx"
)

// ErrBadRequest marks malformed request input
var ErrBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// writeJSON writes a JSON response with the given status
// code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// errorStatus maps an error to an HTTP status and a stable error code
func errorStatus(err error) (int, string) {
	var fullErr *mempool.MempoolFullError
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrInvalidPaginationParameters):
		return http.StatusBadRequest, "BadRequest"
	case errors.Is(err, tx.ErrInvalidAddress):
		return http.StatusBadRequest, ledger.ErrorCode(err)
	case errors.Is(err, tx.ErrInvalidEncoding):
		return http.StatusBadRequest, ledger.ErrorCode(err)
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, ledger.ErrorCode(err)
	case errors.Is(err, models.ErrBlockNotFound),
		errors.Is(err, models.ErrReceiptNotFound),
		errors.Is(err, models.ErrTxNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, ledger.ErrAlreadyVoted):
		return http.StatusConflict, ledger.ErrorCode(err)
	case errors.Is(err, mempool.ErrDuplicateTx):
		return http.StatusConflict, "DuplicateTx"
	case errors.As(err, &fullErr):
		return http.StatusServiceUnavailable, "MempoolFull"
	case errors.Is(err, mempool.ErrStopped):
		return http.StatusServiceUnavailable, "Unavailable"
	case ledger.IsRuleViolation(err):
		return http.StatusUnprocessableEntity, ledger.ErrorCode(err)
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

// writeError writes an {error, code} response for err. Internal errors are
// logged and not echoed to the client.
func (s *Server) writeError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error(
			"request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", w.Header().Get(RequestIdHeader),
			"error", err,
		)
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{
		Error: msg,
		Code:  code,
	})
}
