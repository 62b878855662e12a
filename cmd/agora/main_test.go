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

package main

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blinklabs-io/agora/api"
	"github.com/blinklabs-io/agora/internal/config"
	"github.com/blinklabs-io/agora/keystore"
	"github.com/blinklabs-io/agora/tx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPlugins(t *testing.T) {
	shouldExit, output := listPlugins("badger", "sqlite")
	assert.False(t, shouldExit)
	assert.Empty(t, output)

	shouldExit, output = listPlugins("list", "list")
	assert.True(t, shouldExit)
	assert.Contains(t, output, "Available blob plugins:")
	assert.Contains(t, output, "badger")
	assert.Contains(t, output, "Available metadata plugins:")
	assert.Contains(t, output, "sqlite")

	all := listAllPlugins()
	assert.Contains(t, all, "pebble")
	assert.Contains(t, all, "postgres")
}

func TestApiBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", apiBaseURL(":8080"))
	assert.Equal(t, "http://10.0.0.1:9000", apiBaseURL("10.0.0.1:9000"))
	assert.Equal(t, "https://node.example", apiBaseURL("https://node.example/"))
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "agora.log")
	logger, err := newLogger(
		config.LoggingConfig{Level: "warn", Format: "text", File: logFile},
		false,
	)
	require.NoError(t, err)
	require.NotNil(t, logRotator)
	t.Cleanup(func() {
		logRotator.Close()
		logRotator = nil
	})
	assert.False(t, logger.Enabled(t.Context(), slog.LevelDebug))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))

	_, err = newLogger(config.LoggingConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func writeTestKey(t *testing.T) (string, string) {
	t.Helper()
	key, err := keystore.GenerateKey()
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "signing.key")
	require.NoError(t, keystore.SaveKeyFile(keyPath, key, "test", ""))
	return keyPath, tx.AddressFromPubKey(key.PubKey())
}

func TestBuildTxOffline(t *testing.T) {
	keyPath, addr := writeTestKey(t)
	raw, err := buildTx(
		nil,
		keyPath,
		tx.KindTransfer,
		`{"to":"0x00000000000000000000000000000000000000bb","amount":5}`,
		3,
	)
	require.NoError(t, err)
	decoded, err := tx.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, tx.KindTransfer, decoded.Kind)
	assert.Equal(t, uint64(3), decoded.Nonce)
	sender, err := decoded.Sender()
	require.NoError(t, err)
	assert.Equal(t, addr, sender)

	_, err = buildTx(nil, keyPath, tx.KindTransfer, "{}", -1)
	assert.Error(t, err)
	_, err = buildTx(nil, keyPath, tx.Kind("mint"), "{}", 0)
	assert.Error(t, err)
	_, err = buildTx(nil, keyPath, tx.KindTransfer, "not json", 0)
	assert.Error(t, err)
}

func TestBuildAndSubmit(t *testing.T) {
	keyPath, addr := writeTestKey(t)
	var submitted api.SubmitRequest
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v0/accounts/{address}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, addr, r.PathValue("address"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":"` + addr + `","nonce":7}`))
	})
	mux.HandleFunc("POST /api/v0/tx/submit", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"hash":"abcd"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newApiClient(server.URL)
	raw, err := buildTx(client, keyPath, tx.KindFaucet, "{}", -1)
	require.NoError(t, err)
	decoded, err := tx.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), decoded.Nonce)

	hash, err := client.submit(raw)
	require.NoError(t, err)
	assert.Equal(t, "abcd", hash)
	assert.Equal(t, "0x"+hex.EncodeToString(raw), submitted.Tx)
}

func TestSubmitErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"transaction already pending","code":"DuplicateTx"}`))
	}))
	defer server.Close()

	_, err := newApiClient(server.URL).submit([]byte{0x01})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "DuplicateTx"))
}
