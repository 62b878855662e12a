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

package agora

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/blinklabs-io/agora/api"
	_ "github.com/blinklabs-io/agora/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/agora/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/agora/ledger"
	"github.com/blinklabs-io/agora/tx"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeLifecycle(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	sender := tx.AddressFromPubKey(key.PubKey())
	recipient := "0x00000000000000000000000000000000000000bb"
	params := ledger.DefaultParams()
	params.Genesis = []ledger.GenesisAllocation{
		{Address: sender, Balance: 5000},
	}
	clock := ledger.NewManualClock(
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	)
	n, err := New(
		NewConfig(
			WithPrometheusRegistry(prometheus.NewRegistry()),
			WithApiListenAddress("127.0.0.1:0"),
			WithBlockInterval(20*time.Millisecond),
			WithLedgerParams(params),
			WithClock(clock),
			WithShutdownTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	defer func() {
		assert.NoError(t, n.Stop())
	}()
	assert.ErrorIs(t, n.Start(context.Background()), ErrNodeStarted)
	require.NotEmpty(t, n.ApiAddr())

	// Submit a transfer through the HTTP API
	transferTx, err := tx.New(
		tx.KindTransfer,
		0,
		&tx.Transfer{To: recipient, Amount: 1200},
	)
	require.NoError(t, err)
	require.NoError(t, transferTx.Sign(key))
	raw, err := transferTx.Encode()
	require.NoError(t, err)
	body, err := json.Marshal(
		api.SubmitRequest{Tx: "0x" + hex.EncodeToString(raw)},
	)
	require.NoError(t, err)
	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	resp, err := client.Post(
		"http://"+n.ApiAddr()+"/api/v0/tx/submit",
		"application/json",
		bytes.NewReader(body),
	)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// The producer picks it up on its own schedule
	require.Eventually(t, func() bool {
		return n.Chain().Height() == 1
	}, 5*time.Second, 10*time.Millisecond)
	balance, err := n.Ledger().BalanceOf(recipient)
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), balance)
	nonce, err := n.Ledger().NextNonce(sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestNodeRunStopsOnCancel(t *testing.T) {
	n, err := New(
		NewConfig(
			WithBlockInterval(time.Hour),
		),
	)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		return n.Producer() != nil && n.Producer().IsRunning()
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, n.ApiAddr())
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.NoError(t, n.Stop())
	// A second stop is a no-op
	require.NoError(t, n.Stop())
}
