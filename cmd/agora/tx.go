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
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/blinklabs-io/agora/api"
	"github.com/blinklabs-io/agora/internal/config"
	"github.com/blinklabs-io/agora/tx"
	"github.com/spf13/cobra"
)

const apiClientTimeout = 30 * time.Second

// apiBaseURL derives the node API URL from a listen address
func apiBaseURL(listenAddress string) string {
	if strings.HasPrefix(listenAddress, "http://") ||
		strings.HasPrefix(listenAddress, "https://") {
		return strings.TrimSuffix(listenAddress, "/")
	}
	if strings.HasPrefix(listenAddress, ":") {
		listenAddress = "localhost" + listenAddress
	}
	return "http://" + listenAddress
}

type apiClient struct {
	baseURL string
	client  *http.Client
}

func newApiClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: apiClientTimeout},
	}
}

func (c *apiClient) do(req *http.Request, expected int, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != expected {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%s: %s", errResp.Code, errResp.Error)
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return json.Unmarshal(body, dest)
}

func (c *apiClient) nonce(address string) (uint64, error) {
	req, err := http.NewRequest(
		http.MethodGet,
		c.baseURL+"/api/v0/accounts/"+url.PathEscape(address),
		nil,
	)
	if err != nil {
		return 0, err
	}
	var acct api.AccountResponse
	if err := c.do(req, http.StatusOK, &acct); err != nil {
		return 0, fmt.Errorf("fetching account: %w", err)
	}
	return acct.Nonce, nil
}

func (c *apiClient) submit(raw []byte) (string, error) {
	body, err := json.Marshal(
		api.SubmitRequest{Tx: "0x" + hex.EncodeToString(raw)},
	)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(
		http.MethodPost,
		c.baseURL+"/api/v0/tx/submit",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	var submitResp api.SubmitResponse
	if err := c.do(req, http.StatusAccepted, &submitResp); err != nil {
		return "", fmt.Errorf("submitting transaction: %w", err)
	}
	return submitResp.Hash, nil
}

// buildTx parses the payload for kind, signs it with the key file and
// returns the encoded transaction
func buildTx(
	client *apiClient,
	keyPath string,
	kind tx.Kind,
	payloadJSON string,
	nonce int64,
) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown transaction kind: %s", kind)
	}
	payload, err := tx.ParsePayloadJSON(kind, []byte(payloadJSON))
	if err != nil {
		return nil, err
	}
	ks, err := loadKeyStore(keyPath)
	if err != nil {
		return nil, err
	}
	var txNonce uint64
	if nonce >= 0 {
		txNonce = uint64(nonce)
	} else {
		if client == nil {
			return nil, errors.New("a nonce is required when signing offline")
		}
		addr, err := ks.Address()
		if err != nil {
			return nil, err
		}
		txNonce, err = client.nonce(addr)
		if err != nil {
			return nil, err
		}
	}
	newTx, err := tx.New(kind, txNonce, payload)
	if err != nil {
		return nil, err
	}
	if err := ks.Sign(newTx); err != nil {
		return nil, err
	}
	return newTx.Encode()
}

func txCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Build and submit transactions",
	}
	cmd.AddCommand(txSignCommand())
	cmd.AddCommand(txSubmitCommand())
	return cmd
}

type txFlags struct {
	keyPath string
	kind    string
	payload string
	nonce   int64
}

func (f *txFlags) register(cmd *cobra.Command) {
	var kinds []string
	for _, kind := range tx.Kinds() {
		kinds = append(kinds, string(kind))
	}
	slices.Sort(kinds)
	cmd.Flags().StringVarP(&f.keyPath, "key", "k", "", "path to the signing key file")
	cmd.Flags().
		StringVar(&f.kind, "kind", "", "transaction kind ("+strings.Join(kinds, ", ")+")")
	cmd.Flags().StringVar(&f.payload, "payload", "{}", "transaction payload as JSON")
	cmd.Flags().
		Int64Var(&f.nonce, "nonce", -1, "account nonce, fetched from the node when negative")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("kind")
}

func txSignCommand() *cobra.Command {
	var flags txFlags
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a transaction and print it as hex",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.nonce < 0 {
				return errors.New("--nonce is required for offline signing")
			}
			raw, err := buildTx(
				nil,
				flags.keyPath,
				tx.Kind(flags.kind),
				flags.payload,
				flags.nonce,
			)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "0x"+hex.EncodeToString(raw))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func txSubmitCommand() *cobra.Command {
	var flags txFlags
	var apiURL string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Sign a transaction and submit it to a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				apiURL = apiBaseURL(config.DefaultApiListenAddress)
				if cfg := config.FromContext(cmd.Context()); cfg != nil &&
					cfg.ApiListenAddress != "" {
					apiURL = apiBaseURL(cfg.ApiListenAddress)
				}
			}
			client := newApiClient(apiURL)
			raw, err := buildTx(
				client,
				flags.keyPath,
				tx.Kind(flags.kind),
				flags.payload,
				flags.nonce,
			)
			if err != nil {
				return err
			}
			hash, err := client.submit(raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, hash)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&apiURL, "api", "", "node API URL, defaults to the configured listen address")
	return cmd
}
