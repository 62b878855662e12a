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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/blinklabs-io/agora/keystore"
	"github.com/blinklabs-io/agora/tx"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const keyPassphraseEnv = "AGORA_KEY_PASSPHRASE"

// readPassphrase returns the passphrase from the environment, or prompts
// for it when stdin is a terminal
func readPassphrase(prompt string, confirm bool) (string, error) {
	if passphrase, ok := os.LookupEnv(keyPassphraseEnv); ok {
		return passphrase, nil
	}
	fd := int(os.Stdin.Fd()) // #nosec G115
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, prompt)
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if confirm && len(first) > 0 {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passphrases do not match")
		}
	}
	return string(first), nil
}

// loadKeyStore opens a key file, asking for the passphrase only when the
// file is encrypted
func loadKeyStore(keyPath string) (*keystore.KeyStore, error) {
	encrypted, err := keystore.IsEncrypted(keyPath)
	if err != nil {
		return nil, err
	}
	var passphrase string
	if encrypted {
		passphrase, err = readPassphrase("Key passphrase: ", false)
		if err != nil {
			return nil, err
		}
	}
	ks := keystore.NewKeyStore(keystore.KeyStoreConfig{
		KeyPath:    keyPath,
		Passphrase: passphrase,
		Logger:     slog.Default(),
	})
	if err := ks.LoadFromFile(); err != nil {
		return nil, err
	}
	return ks, nil
}

func keyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage signing keys",
	}
	cmd.AddCommand(keyGenerateCommand())
	cmd.AddCommand(keyAddressCommand())
	return cmd
}

func keyGenerateCommand() *cobra.Command {
	var description string
	var noPassphrase bool
	cmd := &cobra.Command{
		Use:   "generate <path>",
		Short: "Generate a new signing key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var passphrase string
			if !noPassphrase {
				var err error
				passphrase, err = readPassphrase(
					"New key passphrase (empty for none): ",
					true,
				)
				if err != nil {
					return err
				}
			}
			key, err := keystore.GenerateKey()
			if err != nil {
				return err
			}
			if err := keystore.SaveKeyFile(args[0], key, description, passphrase); err != nil {
				return err
			}
			fmt.Println(tx.AddressFromPubKey(key.PubKey()))
			return nil
		},
	}
	cmd.Flags().
		StringVar(&description, "description", "Agora signing key", "description stored in the key file")
	cmd.Flags().
		BoolVar(&noPassphrase, "no-passphrase", false, "store the key unencrypted")
	return cmd
}

func keyAddressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address <path>",
		Short: "Show the account address of a signing key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := loadKeyStore(args[0])
			if err != nil {
				return err
			}
			addr, err := ks.Address()
			if err != nil {
				return err
			}
			fmt.Println(strings.ToLower(addr))
			return nil
		},
	}
	return cmd
}
