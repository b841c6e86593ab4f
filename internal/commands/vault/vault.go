// Copyright 2026 The WorldMirror Authors
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

// Package vault implements the `vault` command group for inspecting and
// editing the credential store from a terminal.
package vault

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/worldmirror/shell/internal/vault"
)

// NewCommand creates the vault command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage secrets in the OS credential store",
		Long: `Manage the shell's secrets, stored in the OS credential store
(macOS Keychain, Linux Secret Service, Windows Credential Manager)
under ` + vault.Namespace + `.<service>.<key>.

Examples:
  worldmirror-shell vault set sync token
  worldmirror-shell vault get sync token
  worldmirror-shell vault delete sync token`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newDeleteCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <service> <key>",
		Short: "Store a secret",
		Long: `Store a secret for (service, key).

The value is read from an interactive prompt with hidden input, or from
standard input when piped:

  echo "abc123" | worldmirror-shell vault set sync token`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readSecret(cmd)
			if err != nil {
				return err
			}

			res := vault.New(nil).Set(args[0], args[1], value)
			if !res.Success {
				return errors.New(*res.Error)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", vault.EntryName(args[0], args[1]))
			return nil
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <service> <key>",
		Short: "Retrieve a secret",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := vault.New(nil).Get(args[0], args[1])
			if !res.Success {
				return errors.New(*res.Error)
			}

			if res.Value == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "no entry for %s\n", vault.EntryName(args[0], args[1]))
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), *res.Value)
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <service> <key>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := vault.New(nil).Delete(args[0], args[1])
			if !res.Success {
				return errors.New(*res.Error)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", vault.EntryName(args[0], args[1]))
			return nil
		},
	}
}

// readSecret reads the secret value from stdin when piped, or from an
// interactive hidden prompt on a terminal.
func readSecret(cmd *cobra.Command) (string, error) {
	stdin := int(syscall.Stdin)

	if !term.IsTerminal(stdin) {
		reader := bufio.NewReader(cmd.InOrStdin())
		value, err := reader.ReadString('\n')
		if err != nil && value == "" {
			return "", fmt.Errorf("failed to read secret from stdin: %w", err)
		}
		return strings.TrimRight(value, "\r\n"), nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Secret value: ")
	value, err := term.ReadPassword(stdin)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	if len(value) == 0 {
		return "", errors.New("empty secret value")
	}

	return string(value), nil
}
