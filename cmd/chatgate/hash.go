// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package main

import (
	"bufio"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/chatgate/chatgate/internal/auth"
)

// NewHashCmd creates the hash subcommand, which hashes or verifies a
// password read from stdin. Cost parameters come from flags.
func NewHashCmd() *cobra.Command {
	params := auth.DefaultHashParams()
	var verify string

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a password from stdin, or verify it with --verify",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}

			hasher, err := auth.NewArgon2idHasher(params)
			if err != nil {
				return err
			}

			if verify != "" {
				ok, err := hasher.Verify(cmd.Context(), password, verify)
				if err != nil {
					return err
				}
				if !ok {
					return oops.Code("AUTH_WRONG_CREDENTIALS").Errorf("password does not match")
				}
				cmd.Println("ok")
				return nil
			}

			hash, err := hasher.Hash(cmd.Context(), password)
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}

	cmd.Flags().Uint32Var(&params.Memory, "memory-kib", params.Memory, "argon2id memory in KiB")
	cmd.Flags().Uint32Var(&params.Iterations, "iterations", params.Iterations, "argon2id iterations")
	cmd.Flags().Uint8Var(&params.Parallelism, "parallelism", params.Parallelism, "argon2id parallelism")
	cmd.Flags().StringVar(&verify, "verify", "", "verify stdin against this PHC hash instead of hashing")

	return cmd
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("INVALID_INPUT").Wrap(err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", oops.Code("INVALID_INPUT").Errorf("no password on stdin")
	}
	return password, nil
}
