package cmd

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"

	"github.com/example/checkin-scheduler/internal/auth"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate CHECKIN_TOKEN_HASH_KEY and CHECKIN_TOKEN_BLOCK_KEY values (base64)",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := securecookie.GenerateRandomKey(32)
			block := securecookie.GenerateRandomKey(32)
			if hash == nil || block == nil {
				return errors.New("could not read random bytes")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "export CHECKIN_TOKEN_HASH_KEY=%s\n", base64.StdEncoding.EncodeToString(hash))
			fmt.Fprintf(out, "export CHECKIN_TOKEN_BLOCK_KEY=%s\n", base64.StdEncoding.EncodeToString(block))
			return nil
		},
	}
}

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the API key guarding /v1",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash [key]",
		Short: "Print the bcrypt hash for CHECKIN_API_KEY_HASH; reads the key from stdin when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read key: %w", err)
				}
				key = strings.TrimSpace(line)
			}
			if key == "" {
				return errors.New("empty key")
			}
			hash, err := auth.HashAPIKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export CHECKIN_API_KEY_HASH='%s'\n", hash)
			return nil
		},
	})
	return cmd
}
