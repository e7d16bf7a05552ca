package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oriolbns/despesa/crypto"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a random API auth token",
	Long: `Generates a 32-byte random token in hex, suitable for the server's
--auth-token flag and the client's storage configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := crypto.RandomBytes(32)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		fmt.Println(hex.EncodeToString(token))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
