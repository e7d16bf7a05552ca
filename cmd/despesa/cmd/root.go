package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "despesa",
	Short: "Despesa is an encrypted expense ledger backend",
	Long: `Backend for the despesa expense tracker: serves the expense ledger and
settings documents with optimistic-concurrency version tags. Document
contents are encrypted by the client; this server never sees the secret.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
