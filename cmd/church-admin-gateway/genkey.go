package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Print a random secret suitable for SESSION_SECRET",
	Args:  cobra.NoArgs,
	RunE:  runGenkey,
}

func init() {
	rootCmd.AddCommand(genkeyCmd)

	genkeyCmd.Flags().Int("bytes", 64, "number of random bytes")
}

func runGenkey(cmd *cobra.Command, _ []string) error {
	n, _ := cmd.Flags().GetInt("bytes")
	if n < 32 {
		return fmt.Errorf("--bytes must be at least 32, got %d", n)
	}

	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("read random bytes: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(key))
	return nil
}
