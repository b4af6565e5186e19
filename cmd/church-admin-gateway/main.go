// Command church-admin-gateway serves the church admin UI's session and
// access-control layer in front of the church REST API.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "church-admin-gateway",
	Short: "Session and access-control gateway for the church admin UI",
	Long: `church-admin-gateway keeps each browser's session with the church REST API,
guards admin pages by role and permission, and proxies /api calls with the
session's bearer token.

Configuration is read from the environment and an optional .env file.

Example usage:
  church-admin-gateway serve          # Run the HTTP server
  church-admin-gateway healthcheck    # Probe a running server (container health checks)
  church-admin-gateway genkey         # Print a random secret for SESSION_SECRET`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
