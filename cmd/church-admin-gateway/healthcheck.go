package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check the health endpoint of a local server",
	Long: `Request /health on the local server and exit non-zero unless it answers 200.

Intended for container health checks in images without a shell.`,
	Args: cobra.NoArgs,
	RunE: runHealthcheck,
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)

	healthcheckCmd.Flags().String("url", "", "health endpoint (default http://127.0.0.1:$PORT/health)")
	healthcheckCmd.Flags().Duration("timeout", 2*time.Second, "request timeout")
}

func runHealthcheck(cmd *cobra.Command, _ []string) error {
	endpoint, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if endpoint == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		endpoint = fmt.Sprintf("http://127.0.0.1:%s/health", port)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}
	return nil
}
