package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "petchat"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Pet behavior chat relay",
	Long: `petchat relays text and video messages about pet behavior to a multimodal
chat model and keeps a per-session conversation log in memory.

Quick Start:
  petchat serve                     # Start the HTTP server on :5000
  petchat serve --addr :8080        # Listen elsewhere
  petchat config                    # Print the resolved configuration

Without ARK_API_KEY the server answers with mock responses.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
