// Package main implements the dynctl CLI tool for DynConn administration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	var (
		serverURL string
		token     string
	)

	rootCmd := &cobra.Command{
		Use:     "dynctl",
		Short:   "DynConn CLI tool",
		Long:    `dynctl manages the live connection registry of a DynConn server.`,
		Version: version,
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("DYNCTL_SERVER", "http://localhost:8080"), "DynConn server URL")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("DYNCTL_TOKEN"), "Bearer token")

	opts := &globalOptions{server: &serverURL, token: &token}

	// Add subcommands
	rootCmd.AddCommand(connCmd(opts))
	rootCmd.AddCommand(checkCmd(opts))
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
