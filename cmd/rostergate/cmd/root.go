// Package cmd provides the CLI commands for rostergate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rosterops/rostergate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rostergate",
	Short: "rostergate - conditional authorization engine",
	Long: `rostergate authorizes actions against resource instances when a static
role grant is not enough: decisions also depend on resource state (status,
ownership, venue) and on the current time.

Quick start:
  1. Create a config file: rostergate.yaml
  2. Run: rostergate serve

Configuration:
  Config is loaded from rostergate.yaml in the current directory,
  $HOME/.rostergate/, or /etc/rostergate/.

  Environment variables can override config values with the ROSTERGATE_ prefix.
  Example: ROSTERGATE_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the authorization server
  hash-key    Generate an Argon2id hash for an admin API key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./rostergate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
