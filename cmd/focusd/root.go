package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "focusd",
	Short: "focusd - Local focus and distraction-management daemon",
	Long: `focusd is a local daemon that tracks focus sessions, watches browser
tab activity reported by a companion extension, and decides whether a page is
a distraction using a classifier plus Open Policy Agent (OPA) evaluation.
It can listen for hand gestures, a spoken wake word, and nearby wifi networks
to adjust its behavior.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to server command when no subcommand is provided
		return runServer(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/focusd/config.yaml", "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
