package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - policy enforcement and automated remediation engine",
	Long: `Sentinel is a policy enforcement engine that turns detected risk
conditions into controlled, auditable remediation.

It ingests risk events from detection producers and provides:
  - Signed policy bundle verification and hot activation
  - Deterministic rule matching with configurable tie-breaking
  - Per-subject incident tracking with retry budgets and cooldowns
  - Idempotent remediation dispatch against webhook targets
  - A hash-chained, append-only evidence ledger`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
