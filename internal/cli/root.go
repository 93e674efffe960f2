// Package cli implements the watttime command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped into --version output.
const Version = "0.3.0"

// Global flags
var (
	configPath string
	sourceName string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "watttime",
	Short:   "Query marginal carbon intensity through the day-bucket cache",
	Long:    `Fetches marginal carbon intensity data from the configured source, caches it in day buckets, and answers point and range queries against the cache.`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Main config file (default: etc/watttime.yaml at the project root)")
	rootCmd.PersistentFlags().StringVar(&sourceName, "source", "", "Carbon data source to use (default from carbon config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log fetch and cache activity to stderr")
}
