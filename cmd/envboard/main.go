// Package main is the entry point for the envboard CLI.
//
// Usage:
//
//	envboard serve -c config.yaml    # Start the dashboard
//	envboard validate -c config.yaml # Validate configuration
//	envboard probe -c config.yaml    # Read every sensor once
//	envboard version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "envboard",
	Short: "An I2C environmental sensor dashboard",
	Long: `envboard reads an AGS10 (TVOC), an AHT20 (temperature, humidity) and a
BME280 (temperature, pressure) over I2C and serves their current values and
recent history as a self-refreshing web page.

Quick start:
  1. Create a config file (envboard.yaml)
  2. Run: envboard serve -c envboard.yaml
  3. Open http://<host>/ in your browser

Example config:
  port: 80
  sensors:
    ags10:  { bus: "1" }
    aht20:  { bus: "0" }
    bme280: { bus: "0" }`,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this envboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("envboard %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.AddCommand(versionCmd)
}
