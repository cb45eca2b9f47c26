package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/envboard/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an envboard configuration file without starting the server
or touching any hardware.

This command parses the YAML, applies defaults, expands environment variables,
and validates all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  envboard validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sampling := "per request"
	if cfg.Sampling.Mode == config.ModeInterval {
		sampling = "every " + cfg.Sampling.Interval.Duration().String()
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Title:        %s\n", cfg.Title)
	fmt.Printf("  Port:         %d\n", cfg.Port)
	fmt.Printf("  Refresh:      %s\n", cfg.Refresh.Duration())
	fmt.Printf("  History:      %d values per metric\n", cfg.HistorySize)
	fmt.Printf("  Sampling:     %s\n", sampling)
	if cfg.Sensors.Simulate {
		fmt.Printf("  Sensors:      simulated\n")
	} else {
		fmt.Printf("  AGS10:        %s\n", describeDevice(cfg.Sensors.AGS10))
		fmt.Printf("  AHT20:        %s\n", describeDevice(cfg.Sensors.AHT20))
		fmt.Printf("  BME280:       %s\n", describeDevice(cfg.Sensors.BME280))
	}
	fmt.Printf("  API:          %s\n", orDisabled(cfg.API.Addr))
	fmt.Printf("  MQTT:         %s\n", orDisabled(cfg.MQTT.Broker))

	return nil
}

func describeDevice(d config.DeviceConfig) string {
	if !d.IsEnabled() {
		return "disabled"
	}
	bus := d.Bus
	if bus == "" {
		bus = "default"
	}
	return fmt.Sprintf("bus %s, address %#02x", bus, d.Address)
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}
