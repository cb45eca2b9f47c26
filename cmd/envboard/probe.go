package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/envboard/config"
	"github.com/jpalmerr/envboard/internal/render"
	"github.com/jpalmerr/envboard/internal/sensor"
)

// probeCmd reads every configured sensor once and prints the readings.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Read every sensor once",
	Long: `Open the configured sensors, run a single sampling pass and print each
reading with its status. Faulted sensors show the reason for the fallback.

Useful for checking wiring and addresses before starting the dashboard.

Example:
  envboard probe -c config.yaml`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = probeCmd.MarkFlagRequired("config")
}

func runProbe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	hw, err := openDevices(&cfg.Sensors, logger)
	if err != nil {
		return fmt.Errorf("failed to open sensors: %w", err)
	}
	defer hw.Close()

	readings := sensor.NewReader(hw.devices, logger).Sample()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tDEVICE\tVALUE\tUNIT\tSTATUS\tFAULT")
	for _, rd := range readings {
		fault := ""
		if rd.Fault != nil {
			fault = rd.Fault.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rd.Metric.Label(), rd.Metric.Device(), render.FormatValue(rd), rd.Unit(), rd.Status, fault)
	}
	return w.Flush()
}
