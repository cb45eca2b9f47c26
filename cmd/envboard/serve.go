package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/envboard"
	"github.com/jpalmerr/envboard/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the envboard dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the envboard dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Open the configured I2C sensors (or simulated ones)
  - Serve the dashboard on the configured port, sampling once per request
    unless an interval is configured

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  envboard serve -c config.yaml
  envboard serve --config /etc/envboard/config.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"port", cfg.Port,
		"mode", cfg.Sampling.Mode,
		"history_size", cfg.HistorySize,
		"simulate", cfg.Sensors.Simulate,
	)

	hw, err := openDevices(&cfg.Sensors, logger)
	if err != nil {
		return fmt.Errorf("failed to open sensors: %w", err)
	}
	defer func() {
		if err := hw.Close(); err != nil {
			logger.Warn("failed to release sensors", "error", err)
		}
	}()

	eb, err := envboard.New(boardOptions(cfg, hw.devices, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create envboard: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- eb.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// boardOptions translates a loaded config into envboard options.
func boardOptions(cfg *config.Config, devices envboard.Devices, logger *slog.Logger) []envboard.Option {
	opts := []envboard.Option{
		envboard.WithTitle(cfg.Title),
		envboard.WithPort(cfg.Port),
		envboard.WithRefresh(cfg.Refresh.Duration()),
		envboard.WithHistorySize(cfg.HistorySize),
		envboard.WithServerTimeouts(cfg.Server.ReadTimeout.Duration(), cfg.Server.WriteTimeout.Duration()),
		envboard.WithDevices(devices),
		envboard.WithLogger(logger),
	}
	if cfg.Sampling.Mode == config.ModeInterval {
		opts = append(opts, envboard.WithSamplingInterval(cfg.Sampling.Interval.Duration()))
	}
	if cfg.API.Addr != "" {
		opts = append(opts, envboard.WithAPIAddr(cfg.API.Addr))
	}
	if cfg.MQTT.Broker != "" {
		opts = append(opts, envboard.WithMQTT(envboard.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			Retained: cfg.MQTT.Retained,
		}))
	}
	return opts
}
