package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/envboard"
	"github.com/jpalmerr/envboard/internal/driver"
)

func main() {
	// simulated devices stand in for real hardware (see flaky.go for fault injection)
	sim := driver.NewSimulated(uint64(time.Now().UnixNano()))
	sim.NotReadyEvery = 4

	devices := envboard.Devices{
		VOC:      newFlakyVOC(sim, 0.2),
		Humidity: sim,
		Pressure: sim,
	}

	eb, err := envboard.New(
		envboard.WithTitle("envboard demo"),
		envboard.WithDevices(devices),
		envboard.WithPort(8080),
		envboard.WithRefresh(5*time.Second),
		envboard.WithAPIAddr(":9100"),
		envboard.WithCycleCallback(func(r envboard.CycleResult) {
			if n := r.Readings.Fallbacks(); n > 0 {
				slog.Info("cycle with fallbacks", "cycle", r.Snapshot.Cycle, "fallbacks", n)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create envboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  envboard demo")
	fmt.Println()
	fmt.Println("  Dashboard:  http://localhost:8080")
	fmt.Println("  Metrics:    http://localhost:9100/metrics")
	fmt.Println("  History:    http://localhost:9100/api/history")
	fmt.Println()
	fmt.Println("  Every page load samples all sensors once. The AGS10 fails")
	fmt.Println("  about one read in five and the AHT20 is busy every fourth.")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eb.Start(ctx); err != nil {
		slog.Error("envboard error", "error", err)
		os.Exit(1)
	}
}
