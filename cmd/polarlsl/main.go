// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The polarlsl command streams Polar H10 ECG, heart rate, RR-interval
// and accelerometer data as a single six-channel LSL stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/config"
	"github.com/aeon-lab/PolarH10-LSL-Streamer/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "polarlsl",
	Short: "Stream Polar H10 sensor data over Lab Streaming Layer",
	Long: `polarlsl connects to a Polar H10 heart rate sensor over Bluetooth LE
and republishes its signals as one six-channel float32 LSL stream:

  ECG [µV], HR [bpm], RRI [ms], AccX/AccY/AccZ [mG]

By default a small window offers scanning for sensors and connecting to
one; with --headless and --addr the same pipeline runs without a GUI.`,
	Version:      fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage: true,
	RunE:         run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	rootCmd.Flags().String("config", "", "Path to YAML configuration file")
	rootCmd.Flags().String("addr", "", "Sensor Bluetooth address to connect to directly")
	rootCmd.Flags().Bool("headless", false, "Run without a GUI; requires --addr")
	rootCmd.Flags().String("metrics-addr", "", "Prometheus listen address, e.g. :9100")
	rootCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.Log.Level
	}
	logger, err := configureLogger(level)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			logger.WithField("addr", cfg.Metrics.Addr).Info("serving prometheus metrics")
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				logger.WithError(err).Error("metrics listener failed")
			}
		}()
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable bluetooth: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	addr, _ := cmd.Flags().GetString("addr")
	if headless, _ := cmd.Flags().GetBool("headless"); headless {
		if addr == "" {
			return fmt.Errorf("--headless requires --addr")
		}
		return runHeadless(ctx, cfg, adapter, addr, logger)
	}
	return runGUI(ctx, cfg, adapter, addr, logger)
}
