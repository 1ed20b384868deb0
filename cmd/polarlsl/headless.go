// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/config"
)

const findTimeout = 30 * time.Second

// runHeadless connects to the sensor at addr and streams until ctx is
// cancelled.
func runHeadless(ctx context.Context, cfg config.Config, adapter *bluetooth.Adapter, addr string, logger *logrus.Logger) error {
	var mac bluetooth.Address
	if err := mac.UnmarshalText([]byte(addr)); err != nil {
		return fmt.Errorf("invalid sensor address %q: %w", addr, err)
	}

	findCtx, cancel := context.WithTimeout(ctx, findTimeout)
	d, err := findByAddress(findCtx, adapter, mac, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to find sensor %s: %w", addr, err)
	}

	dev, err := adapter.Connect(d.Addr, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	s, err := newSession(ctx, dev, d.Name, cfg, logger, sessionHooks{})
	if err != nil {
		dev.Disconnect()
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")
	if err := s.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
