// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// polarElectroOY is the Bluetooth SIG company identifier assigned to
// Polar Electro Oy.
// https://bitbucket.org/bluetooth-SIG/public/src/main/assigned_numbers/company_identifiers/company_identifiers.yaml
const polarElectroOY = 0x6b

type discovered struct {
	Name string
	Addr bluetooth.Address
	RSSI int16
}

func isPolar(found bluetooth.ScanResult) bool {
	if slices.ContainsFunc(found.ManufacturerData(), func(m bluetooth.ManufacturerDataElement) bool {
		return m.CompanyID == polarElectroOY
	}) {
		return true
	}
	return strings.HasPrefix(found.LocalName(), "Polar")
}

// scanPolar runs BLE discovery until ctx is done, sending each newly
// seen Polar sensor to results. Repeat advertisements are suppressed.
func scanPolar(ctx context.Context, adapter *bluetooth.Adapter, results chan<- discovered, logger *logrus.Logger) error {
	stop := context.AfterFunc(ctx, func() { adapter.StopScan() })
	defer stop()

	seen := make(map[string]bool)
	return adapter.Scan(func(adapter *bluetooth.Adapter, found bluetooth.ScanResult) {
		if !isPolar(found) {
			return
		}
		key := found.Address.String()
		if seen[key] {
			return
		}
		seen[key] = true
		logger.WithFields(logrus.Fields{
			"addr": key,
			"name": found.LocalName(),
			"rssi": found.RSSI,
		}).Info("found polar sensor")
		select {
		case results <- discovered{Name: found.LocalName(), Addr: found.Address, RSSI: found.RSSI}:
		case <-ctx.Done():
		}
	})
}

// findByAddress scans until the sensor with the given address is seen.
func findByAddress(ctx context.Context, adapter *bluetooth.Adapter, addr bluetooth.Address, logger *logrus.Logger) (discovered, error) {
	stop := context.AfterFunc(ctx, func() { adapter.StopScan() })
	defer stop()

	var dev discovered
	err := adapter.Scan(func(adapter *bluetooth.Adapter, found bluetooth.ScanResult) {
		if found.Address != addr {
			return
		}
		dev = discovered{Name: found.LocalName(), Addr: found.Address, RSSI: found.RSSI}
		adapter.StopScan()
	})
	if err != nil {
		return discovered{}, err
	}
	if err := ctx.Err(); err != nil {
		return discovered{}, err
	}
	logger.WithFields(logrus.Fields{
		"addr": dev.Addr.String(),
		"name": dev.Name,
	}).Info("found sensor")
	return dev, nil
}
