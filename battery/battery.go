// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package battery implements reading of the standard 180f Bluetooth
// battery service characteristic.
package battery

import (
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/internal/gatt"
)

const (
	ServiceID             = "180f"
	LevelCharacteristicID = "2a19"
)

var (
	batteryService = gatt.MustParseUUID(ServiceID)
	batteryLevel   = gatt.MustParseUUID(LevelCharacteristicID)
)

// Level returns the battery level percentage for the provided Bluetooth
// device.
func Level(dev *bluetooth.Device) (int, error) {
	// https://www.bluetooth.com/specifications/specs/battery-service/

	char, err := gatt.Characteristic(dev, batteryService, batteryLevel)
	if err != nil {
		return 0, fmt.Errorf("failed to get battery level characteristic: %w", err)
	}
	resp, err := gatt.Read(char)
	if err != nil {
		return 0, fmt.Errorf("failed to read battery level: %w", err)
	}
	if len(resp) == 0 {
		return 0, fmt.Errorf("empty battery level response")
	}
	return int(resp[0]), nil
}
