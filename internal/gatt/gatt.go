// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gatt provides helpers for locating and reading GATT
// characteristics on a connected Bluetooth device.
package gatt

import (
	"fmt"
	"io"

	"tinygo.org/x/bluetooth"
)

// Characteristic returns the characteristic charID of the service srvID
// on the connected device.
func Characteristic(dev *bluetooth.Device, srvID, charID bluetooth.UUID) (bluetooth.DeviceCharacteristic, error) {
	srvs, err := dev.DiscoverServices([]bluetooth.UUID{srvID})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover service %s: %w", srvID, err)
	}
	for _, s := range srvs {
		chars, err := s.DiscoverCharacteristics([]bluetooth.UUID{charID})
		if err != nil {
			return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover characteristic %s: %w", charID, err)
		}
		if len(chars) == 0 {
			break
		}
		return chars[0], nil
	}
	return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not found in service %s", charID, srvID)
}

// Read reads up to one MTU of data from the characteristic.
func Read(char bluetooth.DeviceCharacteristic) ([]byte, error) {
	mtu, err := char.GetMTU()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain mtu of characteristic: %w", err)
	}
	buf := make([]byte, mtu)
	n, err := char.Read(buf)
	if err != nil && err != io.EOF {
		return buf[:n], fmt.Errorf("failed to read characteristic: %w", err)
	}
	return buf[:n], nil
}

// MustParseUUID parses a UUID string, panicking on malformed input.
// It is intended for the fixed service and characteristic identifiers
// declared by the packages in this module.
func MustParseUUID(s string) bluetooth.UUID {
	id, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Errorf("parse uuid %q: %w", s, err))
	}
	return id
}
