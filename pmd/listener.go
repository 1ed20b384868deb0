// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmd

import (
	"context"
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/internal/gatt"
)

// Handler defines a PMD notification handler.
type Handler interface {
	// Handle returns the command, measurement type and settings to
	// configure notifications with, and the function that is called
	// with the data of each notification of that measurement type.
	Handle() (Command, MeasureType, []Setting, func(buf []byte))
}

// Listener implements PMD notification listening, dispatching data
// notifications to per-measurement-type handlers.
type Listener struct {
	dev *bluetooth.Device

	cpChar, dataChar bluetooth.DeviceCharacteristic

	features Features

	handlers [measurementTypes]func([]byte)
}

// NewListener returns a new Listener for the provided Bluetooth device.
func NewListener(dev *bluetooth.Device) (*Listener, error) {
	cpChar, err := gatt.Characteristic(dev, pmdService, pmdCP)
	if err != nil {
		return nil, fmt.Errorf("failed to get pmd control point characteristic: %w", err)
	}
	// The control point read is 17 bytes in the SDK documentation's
	// figure, but only the leading feature flag pair is documented.
	var buf [32]byte
	n, err := cpChar.Read(buf[:])
	if err != nil {
		return nil, fmt.Errorf("failed to read device features: %w", err)
	}
	if n < 2 {
		return nil, fmt.Errorf("device features too short: %#x", buf[:n])
	}
	var feats Features
	copy(feats[:], buf[:2])
	dataChar, err := gatt.Characteristic(dev, pmdService, pmdData)
	if err != nil {
		return nil, fmt.Errorf("failed to get pmd data characteristic: %w", err)
	}
	l := &Listener{
		dev:      dev,
		cpChar:   cpChar,
		dataChar: dataChar,
		features: feats,
	}
	err = dataChar.EnableNotifications(l.dispatch)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Listener) dispatch(buf []byte) {
	if len(buf) == 0 {
		return
	}
	if uint(buf[measureTypeOffset]) >= uint(len(l.handlers)) {
		return
	}
	handle := l.handlers[buf[measureTypeOffset]]
	if handle != nil {
		handle(buf)
	}
}

// Settings returns the available online recording settings for the
// measurement type from the connected sensor.
func (l *Listener) Settings(ctx context.Context, m MeasureType) ([]Setting, error) {
	return querySettings(ctx, l.cpChar, m)
}

// SetHandler installs the notification handler and sends the control
// point command returned by h.Handle. A nil-function handler stops the
// measurement stream.
func (l *Listener) SetHandler(ctx context.Context, h Handler) error {
	com, measure, settings, handle := h.Handle()
	if int(measure) >= len(l.handlers) {
		return fmt.Errorf("invalid measurement type: %d", measure)
	}
	l.handlers[measure] = handle
	_, err := roundTrip(ctx, l.cpChar, com, Online, measure, settings...)
	return err
}

// Features returns the set of features supported by the connected sensor.
func (l *Listener) Features() Features {
	return l.features
}

// Close disables data notifications and disconnects the device.
func (l *Listener) Close() error {
	l.dataChar.EnableNotifications(nil)
	return l.dev.Disconnect()
}
