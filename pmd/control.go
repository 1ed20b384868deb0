// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"tinygo.org/x/bluetooth"
)

// SettingType identifies a PMD measurement setting.
type SettingType uint8

const (
	SampleRateSetting       SettingType = 0
	ResolutionSetting       SettingType = 1
	RangeSetting            SettingType = 2
	ChannelsSetting         SettingType = 4
	ConversionFactorSetting SettingType = 5
)

const settingHeaderSize = 2

// Element widths on the wire.
const (
	uint8Size   = 1
	uint16Size  = 2
	int24Size   = 3
	float32Size = 4
)

const (
	uint8Kind = iota + 1
	uint16Kind
	float32Kind
)

var settingTypes = [...]struct {
	kind byte
	n    byte
	size byte
}{
	SampleRateSetting:       {kind: uint16Kind, n: 1, size: uint16Size},
	ResolutionSetting:       {kind: uint16Kind, n: 1, size: uint16Size},
	RangeSetting:            {kind: uint16Kind, n: 1, size: uint16Size},
	ChannelsSetting:         {kind: uint8Kind, n: 1, size: uint8Size},
	ConversionFactorSetting: {kind: float32Kind, n: 1, size: float32Size},
}

// Setting is a PMD measurement setting that can be written to the
// control point characteristic.
type Setting interface {
	// Size returns the number of bytes the setting occupies on
	// the wire.
	Size() int

	writeTo([]byte) (int, error)
}

func settingsSize(s ...Setting) int {
	var n int
	for _, t := range s {
		n += t.Size()
	}
	return n
}

// command is the leading command/measurement pair of a control point
// request.
type command struct {
	Command Command
	Record  RecordingType
	Measure MeasureType
}

func (c command) Size() int { return 2 }

func (c command) writeTo(dst []byte) (int, error) {
	if len(dst) < c.Size() {
		return 0, fmt.Errorf("dst too short")
	}
	dst[0] = byte(c.Command)
	dst[1] = byte(c.Record)<<7 | byte(c.Measure)
	return c.Size(), nil
}

// Uint8 is an 8-bit integer setting.
type Uint8 struct {
	Type SettingType
	Val  []uint8
}

func (s Uint8) Size() int      { return s.size(len(s.Val)) }
func (s Uint8) size(n int) int { return settingHeaderSize + n*uint8Size }

func (s Uint8) writeTo(dst []byte) (int, error) {
	if err := checkSetting(s.Type, len(s.Val), uint8Size); err != nil {
		return 0, err
	}
	if len(dst) < s.Size() {
		return 0, fmt.Errorf("dst too short")
	}
	dst[0] = byte(s.Type)
	dst[1] = byte(len(s.Val))
	copy(dst[settingHeaderSize:], s.Val)
	return s.Size(), nil
}

func (s *Uint8) UnmarshalBinary(data []byte) error {
	if len(data) < settingHeaderSize {
		return io.ErrUnexpectedEOF
	}
	n := int(data[1])
	if len(data) < s.size(n) {
		return io.ErrUnexpectedEOF
	}
	s.Type = SettingType(data[0])
	s.Val = make([]uint8, n)
	copy(s.Val, data[settingHeaderSize:])
	return nil
}

// Uint16 is a 16-bit integer setting.
type Uint16 struct {
	Type SettingType
	Val  []uint16
}

func (s Uint16) Size() int      { return s.size(len(s.Val)) }
func (s Uint16) size(n int) int { return settingHeaderSize + n*uint16Size }

func (s Uint16) writeTo(dst []byte) (int, error) {
	if err := checkSetting(s.Type, len(s.Val), uint16Size); err != nil {
		return 0, err
	}
	if len(dst) < s.Size() {
		return 0, fmt.Errorf("dst too short")
	}
	dst[0] = byte(s.Type)
	dst[1] = byte(len(s.Val))
	for i, e := range s.Val {
		binary.LittleEndian.PutUint16(dst[settingHeaderSize+i*uint16Size:], e)
	}
	return s.Size(), nil
}

func (s *Uint16) UnmarshalBinary(data []byte) error {
	if len(data) < settingHeaderSize {
		return io.ErrUnexpectedEOF
	}
	n := int(data[1])
	if len(data) < s.size(n) {
		return io.ErrUnexpectedEOF
	}
	s.Type = SettingType(data[0])
	s.Val = make([]uint16, n)
	data = data[settingHeaderSize:]
	for i := range s.Val {
		s.Val[i] = binary.LittleEndian.Uint16(data)
		data = data[uint16Size:]
	}
	return nil
}

// Float32 is a 32-bit floating point setting.
type Float32 struct {
	Type SettingType
	Val  []float32
}

func (s Float32) Size() int      { return s.size(len(s.Val)) }
func (s Float32) size(n int) int { return settingHeaderSize + n*float32Size }

func (s Float32) writeTo(dst []byte) (int, error) {
	if err := checkSetting(s.Type, len(s.Val), float32Size); err != nil {
		return 0, err
	}
	if len(dst) < s.Size() {
		return 0, fmt.Errorf("dst too short")
	}
	dst[0] = byte(s.Type)
	dst[1] = byte(len(s.Val))
	for i, e := range s.Val {
		binary.LittleEndian.PutUint32(dst[settingHeaderSize+i*float32Size:], math.Float32bits(e))
	}
	return s.Size(), nil
}

func (s *Float32) UnmarshalBinary(data []byte) error {
	if len(data) < settingHeaderSize {
		return io.ErrUnexpectedEOF
	}
	n := int(data[1])
	if len(data) < s.size(n) {
		return io.ErrUnexpectedEOF
	}
	s.Type = SettingType(data[0])
	s.Val = make([]float32, n)
	data = data[settingHeaderSize:]
	for i := range s.Val {
		s.Val[i] = math.Float32frombits(binary.LittleEndian.Uint32(data))
		data = data[float32Size:]
	}
	return nil
}

func checkSetting(typ SettingType, n, size int) error {
	if uint(typ) >= uint(len(settingTypes)) {
		return fmt.Errorf("invalid setting type: %d", typ)
	}
	l := settingTypes[typ]
	if int(l.n) != n || int(l.size) != size {
		return fmt.Errorf("invalid setting type: %d", typ)
	}
	return nil
}

func parseSettings(data []byte) ([]Setting, error) {
	var settings []Setting
	for len(data) != 0 {
		if uint(data[0]) >= uint(len(settingTypes)) || settingTypes[data[0]].kind == 0 {
			return settings, fmt.Errorf("unknown setting type: %x", data[0])
		}
		var (
			set Setting
			err error
		)
		switch settingTypes[data[0]].kind {
		case uint8Kind:
			var s Uint8
			err = s.UnmarshalBinary(data)
			set = s
		case uint16Kind:
			var s Uint16
			err = s.UnmarshalBinary(data)
			set = s
		case float32Kind:
			var s Float32
			err = s.UnmarshalBinary(data)
			set = s
		}
		if err != nil {
			return settings, err
		}
		data = data[set.Size():]
		settings = append(settings, set)
	}
	return settings, nil
}

// Control point response layout.
const (
	respMarkOffset    = 0
	respCommandOffset = 1
	respMeasureOffset = 2
	respStatusOffset  = 3
	respParamsOffset  = 5

	respMark = 0xf0
)

func checkResponse(resp []byte, com Command) error {
	if len(resp) < respParamsOffset {
		return fmt.Errorf("short response: %#x", resp)
	}
	if resp[respMarkOffset] != respMark || Command(resp[respCommandOffset]) != com {
		return fmt.Errorf("invalid response: %#x", resp)
	}
	if resp[respStatusOffset] != 0 {
		// Error codes follow the ATT protocol.
		// https://www.bluetooth.com/wp-content/uploads/Files/Specification/HTML/Core-54/out/en/host/attribute-protocol--att-.html
		return fmt.Errorf("control point error %#x: %#x", resp[respStatusOffset], resp[:respParamsOffset])
	}
	return nil
}

// roundTrip writes a control point request and waits for the indicated
// response, or for ctx to be cancelled.
func roundTrip(ctx context.Context, cp bluetooth.DeviceCharacteristic, com Command, rec RecordingType, measure MeasureType, settings ...Setting) ([]byte, error) {
	msg := make([]byte, command{}.Size()+settingsSize(settings...))
	off, err := command{Command: com, Record: rec, Measure: measure}.writeTo(msg)
	if err != nil {
		return nil, err
	}
	for _, s := range settings {
		n, err := s.writeTo(msg[off:])
		if err != nil {
			return nil, err
		}
		off += n
	}
	var resp []byte
	done := make(chan struct{})
	cp.EnableNotifications(func(buf []byte) {
		resp = bytes.Clone(buf)
		close(done)
	})
	cp.WriteWithoutResponse(msg)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-done:
	}
	cp.EnableNotifications(nil)
	if err != nil {
		return nil, err
	}
	return resp, checkResponse(resp, com)
}

func querySettings(ctx context.Context, cp bluetooth.DeviceCharacteristic, measure MeasureType) ([]Setting, error) {
	resp, err := roundTrip(ctx, cp, MeasureSettings, Online, measure)
	if err != nil {
		return nil, err
	}
	return parseSettings(resp[respParamsOffset:])
}
