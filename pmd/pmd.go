// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pmd implements the Polar Measurement Data Bluetooth service
// used by Polar sensors for raw signal streams.
//
// Technical documentation for the PMD protocol is available from the
// [Polar BLE SDK] repository.
//
// [Polar BLE SDK]: https://github.com/polarofficial/polar-ble-sdk/tree/master/technical_documentation
package pmd

import (
	"strings"
	"time"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/internal/gatt"
)

// Service and characteristic identifiers.
const (
	ServiceID      = "fb005c80-02e7-f387-1cad-8acd2d8df0c8"
	ControlPointID = "fb005c81-02e7-f387-1cad-8acd2d8df0c8"
	DataID         = "fb005c82-02e7-f387-1cad-8acd2d8df0c8"
)

var (
	pmdService = gatt.MustParseUUID(ServiceID)
	pmdCP      = gatt.MustParseUUID(ControlPointID)
	pmdData    = gatt.MustParseUUID(DataID)
)

// Features is the feature set advertised by the PMD control point.
type Features [2]byte

func (f Features) String() string {
	if f[0] != 0xf {
		return "unknown"
	}
	var s strings.Builder
	for b := 0; b < 8; b++ {
		if f[1]&(1<<b) != 0 {
			if s.Len() != 0 {
				s.WriteByte('|')
			}
			s.WriteString(Support(1 << b).String())
		}
	}
	return s.String()
}

// Support is the flag set of supported PMD measurement streams.
type Support byte

const (
	SupportECG          Support = 1 << 0
	SupportPPG          Support = 1 << 1
	SupportAcc          Support = 1 << 2
	SupportPPI          Support = 1 << 3
	SupportBioImpedance Support = 1 << 4
	SupportGyro         Support = 1 << 5
	SupportMag          Support = 1 << 6
)

var supportNames = map[Support]string{
	SupportECG:          "ECG",
	SupportPPG:          "PPG",
	SupportAcc:          "Acc",
	SupportPPI:          "PPI",
	SupportBioImpedance: "BioImpedance",
	SupportGyro:         "Gyro",
	SupportMag:          "Mag",
}

func (s Support) String() string {
	name, ok := supportNames[s]
	if !ok {
		return "unknown"
	}
	return name
}

// Command is a PMD control point command.
type Command uint8

const (
	MeasureSettings Command = 1
	MeasureStart    Command = 2
	MeasureStop     Command = 3
)

// RecordingType is a PMD recording mode type.
type RecordingType uint8

const (
	Online  RecordingType = 0
	Offline RecordingType = 1
)

type (
	// MeasureType is a measurement stream data type.
	MeasureType uint8
	// FrameType is the sub-type for a MeasureType.
	FrameType uint8
)

// Measurement types and their frame types.
const (
	ECGType           MeasureType = 0
	ECGFrameType0     FrameType   = 0
	ECGSamplingStride             = 3

	PPGType MeasureType = 1

	AccType       MeasureType = 2
	AccFrameType0 FrameType   = 0
	AccFrameType1 FrameType   = 1
	AccFrameType2 FrameType   = 2

	PPIType MeasureType = 3

	GyroType MeasureType = 5

	MagnetometerType MeasureType = 6

	measurementTypes = 13
)

// Notification frame layout.
const (
	measureTypeOffset = 0
	timestampOffset   = 1
	frameTypeOffset   = 9
	dataOffset        = 10
)

// Device timestamps count nanoseconds from 2000 January 1st 00:00:00 UTC.
const epoch = 946684800

func deviceTime(ts uint64) time.Time {
	return time.Unix(int64(ts)/1e9+epoch, int64(ts)%1e9)
}

func leInt24(b []byte) int32 {
	_ = b[2] // bounds check hint to compiler; see golang.org/issue/14808
	return int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
}
