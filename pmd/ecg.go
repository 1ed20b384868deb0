// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmd

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	ECGSampleFreq     = 130 // Hz
	ECGSampleInterval = time.Second / ECGSampleFreq

	ECGResolution = 14 // bits
)

// ECGHandler implements the Handler interface for ECG data.
// The function is called for each data notification.
type ECGHandler func([]byte)

func (h ECGHandler) Handle() (Command, MeasureType, []Setting, func([]byte)) {
	if h == nil {
		return MeasureStop, ECGType, nil, nil
	}
	return MeasureStart, ECGType, []Setting{
		Uint16{Type: SampleRateSetting, Val: []uint16{ECGSampleFreq}},
		Uint16{Type: ResolutionSetting, Val: []uint16{ECGResolution}},
	}, h
}

// ECG is a decoded ECG data frame. Samples are in µV at 130 Hz, the
// timestamp is the device time of the last sample in the frame.
type ECG struct {
	Timestamp time.Time
	Samples   []int32 // µV
}

func (m *ECG) UnmarshalBinary(data []byte) error {
	if len(data) < dataOffset {
		return fmt.Errorf("short ecg frame: %d bytes", len(data))
	}
	if MeasureType(data[measureTypeOffset]) != ECGType {
		return fmt.Errorf("expected sample type ecg: %v", data[measureTypeOffset])
	}
	if FrameType(data[frameTypeOffset]) != ECGFrameType0 {
		return fmt.Errorf("expected frame type ecg: %v", data[frameTypeOffset])
	}

	payload := data[dataOffset:]
	if len(payload)%ECGSamplingStride != 0 {
		return fmt.Errorf("ecg payload not a multiple of %d bytes: %d", ECGSamplingStride, len(payload))
	}

	samples := make([]int32, 0, len(payload)/ECGSamplingStride)
	for i := 0; i < len(payload); i += ECGSamplingStride {
		samples = append(samples, leInt24(payload[i:i+ECGSamplingStride]))
	}

	*m = ECG{
		Timestamp: deviceTime(binary.LittleEndian.Uint64(data[timestampOffset:])),
		Samples:   samples,
	}
	return nil
}
