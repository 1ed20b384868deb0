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
	AccSampleFreq25  AccSampleFreq = 25  // Hz
	AccSampleFreq50  AccSampleFreq = 50  // Hz
	AccSampleFreq100 AccSampleFreq = 100 // Hz
	AccSampleFreq200 AccSampleFreq = 200 // Hz

	AccRange2G AccRange = 2 // G
	AccRange4G AccRange = 4 // G
	AccRange8G AccRange = 8 // G

	AccResolution = 16 // bits
)

type AccSampleFreq uint16

type AccRange uint16

// AccHandler implements the Handler interface for accelerometer data.
type AccHandler struct {
	// SampleFreq is the sample frequency to use.
	SampleFreq AccSampleFreq
	// Range is the acceleration range to use.
	Range AccRange

	// Handler is called for each data notification.
	Handler func([]byte)
}

func (h AccHandler) Handle() (Command, MeasureType, []Setting, func([]byte)) {
	if h.Handler == nil {
		return MeasureStop, AccType, nil, nil
	}
	return MeasureStart, AccType, []Setting{
		Uint16{Type: SampleRateSetting, Val: []uint16{uint16(h.SampleFreq)}}, // Hz
		Uint16{Type: ResolutionSetting, Val: []uint16{AccResolution}},        // bits
		Uint16{Type: RangeSetting, Val: []uint16{uint16(h.Range)}},           // G
	}, h.Handler
}

// AccSample is a single acceleration sample. For 16-bit frames the
// axis values are in mG.
type AccSample struct {
	X, Y, Z int32
}

// Acc is a decoded accelerometer data frame. The timestamp is the
// device time of the last sample in the frame.
type Acc struct {
	Timestamp time.Time
	Samples   []AccSample
}

func (m *Acc) UnmarshalBinary(data []byte) error {
	if len(data) < dataOffset {
		return fmt.Errorf("short acc frame: %d bytes", len(data))
	}
	if MeasureType(data[measureTypeOffset]) != AccType {
		return fmt.Errorf("expected sample type acc: %v", data[measureTypeOffset])
	}
	var width int
	switch FrameType(data[frameTypeOffset]) {
	case AccFrameType0:
		width = uint8Size
	case AccFrameType1:
		width = uint16Size
	case AccFrameType2:
		width = int24Size
	default:
		return fmt.Errorf("expected frame type acc0/acc1/acc2: %v", data[frameTypeOffset])
	}

	payload := data[dataOffset:]
	stride := 3 * width
	if len(payload)%stride != 0 {
		return fmt.Errorf("acc payload not a multiple of %d bytes: %d", stride, len(payload))
	}

	samples := make([]AccSample, 0, len(payload)/stride)
	for i := 0; i < len(payload); i += stride {
		samples = append(samples, AccSample{
			X: accAxis(payload[i:], width),
			Y: accAxis(payload[i+width:], width),
			Z: accAxis(payload[i+2*width:], width),
		})
	}

	*m = Acc{
		Timestamp: deviceTime(binary.LittleEndian.Uint64(data[timestampOffset:])),
		Samples:   samples,
	}
	return nil
}

func accAxis(b []byte, width int) int32 {
	switch width {
	case uint8Size:
		return int32(int8(b[0]))
	case uint16Size:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	default:
		return leInt24(b)
	}
}
