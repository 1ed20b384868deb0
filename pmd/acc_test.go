// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmd

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func accFrame16(ts uint64, samples ...AccSample) []byte {
	buf := make([]byte, dataOffset, dataOffset+6*len(samples))
	buf[measureTypeOffset] = byte(AccType)
	binary.LittleEndian.PutUint64(buf[timestampOffset:], ts)
	buf[frameTypeOffset] = byte(AccFrameType1)
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(s.X)))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(s.Y)))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(s.Z)))
	}
	return buf
}

var accTests = []struct {
	name    string
	data    []byte
	want    []AccSample
	wantErr bool
}{
	{
		name: "one_triple_16bit",
		data: accFrame16(0, AccSample{X: 12, Y: -1000, Z: 1024}),
		want: []AccSample{{X: 12, Y: -1000, Z: 1024}},
	},
	{
		name: "whole_payload_decoded",
		data: accFrame16(0,
			AccSample{X: 1, Y: 2, Z: 3},
			AccSample{X: -4, Y: -5, Z: -6},
			AccSample{X: 1000, Y: -1000, Z: 0},
		),
		want: []AccSample{
			{X: 1, Y: 2, Z: 3},
			{X: -4, Y: -5, Z: -6},
			{X: 1000, Y: -1000, Z: 0},
		},
	},
	{
		name: "8bit_frame",
		data: func() []byte {
			b := make([]byte, dataOffset, dataOffset+3)
			b[measureTypeOffset] = byte(AccType)
			b[frameTypeOffset] = byte(AccFrameType0)
			return append(b, 0x7f, 0x80, 0x01)
		}(),
		want: []AccSample{{X: 127, Y: -128, Z: 1}},
	},
	{
		name:    "wrong_measure_type",
		data:    func() []byte { b := accFrame16(0, AccSample{}); b[measureTypeOffset] = byte(ECGType); return b }(),
		wantErr: true,
	},
	{
		name:    "unknown_frame_type",
		data:    func() []byte { b := accFrame16(0, AccSample{}); b[frameTypeOffset] = 0x7f; return b }(),
		wantErr: true,
	},
	{
		name:    "ragged_payload",
		data:    append(accFrame16(0, AccSample{X: 1, Y: 2, Z: 3}), 0x01),
		wantErr: true,
	},
}

func TestAccUnmarshal(t *testing.T) {
	for _, test := range accTests {
		t.Run(test.name, func(t *testing.T) {
			var got Acc
			err := got.UnmarshalBinary(test.data)
			if (err != nil) != test.wantErr {
				t.Fatalf("unexpected error state: got:%v want err:%t", err, test.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got.Samples, test.want) {
				t.Errorf("unexpected samples: got:%v want:%v", got.Samples, test.want)
			}
		})
	}
}
