// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmd

import (
	"encoding/binary"
	"reflect"
	"testing"
	"time"
)

func ecgFrame(ts uint64, frameType byte, samples ...int32) []byte {
	buf := make([]byte, dataOffset, dataOffset+3*len(samples))
	buf[measureTypeOffset] = byte(ECGType)
	binary.LittleEndian.PutUint64(buf[timestampOffset:], ts)
	buf[frameTypeOffset] = frameType
	for _, s := range samples {
		buf = append(buf, byte(s), byte(s>>8), byte(s>>16))
	}
	return buf
}

var ecgTests = []struct {
	name    string
	data    []byte
	want    ECG
	wantErr bool
}{
	{
		name: "single_sample",
		data: ecgFrame(2_000_000_500, 0, 100),
		want: ECG{
			Timestamp: time.Unix(946684802, 500),
			Samples:   []int32{100},
		},
	},
	{
		name: "negative_samples",
		data: ecgFrame(0, 0, -200, -1, 150),
		want: ECG{
			Timestamp: time.Unix(946684800, 0),
			Samples:   []int32{-200, -1, 150},
		},
	},
	{
		name:    "wrong_measure_type",
		data:    func() []byte { b := ecgFrame(0, 0, 1); b[measureTypeOffset] = byte(AccType); return b }(),
		wantErr: true,
	},
	{
		name:    "wrong_frame_type",
		data:    ecgFrame(0, 1, 1),
		wantErr: true,
	},
	{
		name:    "ragged_payload",
		data:    append(ecgFrame(0, 0, 1), 0xff),
		wantErr: true,
	},
	{
		name:    "short_frame",
		data:    []byte{byte(ECGType), 0, 0},
		wantErr: true,
	},
}

func TestECGUnmarshal(t *testing.T) {
	for _, test := range ecgTests {
		t.Run(test.name, func(t *testing.T) {
			var got ECG
			err := got.UnmarshalBinary(test.data)
			if (err != nil) != test.wantErr {
				t.Fatalf("unexpected error state: got:%v want err:%t", err, test.wantErr)
			}
			if err != nil {
				return
			}
			if !got.Timestamp.Equal(test.want.Timestamp) {
				t.Errorf("unexpected timestamp: got:%v want:%v", got.Timestamp, test.want.Timestamp)
			}
			if !reflect.DeepEqual(got.Samples, test.want.Samples) {
				t.Errorf("unexpected samples: got:%v want:%v", got.Samples, test.want.Samples)
			}
		})
	}
}
