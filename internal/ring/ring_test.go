// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ring

import (
	"reflect"
	"testing"
)

var bufferTests = []struct {
	name    string
	ops     func(r *Buffer[int16])
	wantLen int
	want    []int16
}{
	{
		name:    "empty",
		ops:     func(r *Buffer[int16]) {},
		wantLen: 0,
		want:    []int16{},
	},
	{
		name:    "partial_fill",
		ops:     func(r *Buffer[int16]) { r.Write([]int16{1, 2}) },
		wantLen: 2,
		want:    []int16{1, 2},
	},
	{
		name: "fill_exact",
		ops: func(r *Buffer[int16]) {
			r.Write([]int16{1, 2})
			r.Write([]int16{3, 4})
		},
		wantLen: 4,
		want:    []int16{1, 2, 3, 4},
	},
	{
		name: "overwrite_oldest",
		ops: func(r *Buffer[int16]) {
			r.Write([]int16{1, 2, 3})
			r.Write([]int16{4, 5})
		},
		wantLen: 4,
		want:    []int16{2, 3, 4, 5},
	},
	{
		name:    "oversize_write_keeps_tail",
		ops:     func(r *Buffer[int16]) { r.Write([]int16{1, 2, 3, 4, 5, 6}) },
		wantLen: 4,
		want:    []int16{3, 4, 5, 6},
	},
	{
		name: "discard_then_write",
		ops: func(r *Buffer[int16]) {
			r.Write([]int16{1, 2, 3, 4})
			r.Discard(2)
			r.Write([]int16{5})
		},
		wantLen: 3,
		want:    []int16{3, 4, 5},
	},
	{
		name: "wrap_around_write",
		ops: func(r *Buffer[int16]) {
			r.Write([]int16{1, 2, 3, 4})
			r.Discard(3)
			r.Write([]int16{5, 6, 7})
		},
		wantLen: 4,
		want:    []int16{4, 5, 6, 7},
	},
	{
		name: "discard_more_than_held",
		ops: func(r *Buffer[int16]) {
			r.Write([]int16{1, 2})
			r.Discard(10)
		},
		wantLen: 0,
		want:    []int16{},
	},
}

func TestBuffer(t *testing.T) {
	for _, test := range bufferTests {
		t.Run(test.name, func(t *testing.T) {
			r := NewBuffer[int16](4)
			test.ops(r)
			if r.Len() != test.wantLen {
				t.Errorf("unexpected length: got:%d want:%d", r.Len(), test.wantLen)
			}
			got := make([]int16, 10)
			n := r.CopyTo(got)
			if !reflect.DeepEqual(got[:n], test.want) {
				t.Errorf("unexpected content: got:%v want:%v", got[:n], test.want)
			}
		})
	}
}

func TestBufferRead(t *testing.T) {
	r := NewBuffer[int16](4)
	r.Write([]int16{1, 2, 3})
	var dst [2]int16
	n := r.Read(dst[:])
	if n != 2 || !reflect.DeepEqual(dst[:n], []int16{1, 2}) {
		t.Errorf("unexpected first read: got:%v n:%d", dst[:n], n)
	}
	n = r.Read(dst[:])
	if n != 1 || dst[0] != 3 {
		t.Errorf("unexpected second read: got:%v n:%d", dst[:n], n)
	}
	if r.Len() != 0 {
		t.Errorf("unexpected residual length: %d", r.Len())
	}
}
