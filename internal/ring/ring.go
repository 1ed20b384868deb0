// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ring implements a fixed-capacity overwriting ring buffer.
package ring

// Buffer is a ring buffer with capacity fixed at construction. Writes
// beyond the capacity overwrite the oldest elements.
type Buffer[T any] struct {
	data []T
	head int // index of the oldest element
	n    int // number of live elements
}

// NewBuffer returns a Buffer with capacity n.
func NewBuffer[T any](n int) *Buffer[T] {
	return &Buffer[T]{data: make([]T, n)}
}

// Len returns the number of elements held in the buffer.
func (r *Buffer[T]) Len() int { return r.n }

// Cap returns the capacity of the buffer.
func (r *Buffer[T]) Cap() int { return len(r.data) }

// Write appends src to the buffer, overwriting the oldest elements when
// the buffer is full.
func (r *Buffer[T]) Write(src []T) {
	size := len(r.data)
	if len(src) >= size {
		copy(r.data, src[len(src)-size:])
		r.head = 0
		r.n = size
		return
	}
	w := (r.head + r.n) % size
	k := copy(r.data[w:], src)
	copy(r.data, src[k:])
	r.n += len(src)
	if r.n > size {
		r.head = (r.head + r.n - size) % size
		r.n = size
	}
}

// CopyTo copies the oldest elements into dst without consuming them,
// returning the number of elements copied.
func (r *Buffer[T]) CopyTo(dst []T) int {
	m := min(len(dst), r.n)
	first := min(m, len(r.data)-r.head)
	copy(dst, r.data[r.head:r.head+first])
	copy(dst[first:], r.data[:m-first])
	return m
}

// Read copies the oldest elements into dst and consumes them, returning
// the number of elements read.
func (r *Buffer[T]) Read(dst []T) int {
	m := r.CopyTo(dst)
	r.Discard(m)
	return m
}

// Discard consumes the n oldest elements.
func (r *Buffer[T]) Discard(n int) {
	n = min(n, r.n)
	r.head = (r.head + n) % len(r.data)
	r.n -= n
}
