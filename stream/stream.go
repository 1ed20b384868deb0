// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stream assembles the differently-clocked Polar H10 signals
// into uniform six-channel sample vectors.
//
// ECG samples clock the output: each decoded ECG sample emits one
// vector. Heart rate, RR-interval and accelerometer updates overwrite
// their channels and emit a vector reusing the held ECG value, matching
// the event cadence of the sensor. All channels hold their last-known
// value between updates, starting from zero.
package stream

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/lsl"
)

// Channel indices of the output vector.
const (
	ChanECG = iota
	ChanHR
	ChanRRI
	ChanAccX
	ChanAccY
	ChanAccZ
	NumChannels
)

// ChannelInfo returns the outlet metadata for the six output channels.
func ChannelInfo() []lsl.Channel {
	return []lsl.Channel{
		{Label: "ECG", Unit: "microvolts", Type: "ECG"},
		{Label: "HR", Unit: "bpm", Type: "HR"},
		{Label: "RRI", Unit: "ms", Type: "RRI"},
		{Label: "AccX", Unit: "mG", Type: "AccX"},
		{Label: "AccY", Unit: "mG", Type: "AccY"},
		{Label: "AccZ", Unit: "mG", Type: "AccZ"},
	}
}

// Sink receives assembled sample vectors. *lsl.Outlet satisfies Sink.
type Sink interface {
	Push(sample []float32) error
}

// Mux is the six-channel sample-and-hold multiplexer.
type Mux struct {
	sink Sink
	log  *logrus.Entry

	mu       sync.Mutex
	held     [NumChannels]float32
	emitted  uint64
	lastEmit time.Time
}

// New returns a Mux forwarding assembled vectors to sink.
func New(sink Sink, logger *logrus.Logger) *Mux {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}
	return &Mux{
		sink: sink,
		log:  logger.WithField("component", "mux"),
	}
}

// PushECG emits one vector per ECG sample, in µV.
func (m *Mux) PushECG(samples []int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		m.held[ChanECG] = float32(s)
		m.emitLocked()
	}
}

// SetRate updates the heart rate channel and, for each RR interval in
// ms, the RR-interval channel, emitting a vector per update.
func (m *Mux) SetRate(hr float64, rrMs ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[ChanHR] = clamp(hr)
	if len(rrMs) == 0 {
		m.emitLocked()
		return
	}
	for _, rr := range rrMs {
		m.held[ChanRRI] = clamp(rr)
		m.emitLocked()
	}
}

// SetAcc updates the acceleration channels with one sample in mG and
// emits a vector.
func (m *Mux) SetAcc(x, y, z float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[ChanAccX] = clamp(x)
	m.held[ChanAccY] = clamp(y)
	m.held[ChanAccZ] = clamp(z)
	m.emitLocked()
}

// Snapshot returns the current held channel values.
func (m *Mux) Snapshot() [NumChannels]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// Emitted returns the number of vectors pushed to the sink.
func (m *Mux) Emitted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emitted
}

// Run pushes the held snapshot whenever no vector has been emitted for
// the keepalive period, so consumers keep receiving data while the
// sensor is quiet. It returns when ctx is cancelled.
func (m *Mux) Run(ctx context.Context, keepalive time.Duration) {
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.mu.Lock()
			if now.Sub(m.lastEmit) >= keepalive {
				m.emitLocked()
			}
			m.mu.Unlock()
		}
	}
}

func (m *Mux) emitLocked() {
	vec := make([]float32, NumChannels)
	for i, v := range m.held {
		if isBad(v) {
			v = 0
		}
		vec[i] = v
	}
	m.emitted++
	m.lastEmit = time.Now()
	if err := m.sink.Push(vec); err != nil {
		m.log.WithError(err).Debug("failed to push sample")
	}
}

func clamp(v float64) float32 {
	f := float32(v)
	if isBad(f) {
		return 0
	}
	return f
}

func isBad(v float32) bool {
	return math.IsNaN(float64(v)) || math.IsInf(float64(v), 0)
}
