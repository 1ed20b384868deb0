// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	samples [][]float32
}

func (s *recordingSink) Push(sample []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *recordingSink) all() [][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]float32(nil), s.samples...)
}

func TestVectorsAlwaysSixChannels(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink, nil)

	m.PushECG([]int32{-190, -120, 300})
	m.SetRate(64, 820, 815)
	m.SetAcc(12, -1000, 1024)

	got := sink.all()
	require.NotEmpty(t, got)
	for _, vec := range got {
		assert.Len(t, vec, NumChannels)
	}
}

func TestECGClocksOutput(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink, nil)

	m.PushECG([]int32{-190, -120, 300})

	got := sink.all()
	require.Len(t, got, 3)
	assert.Equal(t, float32(-190), got[0][ChanECG])
	assert.Equal(t, float32(-120), got[1][ChanECG])
	assert.Equal(t, float32(300), got[2][ChanECG])
}

func TestSampleAndHold(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink, nil)

	m.SetAcc(12, -1000, 1024)
	m.SetRate(64, 820)
	m.PushECG([]int32{-190})

	got := sink.all()
	require.Len(t, got, 3)

	// Channels not yet updated default to zero.
	assert.Equal(t, float32(0), got[0][ChanHR])
	assert.Equal(t, float32(0), got[0][ChanECG])

	// Later vectors retain the last-known reading of every channel.
	last := got[2]
	assert.Equal(t, float32(-190), last[ChanECG])
	assert.Equal(t, float32(64), last[ChanHR])
	assert.Equal(t, float32(820), last[ChanRRI])
	assert.Equal(t, float32(12), last[ChanAccX])
	assert.Equal(t, float32(-1000), last[ChanAccY])
	assert.Equal(t, float32(1024), last[ChanAccZ])
}

func TestNaNReplacedWithZero(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink, nil)

	m.SetAcc(math.NaN(), math.Inf(1), 5)
	m.SetRate(math.NaN())

	got := sink.all()
	require.Len(t, got, 2)
	assert.Equal(t, float32(0), got[0][ChanAccX])
	assert.Equal(t, float32(0), got[0][ChanAccY])
	assert.Equal(t, float32(5), got[0][ChanAccZ])
	assert.Equal(t, float32(0), got[1][ChanHR])
}

func TestRatesWithoutRRStillEmit(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink, nil)

	m.SetRate(72)

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, float32(72), got[0][ChanHR])
	assert.Equal(t, float32(0), got[0][ChanRRI])
}

func TestKeepalivePushesSnapshot(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink, nil)
	m.SetAcc(1, 2, 3)
	n := len(sink.all())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return len(sink.all()) > n },
		time.Second, 5*time.Millisecond)
	last := sink.all()[len(sink.all())-1]
	assert.Equal(t, float32(1), last[ChanAccX])
}

func TestChannelInfoMatchesChannelCount(t *testing.T) {
	info := ChannelInfo()
	require.Len(t, info, NumChannels)
	assert.Equal(t, "ECG", info[ChanECG].Label)
	assert.Equal(t, "AccZ", info[ChanAccZ].Label)
}
