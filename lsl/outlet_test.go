// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsl

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInfo() StreamInfo {
	return StreamInfo{
		Name:         "PolarTest_POLAR",
		Type:         "Physio",
		ChannelCount: 6,
		NominalSRate: 130,
		SourceID:     "aa:bb:cc:dd:ee:ff",
		Manufacturer: "Polar",
		Channels: []Channel{
			{Label: "ECG", Unit: "microvolts", Type: "ECG"},
			{Label: "HR", Unit: "bpm", Type: "HR"},
			{Label: "RRI", Unit: "ms", Type: "RRI"},
			{Label: "AccX", Unit: "mG", Type: "AccX"},
			{Label: "AccY", Unit: "mG", Type: "AccY"},
			{Label: "AccZ", Unit: "mG", Type: "AccZ"},
		},
	}
}

func testOutlet(t *testing.T) *Outlet {
	t.Helper()
	o, err := NewOutlet(testInfo(), Options{
		ListenAddr:    "127.0.0.1:0",
		DiscoveryAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func readHeader(t *testing.T, br *bufio.Reader) string {
	t.Helper()
	header, err := br.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(header, "\r\n")
}

func TestShortinfoRequest(t *testing.T) {
	o := testOutlet(t)

	conn, err := net.Dial("tcp", o.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("LSL:shortinfo\r\n"))
	require.NoError(t, err)

	xml := readHeader(t, bufio.NewReader(conn))
	assert.Contains(t, xml, "<name>PolarTest_POLAR</name>")
	assert.Contains(t, xml, "<channel_count>6</channel_count>")
	assert.Contains(t, xml, "<channel_format>float32</channel_format>")
	assert.Contains(t, xml, "<uid>"+o.UID()+"</uid>")
	assert.NotContains(t, xml, "<desc>", "shortinfo must omit desc metadata")
}

func TestFullinfoCarriesChannelLabels(t *testing.T) {
	o := testOutlet(t)

	conn, err := net.Dial("tcp", o.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("LSL:fullinfo\r\n"))
	require.NoError(t, err)

	xml := readHeader(t, bufio.NewReader(conn))
	for _, label := range []string{"ECG", "HR", "RRI", "AccX", "AccY", "AccZ"} {
		assert.Contains(t, xml, "<label>"+label+"</label>")
	}
	assert.Contains(t, xml, "<manufacturer>Polar</manufacturer>")
}

func readSample(t *testing.T, r io.Reader, channels int) (float64, []float32) {
	t.Helper()
	frame := make([]byte, 1+8+4*channels)
	_, err := io.ReadFull(r, frame)
	require.NoError(t, err)
	require.Equal(t, byte(tagTransmittedTimestamp), frame[0])
	ts := math.Float64frombits(binary.LittleEndian.Uint64(frame[1:]))
	vals := make([]float32, channels)
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(frame[9+4*i:]))
	}
	return ts, vals
}

func TestStreamfeed(t *testing.T) {
	o := testOutlet(t)

	conn, err := net.Dial("tcp", o.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("LSL:streamfeed\r\n"))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	header := readHeader(t, br)
	assert.Contains(t, header, "<nominal_srate>130</nominal_srate>")

	require.Eventually(t, func() bool { return o.ConsumerCount() == 1 },
		time.Second, 10*time.Millisecond)

	want := [][]float32{
		{-190, 64, 820, 12, -1000, 1024},
		{-120, 64, 820, 12, -1000, 1024},
	}
	for _, sample := range want {
		require.NoError(t, o.Push(sample))
	}

	before := Clock()
	for _, wantVals := range want {
		ts, vals := readSample(t, br, 6)
		assert.Equal(t, wantVals, vals)
		assert.InDelta(t, before, ts, 5)
	}
}

func TestPushChunkSharesTimestamp(t *testing.T) {
	o := testOutlet(t)

	conn, err := net.Dial("tcp", o.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("LSL:streamfeed\r\n"))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	readHeader(t, br)
	require.Eventually(t, func() bool { return o.ConsumerCount() == 1 },
		time.Second, 10*time.Millisecond)

	chunk := [][]float32{
		{1, 0, 0, 0, 0, 0},
		{2, 0, 0, 0, 0, 0},
	}
	require.NoError(t, o.PushChunk(chunk))

	ts0, vals0 := readSample(t, br, 6)
	ts1, vals1 := readSample(t, br, 6)
	assert.Equal(t, chunk[0], vals0)
	assert.Equal(t, chunk[1], vals1)
	assert.Equal(t, ts0, ts1)
}

func TestPushWithoutConsumers(t *testing.T) {
	o := testOutlet(t)
	assert.NoError(t, o.Push(make([]float32, 6)))
}

func TestPushLengthMismatch(t *testing.T) {
	o := testOutlet(t)
	assert.Error(t, o.Push([]float32{1, 2, 3}))
}

func TestPushAfterClose(t *testing.T) {
	o := testOutlet(t)
	require.NoError(t, o.Close())
	assert.Error(t, o.Push(make([]float32, 6)))
}

func TestDiscoveryAnswersMatchingQuery(t *testing.T) {
	o := testOutlet(t)

	ret, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer ret.Close()
	retPort := ret.LocalAddr().(*net.UDPAddr).Port

	query := "LSL:shortinfo\r\ntype='Physio'\r\n" + strconv.Itoa(retPort) + " q-123\r\n"
	conn, err := net.Dial("udp4", o.pc.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(query))
	require.NoError(t, err)

	require.NoError(t, ret.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, err := ret.Read(buf)
	require.NoError(t, err)
	reply := string(buf[:n])
	assert.True(t, strings.HasPrefix(reply, "q-123\r\n"))
	assert.Contains(t, reply, "<name>PolarTest_POLAR</name>")
}

func TestMatchQuery(t *testing.T) {
	o := testOutlet(t)

	tests := []struct {
		query string
		want  bool
	}{
		{query: "", want: true},
		{query: "name='PolarTest_POLAR'", want: true},
		{query: "type='Physio' and session_id='default'", want: true},
		{query: "type='EEG'", want: false},
		{query: "nonsense='x'", want: false},
		{query: "malformed", want: false},
	}
	for _, test := range tests {
		assert.Equalf(t, test.want, o.matchQuery(test.query), "query %q", test.query)
	}
}
