// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LSL well-known ports. Data connections are served from the first free
// port in [DataPortStart, DataPortStart+portRange).
const (
	DiscoveryAddr = "224.0.0.183:16571"
	DataPortStart = 16572
	portRange     = 32
)

// Sample framing tag bytes preceding each sample on a streamfeed
// connection.
const (
	tagDeducedTimestamp     = 1
	tagTransmittedTimestamp = 2
)

// Request verbs accepted on the data port.
const (
	reqShortinfo  = "LSL:shortinfo"
	reqFullinfo   = "LSL:fullinfo"
	reqStreamfeed = "LSL:streamfeed"
)

// Options configures outlet listening behaviour. The zero value serves
// on the standard LSL ports on all interfaces.
type Options struct {
	// ListenAddr is the TCP address to serve data connections on.
	// An empty address binds the first free port in the LSL data
	// port range on all interfaces.
	ListenAddr string

	// DiscoveryAddr is the UDP address the discovery responder
	// listens on. It defaults to the LSL multicast group. "none"
	// disables discovery; the stream is then only reachable by
	// address.
	DiscoveryAddr string

	// Logger receives connection lifecycle events. A nil Logger
	// discards them.
	Logger *logrus.Logger
}

// consumerBuffer is the number of in-flight samples per consumer before
// the consumer is considered stalled and dropped.
const consumerBuffer = 1024

type consumer struct {
	conn net.Conn
	send chan []byte
}

// Outlet serves one stream to any number of pulling consumers. Samples
// pushed while no consumer is connected are discarded.
type Outlet struct {
	info StreamInfo
	id   identity
	log  *logrus.Entry

	ln net.Listener
	pc net.PacketConn

	mu        sync.Mutex
	consumers map[*consumer]struct{}
	lastTime  float64
	closed    bool
}

// NewOutlet starts serving the described stream. The returned Outlet
// must be closed after use.
func NewOutlet(info StreamInfo, opts Options) (*Outlet, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}

	ln, err := listenData(opts.ListenAddr)
	if err != nil {
		return nil, err
	}
	o := &Outlet{
		info:      info,
		id:        newIdentity(ln.Addr().(*net.TCPAddr).Port),
		log:       logger.WithField("stream", info.Name),
		ln:        ln,
		consumers: make(map[*consumer]struct{}),
	}

	discovery := opts.DiscoveryAddr
	if discovery == "" {
		discovery = DiscoveryAddr
	}
	if discovery != "none" {
		pc, err := listenDiscovery(discovery)
		if err != nil {
			ln.Close()
			return nil, err
		}
		o.pc = pc
		go o.serveDiscovery()
	}

	go o.serve()
	o.log.WithFields(logrus.Fields{
		"addr": ln.Addr().String(),
		"uid":  o.id.uid,
	}).Info("lsl outlet listening")
	return o, nil
}

func listenData(addr string) (net.Listener, error) {
	if addr != "" {
		return net.Listen("tcp", addr)
	}
	for port := DataPortStart; port < DataPortStart+portRange; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, nil
		}
	}
	return nil, fmt.Errorf("no free port in %d-%d", DataPortStart, DataPortStart+portRange-1)
}

// Addr returns the address of the outlet data listener.
func (o *Outlet) Addr() net.Addr { return o.ln.Addr() }

// UID returns the instance identifier of the running outlet.
func (o *Outlet) UID() string { return o.id.uid }

// ConsumerCount returns the number of connected streamfeed consumers.
func (o *Outlet) ConsumerCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.consumers)
}

func (o *Outlet) serve() {
	for {
		conn, err := o.ln.Accept()
		if err != nil {
			return
		}
		go o.handle(conn)
	}
}

func (o *Outlet) handle(conn net.Conn) {
	br := bufio.NewReader(conn)
	line, err := br.ReadString('\n')
	if err != nil {
		conn.Close()
		return
	}
	verb, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), " ")
	switch verb {
	case reqShortinfo:
		xml, err := o.info.shortinfo(o.id)
		if err == nil {
			conn.Write(append(xml, '\r', '\n'))
		}
		conn.Close()
	case reqFullinfo:
		xml, err := o.info.fullinfo(o.id)
		if err == nil {
			conn.Write(append(xml, '\r', '\n'))
		}
		conn.Close()
	case reqStreamfeed:
		o.feed(conn)
	default:
		o.log.WithField("request", verb).Debug("rejecting unknown request")
		conn.Close()
	}
}

// feed serves the legacy 1.00 streamfeed protocol: the stream shortinfo
// terminated by CRLF, followed by tagged binary samples until either
// side closes the connection.
func (o *Outlet) feed(conn net.Conn) {
	xml, err := o.info.shortinfo(o.id)
	if err != nil {
		conn.Close()
		return
	}
	if _, err = conn.Write(append(xml, '\r', '\n')); err != nil {
		conn.Close()
		return
	}

	c := &consumer{conn: conn, send: make(chan []byte, consumerBuffer)}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		conn.Close()
		return
	}
	o.consumers[c] = struct{}{}
	n := len(o.consumers)
	o.mu.Unlock()
	o.log.WithFields(logrus.Fields{
		"remote":    conn.RemoteAddr().String(),
		"consumers": n,
	}).Info("consumer connected")

	for buf := range c.send {
		if _, err := conn.Write(buf); err != nil {
			break
		}
	}
	o.drop(c)
}

func (o *Outlet) drop(c *consumer) {
	o.mu.Lock()
	_, ok := o.consumers[c]
	delete(o.consumers, c)
	n := len(o.consumers)
	o.mu.Unlock()
	c.conn.Close()
	if ok {
		// Removal from the map precedes the close, so no send can
		// race with it. Closing unblocks the feed loop.
		close(c.send)
		o.log.WithFields(logrus.Fields{
			"remote":    c.conn.RemoteAddr().String(),
			"consumers": n,
		}).Info("consumer disconnected")
	}
}

// Push sends one sample, timestamped now, to all connected consumers.
// Consumers that cannot keep up are disconnected rather than waited on.
// The sample length must match the stream channel count.
func (o *Outlet) Push(sample []float32) error {
	return o.PushAt(sample, Clock())
}

// PushChunk sends samples in order, all carrying the same timestamp.
func (o *Outlet) PushChunk(samples [][]float32) error {
	ts := Clock()
	for _, s := range samples {
		if err := o.PushAt(s, ts); err != nil {
			return err
		}
	}
	return nil
}

// PushAt sends one sample with an explicit timestamp on the package
// clock.
func (o *Outlet) PushAt(sample []float32, ts float64) error {
	if len(sample) != o.info.ChannelCount {
		return fmt.Errorf("sample length %d does not match channel count %d", len(sample), o.info.ChannelCount)
	}

	buf := make([]byte, 0, 1+8+4*len(sample))
	buf = append(buf, tagTransmittedTimestamp)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(ts))
	for _, v := range sample {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return fmt.Errorf("outlet closed")
	}
	o.lastTime = ts
	var stalled []*consumer
	for c := range o.consumers {
		select {
		case c.send <- buf:
		default:
			stalled = append(stalled, c)
		}
	}
	o.mu.Unlock()

	for _, c := range stalled {
		o.log.WithField("remote", c.conn.RemoteAddr().String()).Warn("dropping stalled consumer")
		o.drop(c)
	}
	return nil
}

// Close stops serving the stream and disconnects all consumers.
func (o *Outlet) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	consumers := make([]*consumer, 0, len(o.consumers))
	for c := range o.consumers {
		consumers = append(consumers, c)
	}
	o.consumers = make(map[*consumer]struct{})
	o.mu.Unlock()

	for _, c := range consumers {
		close(c.send)
		c.conn.Close()
	}
	if o.pc != nil {
		o.pc.Close()
	}
	return o.ln.Close()
}
