// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsl

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// listenDiscovery binds the discovery responder socket, joining the
// group when addr is a multicast address.
func listenDiscovery(addr string) (net.PacketConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid discovery address %q: %w", addr, err)
	}
	if udpAddr.IP.IsMulticast() {
		return net.ListenMulticastUDP("udp4", nil, udpAddr)
	}
	return net.ListenUDP("udp4", udpAddr)
}

// serveDiscovery answers resolver queries. A query datagram carries the
// shortinfo verb, a query predicate, and the return port and query id:
//
//	LSL:shortinfo
//	<predicate>
//	<return port> <query id>
//
// Matching streams reply to the sender's return port with the query id
// followed by the stream shortinfo.
func (o *Outlet) serveDiscovery() {
	buf := make([]byte, 2048)
	for {
		n, from, err := o.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		port, queryID, ok := o.parseQuery(string(buf[:n]))
		if !ok {
			continue
		}
		go o.answer(from, port, queryID)
	}
}

func (o *Outlet) parseQuery(msg string) (returnPort int, queryID string, ok bool) {
	lines := strings.Split(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")
	if len(lines) < 3 || lines[0] != reqShortinfo {
		return 0, "", false
	}
	if !o.matchQuery(lines[1]) {
		return 0, "", false
	}
	portField, queryID, found := strings.Cut(strings.TrimSpace(lines[2]), " ")
	if !found {
		return 0, "", false
	}
	port, err := strconv.Atoi(portField)
	if err != nil || port <= 0 || port > 0xffff {
		return 0, "", false
	}
	return port, queryID, true
}

// matchQuery evaluates a resolver predicate against the stream
// properties. Only conjunctions of property='value' terms are
// understood; terms naming unknown properties fail the match so that a
// resolver never receives a stream it did not ask for.
func (o *Outlet) matchQuery(query string) bool {
	props := map[string]string{
		"name":       o.info.Name,
		"type":       o.info.Type,
		"source_id":  o.info.SourceID,
		"uid":        o.id.uid,
		"hostname":   o.id.hostname,
		"session_id": "default",
	}
	for _, term := range strings.Split(query, " and ") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key, val, found := strings.Cut(term, "=")
		if !found {
			return false
		}
		want, ok := props[strings.TrimSpace(key)]
		if !ok {
			return false
		}
		if strings.Trim(strings.TrimSpace(val), "'\"") != want {
			return false
		}
	}
	return true
}

func (o *Outlet) answer(from net.Addr, port int, queryID string) {
	udpFrom, ok := from.(*net.UDPAddr)
	if !ok {
		return
	}
	xml, err := o.info.shortinfo(o.id)
	if err != nil {
		return
	}
	conn, err := net.Dial("udp4", net.JoinHostPort(udpFrom.IP.String(), strconv.Itoa(port)))
	if err != nil {
		o.log.WithField("remote", from.String()).Debug("failed to answer discovery query")
		return
	}
	defer conn.Close()
	msg := append([]byte(queryID+"\r\n"), xml...)
	conn.Write(msg)
}
