// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lsl implements a push-only Lab Streaming Layer outlet.
//
// The package is not a general LSL implementation. It serves a single
// float32 stream per outlet using the legacy 1.00 streamfeed protocol:
// enough for LabRecorder and liblsl-based clients to resolve the stream
// on the local network and pull samples from it. Time synchronisation
// and the sample transports of protocol 1.10 are not provided.
//
// The wire formats follow the protocol description in the
// [labstreaminglayer documentation].
//
// [labstreaminglayer documentation]: https://labstreaminglayer.readthedocs.io/
package lsl

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Protocol version advertised in stream metadata, major*100+minor.
const protocolVersion = "100"

// Channel describes one channel of a stream in the outlet metadata.
// Consumers match on Label.
type Channel struct {
	Label string
	Unit  string
	Type  string
}

// StreamInfo describes an outlet stream.
type StreamInfo struct {
	// Name is the stream name shown to resolvers.
	Name string
	// Type is the stream content type, e.g. "Physio".
	Type string
	// ChannelCount is the number of values per sample.
	ChannelCount int
	// NominalSRate is the nominal sampling rate in Hz, or 0 for
	// irregular streams.
	NominalSRate float64
	// SourceID uniquely identifies the data source, allowing
	// consumers to recover the stream across restarts.
	SourceID string

	// Manufacturer and Channels populate the desc metadata element.
	Manufacturer string
	Channels     []Channel
}

func (s StreamInfo) validate() error {
	if s.Name == "" {
		return fmt.Errorf("stream name must not be empty")
	}
	if s.ChannelCount <= 0 {
		return fmt.Errorf("invalid channel count: %d", s.ChannelCount)
	}
	if len(s.Channels) != 0 && len(s.Channels) != s.ChannelCount {
		return fmt.Errorf("channel metadata length mismatch: %d != %d", len(s.Channels), s.ChannelCount)
	}
	return nil
}

type xmlChannel struct {
	Label string `xml:"label"`
	Name  string `xml:"name"`
	Unit  string `xml:"unit,omitempty"`
	Type  string `xml:"type,omitempty"`
}

type xmlChannels struct {
	Channel []xmlChannel `xml:"channel"`
}

type xmlDesc struct {
	Manufacturer string       `xml:"manufacturer,omitempty"`
	Channels     *xmlChannels `xml:"channels,omitempty"`
}

type xmlInfo struct {
	XMLName       xml.Name `xml:"info"`
	Name          string   `xml:"name"`
	Type          string   `xml:"type"`
	ChannelCount  int      `xml:"channel_count"`
	NominalSRate  float64  `xml:"nominal_srate"`
	ChannelFormat string   `xml:"channel_format"`
	SourceID      string   `xml:"source_id"`
	Version       string   `xml:"version"`
	CreatedAt     float64  `xml:"created_at"`
	UID           string   `xml:"uid"`
	SessionID     string   `xml:"session_id"`
	Hostname      string   `xml:"hostname"`
	V4Address     string   `xml:"v4address"`
	V4DataPort    int      `xml:"v4data_port"`
	V4ServicePort int      `xml:"v4service_port"`
	V6Address     string   `xml:"v6address"`
	V6DataPort    int      `xml:"v6data_port"`
	V6ServicePort int      `xml:"v6service_port"`
	Desc          *xmlDesc `xml:"desc"`
}

// identity is the resolved on-wire identity of a live outlet.
type identity struct {
	uid       string
	hostname  string
	createdAt float64
	dataPort  int
}

func newIdentity(dataPort int) identity {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return identity{
		uid:       uuid.NewString(),
		hostname:  host,
		createdAt: Clock(),
		dataPort:  dataPort,
	}
}

func (s StreamInfo) shortinfo(id identity) ([]byte, error) {
	return s.marshal(id, false)
}

func (s StreamInfo) fullinfo(id identity) ([]byte, error) {
	return s.marshal(id, true)
}

func (s StreamInfo) marshal(id identity, desc bool) ([]byte, error) {
	w := xmlInfo{
		Name:          s.Name,
		Type:          s.Type,
		ChannelCount:  s.ChannelCount,
		NominalSRate:  s.NominalSRate,
		ChannelFormat: "float32",
		SourceID:      s.SourceID,
		Version:       "1.0",
		CreatedAt:     id.createdAt,
		UID:           id.uid,
		SessionID:     "default",
		Hostname:      id.hostname,
		V4DataPort:    id.dataPort,
		V4ServicePort: id.dataPort,
	}
	if desc {
		w.Desc = &xmlDesc{Manufacturer: s.Manufacturer}
		if len(s.Channels) != 0 {
			chs := &xmlChannels{}
			for _, c := range s.Channels {
				chs.Channel = append(chs.Channel, xmlChannel{
					Label: c.Label,
					Name:  c.Label,
					Unit:  c.Unit,
					Type:  c.Type,
				})
			}
			w.Desc.Channels = chs
		}
	}
	return xml.Marshal(w)
}

// Clock returns the LSL time for now: seconds as a float64. All sample
// timestamps produced by this package use this clock.
func Clock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
