// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the streamer configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/pmd"
)

// Config is the full streamer configuration. Flag values override the
// file contents.
type Config struct {
	Stream  Stream  `yaml:"stream"`
	Acc     Acc     `yaml:"acc"`
	LSL     LSL     `yaml:"lsl"`
	Metrics Metrics `yaml:"metrics"`
	Log     Log     `yaml:"log"`
}

// Duration is a time.Duration that unmarshals from YAML strings such as
// "250ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Stream configures the published LSL stream.
type Stream struct {
	// Name is the stream name prefix; the sensor name is appended
	// on connection.
	Name string `yaml:"name"`
	// Type is the LSL content type.
	Type string `yaml:"type"`
	// Keepalive is the longest the outlet stays silent before the
	// current snapshot is re-pushed.
	Keepalive Duration `yaml:"keepalive"`
}

// Acc configures the accelerometer measurement stream.
type Acc struct {
	SampleRate uint16 `yaml:"sample_rate"` // Hz
	Range      uint16 `yaml:"range"`       // G
}

// LSL configures outlet listening addresses. Empty values use the
// standard LSL ports.
type LSL struct {
	ListenAddr    string `yaml:"listen_addr"`
	DiscoveryAddr string `yaml:"discovery_addr"`
}

// Metrics configures the Prometheus listener. An empty address
// disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Stream: Stream{
			Name:      "PolarH10",
			Type:      "Physio",
			Keepalive: Duration(500 * time.Millisecond),
		},
		Acc: Acc{
			SampleRate: uint16(pmd.AccSampleFreq200),
			Range:      uint16(pmd.AccRange8G),
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read config: %w", err)
	}
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return c, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return c, c.Validate()
}

var (
	accRates  = map[uint16]bool{25: true, 50: true, 100: true, 200: true}
	accRanges = map[uint16]bool{2: true, 4: true, 8: true}
)

// Validate checks that the configuration can be applied to a Polar H10.
func (c Config) Validate() error {
	if c.Stream.Name == "" {
		return fmt.Errorf("stream name must not be empty")
	}
	if c.Stream.Keepalive <= 0 {
		return fmt.Errorf("keepalive must be positive: %v", time.Duration(c.Stream.Keepalive))
	}
	if !accRates[c.Acc.SampleRate] {
		return fmt.Errorf("unsupported acc sample rate: %d Hz", c.Acc.SampleRate)
	}
	if !accRanges[c.Acc.Range] {
		return fmt.Errorf("unsupported acc range: %d G", c.Acc.Range)
	}
	return nil
}
