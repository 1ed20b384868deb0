// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stream:
  name: LabPolar
  keepalive: 250ms
acc:
  sample_rate: 100
metrics:
  addr: 127.0.0.1:9100
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "LabPolar", c.Stream.Name)
	assert.Equal(t, Duration(250*time.Millisecond), c.Stream.Keepalive)
	assert.Equal(t, uint16(100), c.Acc.SampleRate)
	// Unset fields keep their defaults.
	assert.Equal(t, "Physio", c.Stream.Type)
	assert.Equal(t, uint16(8), c.Acc.Range)
	assert.Equal(t, "127.0.0.1:9100", c.Metrics.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty_name",
			mutate:  func(c *Config) { c.Stream.Name = "" },
			wantErr: "stream name",
		},
		{
			name:    "zero_keepalive",
			mutate:  func(c *Config) { c.Stream.Keepalive = 0 },
			wantErr: "keepalive",
		},
		{
			name:    "bad_acc_rate",
			mutate:  func(c *Config) { c.Acc.SampleRate = 52 },
			wantErr: "acc sample rate",
		},
		{
			name:    "bad_acc_range",
			mutate:  func(c *Config) { c.Acc.Range = 16 },
			wantErr: "acc range",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := Default()
			test.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.wantErr)
		})
	}
}
