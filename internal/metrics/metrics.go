// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exposes Prometheus instrumentation for the streamer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/stream"
)

var (
	heartRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polar_heart_rate_bpm",
	})
	rrInterval = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polar_rr_interval_ms",
	})
	batteryPct = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polar_battery_pct",
	})
	connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polar_connected",
		Help: "1 while a sensor session is streaming, 0 otherwise",
	})
	consumers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polar_lsl_consumers",
		Help: "Number of connected LSL streamfeed consumers",
	})
	decoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polar_decoded_frames_total",
		Help: "Decoded BLE notification frames by measurement",
	}, []string{"measurement"})
	decodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polar_decode_errors_total",
		Help: "Undecodable BLE notification frames by measurement",
	}, []string{"measurement"})
	pushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polar_lsl_pushed_samples_total",
		Help: "Sample vectors pushed to the LSL outlet",
	})
)

func SetHeartRate(bpm float64) { heartRate.Set(bpm) }

func SetRRInterval(ms float64) { rrInterval.Set(ms) }

func SetBattery(pct int) { batteryPct.Set(float64(pct)) }

func SetConsumers(n int) { consumers.Set(float64(n)) }

func Decoded(measurement string) { decoded.WithLabelValues(measurement).Inc() }

func DecodeError(measurement string) { decodeErrors.WithLabelValues(measurement).Inc() }

func SetConnected(up bool) {
	if up {
		connected.Set(1)
	} else {
		connected.Set(0)
	}
}

// CountingSink counts vectors on their way to the outlet.
type CountingSink struct {
	Next stream.Sink
}

func (s CountingSink) Push(sample []float32) error {
	pushed.Inc()
	return s.Next.Push(sample)
}

// Serve exposes /metrics on addr. It blocks like http.ListenAndServe.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
