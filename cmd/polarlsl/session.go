// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/battery"
	"github.com/aeon-lab/PolarH10-LSL-Streamer/config"
	"github.com/aeon-lab/PolarH10-LSL-Streamer/heart"
	"github.com/aeon-lab/PolarH10-LSL-Streamer/internal/metrics"
	"github.com/aeon-lab/PolarH10-LSL-Streamer/lsl"
	"github.com/aeon-lab/PolarH10-LSL-Streamer/pmd"
	"github.com/aeon-lab/PolarH10-LSL-Streamer/stream"
)

const (
	commandTimeout = time.Second
	statusInterval = 15 * time.Second
)

// sessionHooks are optional callbacks for display updates. They are
// called from BLE notification and polling goroutines.
type sessionHooks struct {
	OnRate    func(heart.Rate)
	OnECG     func([]int32)
	OnBattery func(int)
}

// session owns one connected sensor and the pipeline from its
// notifications to the LSL outlet.
type session struct {
	pmd    *pmd.Listener
	heart  *heart.RateListener
	outlet *lsl.Outlet
	mux    *stream.Mux
	cancel context.CancelFunc
	log    *logrus.Entry
}

// newSession starts streaming from the connected device: ECG at 130 Hz,
// accelerometer per the configuration, heart rate notifications, and a
// periodic battery poll. Decoded values flow through the multiplexer
// into a newly created LSL outlet.
func newSession(ctx context.Context, dev bluetooth.Device, name string, cfg config.Config, logger *logrus.Logger, hooks sessionHooks) (*session, error) {
	if name == "" {
		name = cfg.Stream.Name
	}
	log := logger.WithField("sensor", name)

	l, err := pmd.NewListener(&dev)
	if err != nil {
		return nil, fmt.Errorf("failed to create pmd listener: %w", err)
	}
	log.WithField("features", l.Features().String()).Info("connected")

	timeout, cancelTimeout := context.WithTimeout(ctx, commandTimeout)
	settings, err := l.Settings(timeout, pmd.ECGType)
	cancelTimeout()
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to get ecg settings: %w", err)
	}
	log.WithField("settings", fmt.Sprintf("%+v", settings)).Debug("ecg settings")

	outlet, err := lsl.NewOutlet(lsl.StreamInfo{
		Name:         name + "_POLAR",
		Type:         cfg.Stream.Type,
		ChannelCount: stream.NumChannels,
		NominalSRate: pmd.ECGSampleFreq,
		SourceID:     dev.Address.String(),
		Manufacturer: "Polar",
		Channels:     stream.ChannelInfo(),
	}, lsl.Options{
		ListenAddr:    cfg.LSL.ListenAddr,
		DiscoveryAddr: cfg.LSL.DiscoveryAddr,
		Logger:        logger,
	})
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to create lsl outlet: %w", err)
	}
	m := stream.New(metrics.CountingSink{Next: outlet}, logger)

	fail := func(err error) (*session, error) {
		outlet.Close()
		l.Close()
		return nil, err
	}

	// ECG is forwarded only while the strap reports skin contact;
	// without contact the trace is noise.
	var contact atomic.Bool

	timeout, cancelTimeout = context.WithTimeout(ctx, commandTimeout)
	err = l.SetHandler(timeout, pmd.ECGHandler(func(buf []byte) {
		if !contact.Load() {
			return
		}
		var ecg pmd.ECG
		if err := ecg.UnmarshalBinary(buf); err != nil {
			metrics.DecodeError("ecg")
			log.WithError(err).Debug("failed to decode ecg frame")
			return
		}
		metrics.Decoded("ecg")
		m.PushECG(ecg.Samples)
		if hooks.OnECG != nil {
			hooks.OnECG(ecg.Samples)
		}
	}))
	cancelTimeout()
	if err != nil {
		return fail(fmt.Errorf("failed to start ecg stream: %w", err))
	}

	timeout, cancelTimeout = context.WithTimeout(ctx, commandTimeout)
	err = l.SetHandler(timeout, pmd.AccHandler{
		SampleFreq: pmd.AccSampleFreq(cfg.Acc.SampleRate),
		Range:      pmd.AccRange(cfg.Acc.Range),
		Handler: func(buf []byte) {
			var acc pmd.Acc
			if err := acc.UnmarshalBinary(buf); err != nil {
				metrics.DecodeError("acc")
				log.WithError(err).Debug("failed to decode acc frame")
				return
			}
			metrics.Decoded("acc")
			for _, s := range acc.Samples {
				m.SetAcc(float64(s.X), float64(s.Y), float64(s.Z))
			}
		},
	})
	cancelTimeout()
	if err != nil {
		return fail(fmt.Errorf("failed to start acc stream: %w", err))
	}

	hr, err := heart.NewRateListener(&dev, func(r heart.Rate, err error) {
		contact.Store(r.Contact || !r.ContactSupported)
		if err != nil {
			if !errors.Is(err, heart.ErrNoContact) {
				metrics.DecodeError("hr")
				log.WithError(err).Debug("failed to decode hr measurement")
			}
			return
		}
		metrics.Decoded("hr")
		metrics.SetHeartRate(float64(r.HR))
		rrMs := make([]float64, 0, len(r.RR))
		for _, rr := range r.RR {
			rrMs = append(rrMs, float64(rr)/float64(time.Millisecond))
		}
		if len(rrMs) != 0 {
			metrics.SetRRInterval(rrMs[len(rrMs)-1])
		}
		m.SetRate(float64(r.HR), rrMs...)
		if hooks.OnRate != nil {
			hooks.OnRate(r)
		}
	})
	if err != nil {
		return fail(fmt.Errorf("failed to start heart rate stream: %w", err))
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		pmd:    l,
		heart:  hr,
		outlet: outlet,
		mux:    m,
		cancel: cancel,
		log:    log,
	}
	go m.Run(ctx, time.Duration(cfg.Stream.Keepalive))
	go s.pollStatus(ctx, &dev, hooks)
	metrics.SetConnected(true)
	log.WithField("lsl", outlet.Addr().String()).Info("streaming")
	return s, nil
}

// pollStatus periodically reads the battery level and refreshes the
// consumer gauge.
func (s *session) pollStatus(ctx context.Context, dev *bluetooth.Device, hooks sessionHooks) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		pct, err := battery.Level(dev)
		if err != nil {
			s.log.WithError(err).Debug("failed to read battery level")
		} else {
			metrics.SetBattery(pct)
			if hooks.OnBattery != nil {
				hooks.OnBattery(pct)
			}
		}
		metrics.SetConsumers(s.outlet.ConsumerCount())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close stops the measurement streams, disconnects the sensor and
// closes the outlet.
func (s *session) Close() error {
	s.cancel()
	metrics.SetConnected(false)
	metrics.SetConsumers(0)
	return errors.Join(s.pmd.Close(), s.heart.Close(), s.outlet.Close())
}
