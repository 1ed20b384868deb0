// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/io/event"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/explorer"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/config"
	"github.com/aeon-lab/PolarH10-LSL-Streamer/heart"
)

type uiState int

const (
	stateIdle uiState = iota
	stateScanning
	stateConnecting
	stateStreaming
	stateError
)

const scanTimeout = 15 * time.Second

type ui struct {
	ctx     context.Context
	cfg     config.Config
	adapter *bluetooth.Adapter
	log     *logrus.Logger
	win     *app.Window

	scanBtn widget.Clickable
	stopBtn widget.Clickable
	list    widget.List

	update chan image.Image
	card   *vitalsCard

	mu         sync.Mutex
	state      uiState
	status     string
	devices    []discovered
	clicks     []*widget.Clickable
	sess       *session
	battery    int
	img        image.Image
	scanCancel context.CancelFunc
}

// runGUI runs the scan/connect/status shell until the window is closed
// or ctx is cancelled.
func runGUI(ctx context.Context, cfg config.Config, adapter *bluetooth.Adapter, addr string, logger *logrus.Logger) error {
	w := new(app.Window)
	w.Option(app.Title("Polar H10 → LSL"), app.Size(420, 460))

	u := &ui{
		ctx:     ctx,
		cfg:     cfg,
		adapter: adapter,
		log:     logger,
		win:     w,
		update:  make(chan image.Image, 1),
		card:    newVitalsCard(),
		status:  "scan for sensors to begin",
	}
	u.list.Axis = layout.Vertical

	if addr != "" {
		go u.connectByAddress(addr)
	}

	go func() {
		<-ctx.Done()
		u.closeSession()
		os.Exit(0)
	}()

	go func() {
		if err := u.loop(w); err != nil {
			logger.WithError(err).Error("gui loop failed")
		}
		u.closeSession()
		os.Exit(0)
	}()
	app.Main()
	return nil
}

func (u *ui) loop(w *app.Window) error {
	expl := explorer.NewExplorer(w)
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))

	events := make(chan event.Event)
	ack := make(chan struct{})

	go func() {
		for {
			ev := w.Event()
			events <- ev
			<-ack
			if _, ok := ev.(app.DestroyEvent); ok {
				return
			}
		}
	}()
	var ops op.Ops
	for {
		select {
		case img := <-u.update:
			u.mu.Lock()
			u.img = img
			u.mu.Unlock()
			w.Invalidate()
		case e := <-events:
			expl.ListenEvents(e)
			switch e := e.(type) {
			case app.DestroyEvent:
				ack <- struct{}{}
				return e.Err
			case app.FrameEvent:
				gtx := app.NewContext(&ops, e)
				u.layout(th, gtx)
				e.Frame(gtx.Ops)
			}
			ack <- struct{}{}
		}
	}
}

func (u *ui) layout(th *material.Theme, gtx layout.Context) layout.Dimensions {
	if u.scanBtn.Clicked(gtx) {
		u.startScan()
	}
	if u.stopBtn.Clicked(gtx) {
		u.disconnect()
	}

	u.mu.Lock()
	state := u.state
	status := u.status
	batt := u.battery
	img := u.img
	devices := append([]discovered(nil), u.devices...)
	clicks := append([]*widget.Clickable(nil), u.clicks...)
	u.mu.Unlock()

	for i, click := range clicks {
		if click.Clicked(gtx) {
			u.connect(devices[i])
		}
	}

	inset := layout.UniformInset(8)
	return inset.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return material.Body1(th, statusLine(state, status, batt)).Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: 8}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Horizontal, Spacing: layout.SpaceBetween}.Layout(gtx,
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						btn := material.Button(th, &u.scanBtn, "Scan for sensors")
						if state == stateScanning || state == stateConnecting || state == stateStreaming {
							gtx = gtx.Disabled()
						}
						return btn.Layout(gtx)
					}),
					layout.Rigid(layout.Spacer{Width: 8}.Layout),
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						btn := material.Button(th, &u.stopBtn, "Disconnect")
						if state != stateStreaming && state != stateConnecting {
							gtx = gtx.Disabled()
						}
						return btn.Layout(gtx)
					}),
				)
			}),
			layout.Rigid(layout.Spacer{Height: 8}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				if state == stateStreaming {
					if img == nil {
						return layout.Dimensions{}
					}
					return widget.Image{
						Src: paint.NewImageOp(img),
						Fit: widget.Contain,
					}.Layout(gtx)
				}
				return material.List(th, &u.list).Layout(gtx, len(devices), func(gtx layout.Context, i int) layout.Dimensions {
					label := fmt.Sprintf("%s (%s, %d dBm)", devices[i].Name, devices[i].Addr, devices[i].RSSI)
					return layout.Inset{Top: 2, Bottom: 2}.Layout(gtx, material.Button(th, clicks[i], label).Layout)
				})
			}),
		)
	})
}

func statusLine(state uiState, status string, battery int) string {
	if state == stateStreaming && battery > 0 {
		return fmt.Sprintf("%s — battery %d%%", status, battery)
	}
	return status
}

func (u *ui) setStatus(state uiState, status string) {
	u.mu.Lock()
	u.state = state
	u.status = status
	u.mu.Unlock()
	u.win.Invalidate()
}

func (u *ui) startScan() {
	u.mu.Lock()
	if u.state == stateScanning || u.state == stateConnecting || u.state == stateStreaming {
		u.mu.Unlock()
		return
	}
	u.state = stateScanning
	u.status = "scanning…"
	u.devices = nil
	u.clicks = nil
	ctx, cancel := context.WithTimeout(u.ctx, scanTimeout)
	u.scanCancel = cancel
	u.mu.Unlock()
	u.win.Invalidate()

	results := make(chan discovered, 8)
	go func() {
		for d := range results {
			u.mu.Lock()
			u.devices = append(u.devices, d)
			u.clicks = append(u.clicks, new(widget.Clickable))
			u.mu.Unlock()
			u.win.Invalidate()
		}
	}()
	go func() {
		defer close(results)
		err := scanPolar(ctx, u.adapter, results, u.log)
		cancel()
		u.mu.Lock()
		if u.state != stateScanning {
			u.mu.Unlock()
			return
		}
		if err != nil {
			u.state = stateError
			u.status = fmt.Sprintf("scan failed: %v", err)
		} else {
			u.state = stateIdle
			u.status = fmt.Sprintf("select a sensor (%d found)", len(u.devices))
		}
		u.mu.Unlock()
		u.win.Invalidate()
	}()
}

func (u *ui) connectByAddress(addr string) {
	var mac bluetooth.Address
	if err := mac.UnmarshalText([]byte(addr)); err != nil {
		u.setStatus(stateError, fmt.Sprintf("invalid sensor address %q", addr))
		return
	}
	u.setStatus(stateScanning, "searching for "+addr)
	ctx, cancel := context.WithTimeout(u.ctx, 2*scanTimeout)
	d, err := findByAddress(ctx, u.adapter, mac, u.log)
	cancel()
	if err != nil {
		u.setStatus(stateError, fmt.Sprintf("sensor %s not found: %v", addr, err))
		return
	}
	u.connect(d)
}

func (u *ui) connect(d discovered) {
	u.mu.Lock()
	if u.state == stateConnecting || u.state == stateStreaming {
		u.mu.Unlock()
		return
	}
	if u.scanCancel != nil {
		u.scanCancel()
		u.scanCancel = nil
	}
	u.state = stateConnecting
	u.status = "connecting to " + d.Name
	u.mu.Unlock()
	u.win.Invalidate()

	go func() {
		dev, err := u.adapter.Connect(d.Addr, bluetooth.ConnectionParams{})
		if err != nil {
			u.setStatus(stateError, fmt.Sprintf("failed to connect: %v", err))
			return
		}
		sess, err := newSession(u.ctx, dev, d.Name, u.cfg, u.log, sessionHooks{
			OnRate:    u.onRate,
			OnECG:     u.onECG,
			OnBattery: u.onBattery,
		})
		if err != nil {
			dev.Disconnect()
			u.setStatus(stateError, fmt.Sprintf("failed to start session: %v", err))
			return
		}
		u.mu.Lock()
		u.sess = sess
		u.state = stateStreaming
		u.status = fmt.Sprintf("streaming %s → LSL %s", d.Name, sess.outlet.Addr())
		u.mu.Unlock()
		u.win.Invalidate()
	}()
}

func (u *ui) disconnect() {
	sess := u.takeSession()
	if sess == nil {
		return
	}
	u.setStatus(stateIdle, "disconnected")
	go func() {
		if err := sess.Close(); err != nil {
			u.log.WithError(err).Warn("error closing session")
		}
	}()
}

func (u *ui) takeSession() *session {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.scanCancel != nil {
		u.scanCancel()
		u.scanCancel = nil
	}
	sess := u.sess
	u.sess = nil
	return sess
}

// closeSession synchronously tears down any live session; used on exit.
func (u *ui) closeSession() {
	sess := u.takeSession()
	if sess != nil {
		sess.Close()
	}
}

func (u *ui) onRate(r heart.Rate) {
	u.pushCard(u.card.setRate(int(r.HR), r.RR))
}

func (u *ui) onECG(samples []int32) {
	u.pushCard(u.card.addTrace(samples))
}

func (u *ui) onBattery(pct int) {
	u.mu.Lock()
	u.battery = pct
	u.mu.Unlock()
	u.win.Invalidate()
}

func (u *ui) pushCard(img image.Image) {
	if img == nil {
		return
	}
	select {
	case u.update <- img:
	default:
	}
}
