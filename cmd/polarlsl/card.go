// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"sync"
	"time"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"

	"github.com/aeon-lab/PolarH10-LSL-Streamer/internal/ring"
)

const (
	cardWidth   = 296
	cardHeight  = 128
	vitalsWidth = 84

	// Autoscale floor for the ECG trace in µV.
	ecgSpreadMin = 1200
)

// vitalsCard renders the streaming view: heart rate and mean RR
// interval on the left, a sweeping ECG trace on the right.
type vitalsCard struct {
	mu     sync.Mutex
	vitals *image.Gray
	plot   *image.Gray
	trace  *ring.Buffer[int32]
	buf    []int32
	lastRR time.Duration
}

func newVitalsCard() *vitalsCard {
	c := &vitalsCard{
		vitals: image.NewGray(image.Rect(0, 0, vitalsWidth, cardHeight)),
		plot:   image.NewGray(image.Rect(0, 0, cardWidth-vitalsWidth, cardHeight)),
	}
	c.trace = ring.NewBuffer[int32](c.plot.Bounds().Dx())
	c.buf = make([]int32, c.plot.Bounds().Dx())
	clear(c.vitals)
	clear(c.plot)
	return c
}

// setRate redraws the vitals pane and returns the updated card.
func (c *vitalsCard) setRate(hr int, rrs []time.Duration) image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(rrs) != 0 {
		var sum time.Duration
		for _, rr := range rrs {
			sum += rr
		}
		c.lastRR = sum / time.Duration(len(rrs))
	}

	clear(c.vitals)
	width := c.vitals.Bounds().Dx()
	const yOffset = -10

	hrText := strconv.Itoa(hr)
	hrFont := &freesans.Bold18pt7b
	_, hrW := tinyfont.LineWidth(hrFont, hrText)
	tinyfont.WriteLine(
		pixelCanvas{c.vitals},
		hrFont,
		int16(width-int(hrW))/2, int16(int(hrFont.YAdvance)+yOffset), hrText,
		color.RGBA{A: 0xff},
	)

	rrText := "-"
	if c.lastRR != 0 {
		rrText = c.lastRR.Round(time.Millisecond).String()
	}
	rrFont := &freesans.Regular9pt7b
	_, rrW := tinyfont.LineWidth(rrFont, rrText)
	tinyfont.WriteLine(
		pixelCanvas{c.vitals},
		rrFont,
		int16(width-int(rrW))/2, int16(int(rrFont.YAdvance)+int(hrFont.YAdvance)+yOffset), rrText,
		color.RGBA{A: 0xff},
	)

	return c.composeLocked()
}

// addTrace appends decoded ECG samples and returns the updated card, or
// nil while the trace has not yet filled the pane.
func (c *vitalsCard) addTrace(samples []int32) image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trace.Write(samples)
	if c.trace.Len() < c.trace.Cap() {
		return nil
	}
	c.trace.CopyTo(c.buf)
	plotSignal(c.plot, c.buf, ecgSpreadMin)
	return c.composeLocked()
}

// composeLocked renders the panes into a fresh image so the result can
// be handed to the GUI without sharing pixels.
func (c *vitalsCard) composeLocked() image.Image {
	img := image.NewGray(image.Rect(0, 0, cardWidth, cardHeight))
	draw.Draw(img, c.vitals.Bounds(), c.vitals, image.Point{}, draw.Src)
	draw.Draw(img, c.plot.Bounds().Add(image.Pt(vitalsWidth, 0)), c.plot, image.Point{}, draw.Src)
	return img
}
