// Copyright ©2026 The PolarH10-LSL-Streamer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"image"
	"image/color"
	"image/draw"
)

// clear fills img with white.
func clear(img draw.Image) {
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
}

// plotSignal draws trace as a connected line across the full width of
// dst, autoscaled to the signal's range. A spread narrower than
// minSpread is not magnified.
func plotSignal(dst draw.Image, trace []int32, minSpread int32) {
	clear(dst)
	if len(trace) == 0 {
		return
	}
	lo, hi := trace[0], trace[0]
	for _, v := range trace[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if spread := hi - lo; spread < minSpread {
		lo -= (minSpread - spread) / 2
		hi = lo + minSpread
	}
	h := dst.Bounds().Dy()
	y := func(v int32) int {
		f := float64(v-lo) / float64(hi-lo)
		return h - 1 - int(f*float64(h-1))
	}
	for i := 1; i < len(trace); i++ {
		line(dst, i-1, y(trace[i-1]), i, y(trace[i]), color.Black)
	}
}

func line(img draw.Image, x0, y0, x1, y1 int, c color.Color) {
	switch {
	case x0 == x1:
		if y0 > y1 {
			y0, y1 = y1, y0
		}
		for ; y0 <= y1; y0++ {
			img.Set(x0, y0, c)
		}
	case y0 == y1:
		if x0 > x1 {
			x0, x1 = x1, x0
		}
		for ; x0 <= x1; x0++ {
			img.Set(x0, y0, c)
		}
	default:
		bresenham(img, x0, y0, x1, y1, c)
	}
}

func bresenham(img draw.Image, x0, y0, x1, y1 int, c color.Color) {
	dx, sx := absSign(x1 - x0)
	dy, sy := absSign(y1 - y0)
	dy = -dy
	err := dx + dy
	for {
		img.Set(x0, y0, c)
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				return
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				return
			}
			err += dx
			y0 += sy
		}
	}
}

func absSign(a int) (abs, sign int) {
	if a < 0 {
		return -a, -1
	}
	return a, 1
}

// pixelCanvas adapts a draw.Image to the displayer interface expected
// by tinyfont.
type pixelCanvas struct {
	img draw.Image
}

func (p pixelCanvas) SetPixel(x, y int16, c color.RGBA) {
	p.img.Set(int(x), int(y), c)
}

func (p pixelCanvas) Size() (x, y int16) {
	b := p.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (p pixelCanvas) Display() error { return nil }
