// SPDX-License-Identifier: MIT
package render

import (
	"fmt"
	"math"
	"time"

	"spectrum/internal/scale"
)

// DefaultBarSpacing is the gap between bars as a fraction of the bar width.
const DefaultBarSpacing = 0.1

// Rect is one bar in pixel space. Y is the bar top, measured from the top of
// the canvas, so Height is always canvasHeight - Y.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Frame is what a painter receives each tick a new spectrum is available.
type Frame struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Bars      []Rect    `json:"bars"`
}

// Clone returns a deep copy. The driver reuses its frame buffer every tick,
// so anything that keeps a frame beyond Send must clone it.
func (f *Frame) Clone() any {
	c := *f
	c.Bars = make([]Rect, len(f.Bars))
	copy(c.Bars, f.Bars)
	return &c
}

// String is a one-line summary used by the logging transport.
func (f *Frame) String() string {
	peak := f.Height
	for _, r := range f.Bars {
		peak = math.Min(peak, r.Y)
	}
	return fmt.Sprintf("frame %d: %d bars on %.0fx%.0f, peak %.1f px",
		f.Seq, len(f.Bars), f.Width, f.Height, f.Height-peak)
}

// Layout places one rect per bar across a canvas of the given size. Bars
// start empty (Y at the bottom). spacing below 1 is a fraction of the bar
// width, otherwise a gap in pixels; either way at least one pixel of bar
// remains when the bar is wider than a pixel.
func Layout(bars []scale.Bar, scaleLen int, width, height, spacing float64) []Rect {
	rects := make([]Rect, len(bars))
	if scaleLen <= 0 {
		return rects
	}

	barWidth := width / float64(scaleLen)
	gap := spacing
	if spacing < 1 {
		gap = barWidth * spacing
	}
	gap = math.Max(0, math.Min(barWidth-1, gap))

	for i, b := range bars {
		rects[i] = Rect{
			X:     float64(b.Position)*barWidth + gap/2,
			Y:     height,
			Width: barWidth - gap,
		}
	}
	return rects
}
