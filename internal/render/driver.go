// SPDX-License-Identifier: MIT

/*
Package render runs the consumer side of the analyzer.

On every tick of a fixed-rate clock the Driver checks the assembler's ready
flag. When a frame is waiting it is analyzed, released back to the producer,
and every bar is levelled and laid out into a Frame that is handed to the
configured sinks. When no frame is waiting the tick does nothing.

Reconfiguration (canvas resize, sample rate change) may be requested from any
goroutine. Requests are coalesced and applied at the start of the next tick,
so the bar table is only ever touched from the render goroutine.
*/
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spectrum/internal/analysis"
	"spectrum/internal/fifo"
	"spectrum/internal/level"
	applog "spectrum/internal/log"
	"spectrum/internal/scale"
	"spectrum/internal/transport"
)

const DefaultFrameRate = 60.0

var ErrCanvasSize = errors.New("canvas width and height must be positive")

// Options configures a Driver. Assembler and Pipeline are required and must
// agree on the frame size; Params.FFTSize is taken from the pipeline.
type Options struct {
	Assembler  *fifo.Assembler
	Pipeline   *analysis.Pipeline
	Params     scale.Params
	Width      float64
	Height     float64
	FrameRate  float64 // Hz, DefaultFrameRate when zero
	BarSpacing float64 // DefaultBarSpacing when zero
	Sinks      []transport.Transport
}

// Stats are the driver's running counters.
type Stats struct {
	Rendered   uint64 // ticks that produced a frame
	Idle       uint64 // ticks with no frame ready
	SinkErrors uint64
	Rebuilds   uint64
}

type Driver struct {
	asm     *fifo.Assembler
	pipe    *analysis.Pipeline
	table   *scale.Table
	mapper  *level.Mapper
	sinks   []transport.Transport
	spacing float64
	period  time.Duration

	// Render goroutine state.
	params scale.Params
	width  float64
	height float64
	frame  Frame

	// Pending reconfiguration, applied by the render goroutine.
	mu      sync.Mutex
	pending reconfig

	rendered   atomic.Uint64
	idle       atomic.Uint64
	sinkErrors atomic.Uint64
	rebuilds   atomic.Uint64
}

type reconfig struct {
	dirty      bool
	width      float64
	height     float64
	sampleRate float64
}

func NewDriver(opts Options) (*Driver, error) {
	if opts.Assembler == nil || opts.Pipeline == nil {
		return nil, fmt.Errorf("render driver needs an assembler and a pipeline")
	}
	if opts.Assembler.Size() != opts.Pipeline.FFTSize() {
		return nil, fmt.Errorf("assembler frame size %d does not match FFT size %d",
			opts.Assembler.Size(), opts.Pipeline.FFTSize())
	}
	if !(opts.Width > 0) || !(opts.Height > 0) {
		return nil, fmt.Errorf("%w, got %vx%v", ErrCanvasSize, opts.Width, opts.Height)
	}

	rate := opts.FrameRate
	if rate == 0 {
		rate = DefaultFrameRate
	}
	if !(rate > 0) {
		return nil, fmt.Errorf("frame rate must be positive, got %v", opts.FrameRate)
	}
	spacing := opts.BarSpacing
	if spacing == 0 {
		spacing = DefaultBarSpacing
	}

	params := opts.Params
	params.FFTSize = opts.Pipeline.FFTSize()
	table, err := scale.NewTable(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build bar table: %w", err)
	}

	d := &Driver{
		asm:     opts.Assembler,
		pipe:    opts.Pipeline,
		table:   table,
		mapper:  level.NewMapper(params.FFTSize),
		sinks:   opts.Sinks,
		spacing: spacing,
		period:  time.Duration(float64(time.Second) / rate),
		params:  params,
		width:   opts.Width,
		height:  opts.Height,
	}
	d.relayout()

	applog.Infof("Render: Driver ready (%d bars, %.0fx%.0f canvas, %.0f Hz, %d sinks)",
		table.Len(), d.width, d.height, rate, len(d.sinks))
	return d, nil
}

// Resize requests a new canvas size. It is safe to call from any goroutine.
func (d *Driver) Resize(width, height float64) error {
	if !(width > 0) || !(height > 0) {
		return fmt.Errorf("%w, got %vx%v", ErrCanvasSize, width, height)
	}
	d.mu.Lock()
	d.pending.dirty = true
	d.pending.width = width
	d.pending.height = height
	d.mu.Unlock()
	return nil
}

// SetSampleRate requests a bar table rebuild for a new input sample rate.
// It is safe to call from any goroutine.
func (d *Driver) SetSampleRate(rate float64) error {
	if !(rate > 0) {
		return fmt.Errorf("%w, got %v", scale.ErrSampleRate, rate)
	}
	d.mu.Lock()
	d.pending.dirty = true
	d.pending.sampleRate = rate
	d.mu.Unlock()
	return nil
}

func (d *Driver) applyPending() {
	d.mu.Lock()
	p := d.pending
	d.pending = reconfig{}
	d.mu.Unlock()

	if !p.dirty {
		return
	}

	params := d.params
	if p.sampleRate > 0 {
		params.SampleRate = p.sampleRate
	}
	rebuilt, err := d.table.Rebuild(params)
	if err != nil {
		applog.Errorf("Render: Rejected reconfiguration: %v", err)
		return
	}
	d.params = params
	if rebuilt {
		d.rebuilds.Add(1)
	}

	if p.width > 0 && p.height > 0 {
		if p.width != d.width || p.height != d.height {
			applog.Debugf("Render: Canvas resized %.0fx%.0f -> %.0fx%.0f", d.width, d.height, p.width, p.height)
		}
		d.width, d.height = p.width, p.height
	}
	d.relayout()
}

func (d *Driver) relayout() {
	bars := d.table.Bars()
	d.frame.Width = d.width
	d.frame.Height = d.height
	d.frame.Bars = Layout(bars, len(d.table.Scale()), d.width, d.height, d.spacing)
}

// Tick runs one render cycle and reports whether a frame was produced.
// Only the goroutine driving the render loop may call it.
func (d *Driver) Tick() bool {
	d.applyPending()

	samples, ok := d.asm.Acquire()
	if !ok {
		d.idle.Add(1)
		return false
	}
	mags := d.pipe.Analyze(samples)
	d.asm.Release()

	bars := d.table.Bars()
	for i, b := range bars {
		y := d.mapper.LevelFor(b, mags, d.height)
		r := &d.frame.Bars[i]
		r.Y = y
		r.Height = d.height - y
	}

	d.frame.Seq++
	d.frame.Timestamp = time.Now()
	for _, sink := range d.sinks {
		if err := sink.Send(&d.frame); err != nil {
			d.sinkErrors.Add(1)
			applog.Debugf("Render: Sink %T failed: %v", sink, err)
		}
	}
	d.rendered.Add(1)
	return true
}

// Run ticks at the configured frame rate until ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	applog.Infof("Render: Loop started (period %s)", d.period)
	for {
		select {
		case <-ctx.Done():
			s := d.Stats()
			applog.Infof("Render: Loop stopped (rendered %d, idle %d, dropped %d)",
				s.Rendered, s.Idle, d.asm.Dropped())
			return nil
		case <-ticker.C:
			d.Tick()
		}
	}
}

func (d *Driver) Stats() Stats {
	return Stats{
		Rendered:   d.rendered.Load(),
		Idle:       d.idle.Load(),
		SinkErrors: d.sinkErrors.Load(),
		Rebuilds:   d.rebuilds.Load(),
	}
}

// Table returns the current bar table. Only safe from the render goroutine
// or while Run is not active.
func (d *Driver) Table() *scale.Table {
	return d.table
}
