// SPDX-License-Identifier: MIT
/*
Package audio delivers sample blocks to the analyzer from either a PortAudio
input device or a WAV file, and can record the captured input.

Thread Safety:
  - The PortAudio callback runs on its own thread and only touches
    pre-allocated state.
  - Recording is switched on and off with an atomic flag; Stop waits on
    an in-flight counter instead of a lock the callback could block on.
  - Sample blocks are handed to a SampleWriter, which must not block or
    allocate (fifo.Assembler satisfies this).
*/
package audio

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"spectrum/internal/config"
	applog "spectrum/internal/log"

	"github.com/gordonklaus/portaudio"
)

// SampleWriter receives interleaved blocks of channels-wide frames.
type SampleWriter interface {
	Write(block []float32, channels int)
}

// Capture streams a PortAudio input device into a SampleWriter.
type Capture struct {
	out      SampleWriter
	recorder Recorder

	device          *portaudio.DeviceInfo
	latency         time.Duration
	stream          *portaudio.Stream
	channels        int
	framesPerBuffer int
	sampleRate      float64

	callbacks    atomic.Uint64
	recordErrors atomic.Uint64
}

// NewCapture resolves the configured input device. PortAudio must be
// initialized.
func NewCapture(cfg *config.AudioConfig, out SampleWriter) (*Capture, error) {
	if out == nil {
		return nil, fmt.Errorf("capture needs a sample writer")
	}
	device, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}
	if cfg.InputChannels > device.MaxInputChannels {
		return nil, fmt.Errorf("device %q has %d input channels, %d requested",
			device.Name, device.MaxInputChannels, cfg.InputChannels)
	}

	c := &Capture{
		out:             out,
		device:          device,
		channels:        cfg.InputChannels,
		framesPerBuffer: cfg.FramesPerBuffer,
		sampleRate:      cfg.SampleRate,
		latency:         device.DefaultHighInputLatency,
	}
	if cfg.LowLatency {
		c.latency = device.DefaultLowInputLatency
	}

	applog.Infof("Capture: Using %q (%d ch, %.0f Hz, %d frames, latency %s)",
		device.Name, c.channels, c.sampleRate, c.framesPerBuffer, c.latency)
	return c, nil
}

// Start opens the input stream. From here on PortAudio calls process on
// its own thread.
func (c *Capture) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: c.channels,
			Device:   c.device,
			Latency:  c.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: c.framesPerBuffer,
		SampleRate:      c.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, c.process)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	c.stream = stream

	// The device may not grant the requested rate exactly.
	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		c.sampleRate = info.SampleRate
	}
	return nil
}

// Stop closes the input stream.
func (c *Capture) Stop() error {
	if c.stream == nil {
		return nil
	}
	if err := c.stream.Stop(); err != nil {
		return err
	}
	if err := c.stream.Close(); err != nil {
		return err
	}
	c.stream = nil
	return nil
}

// process is the real-time callback. Only pre-allocated state is used.
func (c *Capture) process(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	c.callbacks.Add(1)
	c.out.Write(in, c.channels)

	if c.recorder.Recording() {
		if err := c.recorder.Write(in); err != nil {
			c.recordErrors.Add(1)
		}
	}
}

// StartRecording records every captured block to filename.
func (c *Capture) StartRecording(filename string, bitDepth int) error {
	return c.recorder.Start(filename, int(c.sampleRate), c.channels, bitDepth, c.framesPerBuffer)
}

func (c *Capture) StopRecording() error {
	err := c.recorder.Stop()
	if n := c.recordErrors.Swap(0); n > 0 {
		applog.Warnf("Capture: %d blocks failed to record", n)
	}
	return err
}

// SampleRate returns the rate the stream actually runs at.
func (c *Capture) SampleRate() float64 {
	return c.sampleRate
}

// Callbacks returns how many blocks PortAudio has delivered.
func (c *Capture) Callbacks() uint64 {
	return c.callbacks.Load()
}

// Close stops recording and the stream.
func (c *Capture) Close() error {
	if err := c.StopRecording(); err != nil {
		return err
	}
	return c.Stop()
}
