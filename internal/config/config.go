// SPDX-License-Identifier: MIT

// Package config holds the runtime configuration. Values are layered:
// built-in defaults, then a YAML file, then ENV_* overrides, then command
// line flags, and finally Validate.
package config

import (
	"time"

	"spectrum/internal/scale"
	"spectrum/pkg/bitint"
)

const (
	// Audio
	DefaultDeviceID        = MinDeviceID // System default input
	DefaultSampleRate      = 44100.0     // CD-quality audio
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultInputChannels   = 1
	DefaultLowLatency      = false

	// Analysis
	DefaultFFTOrder   = 11 // 2048-point frames
	DefaultGroupNotes = scale.DefaultGroupNotes
	DefaultMinFreq    = scale.DefaultMinFreq
	DefaultMaxFreq    = scale.DefaultMaxFreq

	// Render
	DefaultWidth      = 800
	DefaultHeight     = 400
	DefaultFrameRate  = 60.0
	DefaultBarSpacing = 0.1

	// Recording
	DefaultBitDepth   = 16
	DefaultOutputFile = "" // Generated at startup when empty

	// Transport
	DefaultWebSocketAddress = "localhost:8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 16 * time.Millisecond

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MinFFTOrder     = 8      // 256-point frames
	MaxFFTOrder     = 15     // 32768-point frames
	MaxFrameRate    = 240.0
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultInputChannels,
		},
		Analysis: AnalysisConfig{
			FFTOrder:   DefaultFFTOrder,
			GroupNotes: DefaultGroupNotes,
			MinFreq:    DefaultMinFreq,
			MaxFreq:    DefaultMaxFreq,
		},
		Render: RenderConfig{
			Width:      DefaultWidth,
			Height:     DefaultHeight,
			FrameRate:  DefaultFrameRate,
			BarSpacing: DefaultBarSpacing,
		},
		Recording: RecordingConfig{
			OutputFile: DefaultOutputFile,
			BitDepth:   DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketAddress: DefaultWebSocketAddress,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// FFTSize returns the frame length selected by Analysis.FFTOrder, or 0 when
// the order is out of range.
func (c *Config) FFTSize() int {
	return bitint.FromOrder(c.Analysis.FFTOrder)
}

// ScaleParams returns the bar table inputs.
func (c *Config) ScaleParams() scale.Params {
	return scale.Params{
		SampleRate: c.Audio.SampleRate,
		FFTSize:    c.FFTSize(),
		GroupNotes: c.Analysis.GroupNotes,
		MinFreq:    c.Analysis.MinFreq,
		MaxFreq:    c.Analysis.MaxFreq,
	}
}

// RecordingFile returns the recording path, generating a timestamped name
// when none is configured.
func (c *Config) RecordingFile(now time.Time) string {
	if c.Recording.OutputFile != "" {
		return c.Recording.OutputFile
	}
	return "recording-" + now.UTC().Format("02-01-2006-150405") + ".wav"
}
