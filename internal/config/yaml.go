// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	applog "spectrum/internal/log"
	"spectrum/internal/scale"
	"spectrum/pkg/bitint"

	"gopkg.in/yaml.v3"
)

var (
	ErrFFTOrder = errors.New("fft order out of range")
	ErrCanvas   = errors.New("canvas size must be positive")
	ErrChannels = errors.New("input channels must be at least 1")
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Force debug logging.
	LogLevel  string          `yaml:"log_level"`         // debug, info, warn or error.
	Command   string          `yaml:"command,omitempty"` // One-off command instead of running, e.g. "list".
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Render    RenderConfig    `yaml:"render"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig selects where samples come from.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Capture rate in Hz. A source file uses its own.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback; rounded up to a power of 2.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low input latency.
	InputChannels   int     `yaml:"input_channels"`    // Captured channels; the first one is analyzed.
	SourceFile      string  `yaml:"source_file"`       // WAV file to play instead of a device.
	Loop            bool    `yaml:"loop"`              // Restart the source file at the end.
}

// AnalysisConfig holds the spectrum and bar table settings.
type AnalysisConfig struct {
	FFTOrder   int     `yaml:"fft_order"`   // FFT size is 1<<FFTOrder.
	GroupNotes int     `yaml:"group_notes"` // Keep every Nth quarter tone.
	MinFreq    float64 `yaml:"min_freq"`    // Hz
	MaxFreq    float64 `yaml:"max_freq"`    // Hz
}

// RenderConfig holds the canvas and refresh settings.
type RenderConfig struct {
	Width      int     `yaml:"width"`       // Canvas width in pixels.
	Height     int     `yaml:"height"`      // Canvas height in pixels.
	FrameRate  float64 `yaml:"frame_rate"`  // Render ticks per second.
	BarSpacing float64 `yaml:"bar_spacing"` // Below 1 a fraction of the bar width, otherwise pixels.
	TUI        bool    `yaml:"tui"`         // Paint bars in the terminal.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Record captured input to WAV.
	OutputFile string `yaml:"output_file"` // Empty generates a timestamped name.
	BitDepth   int    `yaml:"bit_depth"`   // 16, 24 or 32.
}

// TransportConfig holds the frame outputs.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast JSON frames.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address, e.g. "localhost:8080".
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send binary frames over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Minimum time between packets.
	LogFrames        bool          `yaml:"log_frames"`         // Debug-log a summary of every frame.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides. The result is not validated: callers layer their own overrides on
// top and call Validate once on the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Validate rejects caller-contract violations and normalises values that
// have an obvious correction.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	// Audio
	if !(c.Audio.SampleRate > 0) {
		return fmt.Errorf("audio.sample_rate: %w, got %v", scale.ErrSampleRate, c.Audio.SampleRate)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %v outside [%d, %d] Hz", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device %d is invalid, use -1 for the default device", c.Audio.InputDevice)
	}
	if c.Audio.InputChannels < 1 {
		return fmt.Errorf("audio.input_channels: %w, got %d", ErrChannels, c.Audio.InputChannels)
	}
	if c.Audio.FramesPerBuffer < 1 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside [1, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if n := bitint.NextPowerOfTwo(c.Audio.FramesPerBuffer); n != c.Audio.FramesPerBuffer {
		applog.Warnf("Config: frames_per_buffer %d is not a power of 2, using %d", c.Audio.FramesPerBuffer, n)
		c.Audio.FramesPerBuffer = n
	}

	// Analysis
	if c.Analysis.FFTOrder < MinFFTOrder || c.Analysis.FFTOrder > MaxFFTOrder {
		return fmt.Errorf("analysis.fft_order: %w, %d not in [%d, %d]", ErrFFTOrder, c.Analysis.FFTOrder, MinFFTOrder, MaxFFTOrder)
	}
	if c.Analysis.GroupNotes < 1 {
		return fmt.Errorf("analysis.group_notes: %w, got %d", scale.ErrGroupNotes, c.Analysis.GroupNotes)
	}
	if c.Analysis.MinFreq >= c.Analysis.MaxFreq {
		applog.Warnf("Config: min_freq %.1f >= max_freq %.1f, no bars will be drawn", c.Analysis.MinFreq, c.Analysis.MaxFreq)
	}

	// Render
	if c.Render.Width < 1 || c.Render.Height < 1 {
		return fmt.Errorf("render: %w, got %dx%d", ErrCanvas, c.Render.Width, c.Render.Height)
	}
	if !(c.Render.FrameRate > 0) || c.Render.FrameRate > MaxFrameRate {
		return fmt.Errorf("render.frame_rate %v outside (0, %v]", c.Render.FrameRate, MaxFrameRate)
	}
	if c.Render.BarSpacing < 0 {
		return fmt.Errorf("render.bar_spacing must not be negative, got %v", c.Render.BarSpacing)
	}

	// Recording
	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
		}
		if c.Audio.SourceFile != "" {
			return fmt.Errorf("recording requires a capture device, not a source file")
		}
	}

	// Transport
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		return fmt.Errorf("transport.websocket_address must be set when the websocket is enabled")
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendInterval < 0 {
			return fmt.Errorf("transport.udp_send_interval must not be negative, got %s", c.Transport.UDPSendInterval)
		}
	}

	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// General
	envBool("ENV_DEBUG", &c.Debug)
	envString("ENV_LOG_LEVEL", &c.LogLevel)

	// ENV_AUDIO_{...}
	envInt("ENV_AUDIO_INPUT_DEVICE", &c.Audio.InputDevice)
	envFloat("ENV_AUDIO_SAMPLE_RATE", &c.Audio.SampleRate)
	envString("ENV_AUDIO_SOURCE_FILE", &c.Audio.SourceFile)

	// ENV_ANALYSIS_{...}
	envInt("ENV_ANALYSIS_FFT_ORDER", &c.Analysis.FFTOrder)
	envInt("ENV_ANALYSIS_GROUP_NOTES", &c.Analysis.GroupNotes)

	// ENV_WS_{...}
	envBool("ENV_WS_ENABLED", &c.Transport.WebSocketEnabled)
	envString("ENV_WS_ADDRESS", &c.Transport.WebSocketAddress)

	// ENV_UDP_{...}
	envBool("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDPSendInterval)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		applog.Infof("Config: Overriding from %s: %s", key, val)
	}
}

func envBool(key string, dst *bool) {
	envParse(key, dst, strconv.ParseBool)
}

func envInt(key string, dst *int) {
	envParse(key, dst, strconv.Atoi)
}

func envFloat(key string, dst *float64) {
	envParse(key, dst, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func envDuration(key string, dst *time.Duration) {
	envParse(key, dst, time.ParseDuration)
}

func envParse[T any](key string, dst *T, parse func(string) (T, error)) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v, err := parse(val)
	if err != nil {
		applog.Warnf("Config: Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = v
	applog.Infof("Config: Overriding from %s: %v", key, v)
}
