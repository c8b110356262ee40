// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spectrum/internal/scale"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.FFTSize() != 2048 {
		t.Errorf("default FFT size = %d, want 2048", cfg.FFTSize())
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_Sections(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: warn
audio:
  input_device: 3
  sample_rate: 48000
  frames_per_buffer: 256
  input_channels: 2
  source_file: song.wav
  loop: true
analysis:
  fft_order: 12
  group_notes: 4
  min_freq: 30
  max_freq: 16000
render:
  width: 1024
  height: 256
  frame_rate: 30
  bar_spacing: 2
  tui: true
transport:
  websocket_enabled: true
  websocket_address: ":9000"
  udp_enabled: true
  udp_target_address: "10.0.0.2:7000"
  udp_send_interval: 50ms
  log_frames: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	want := AudioConfig{
		InputDevice:     3,
		SampleRate:      48000,
		FramesPerBuffer: 256,
		InputChannels:   2,
		SourceFile:      "song.wav",
		Loop:            true,
	}
	if cfg.Audio != want {
		t.Errorf("Audio = %+v, want %+v", cfg.Audio, want)
	}
	if cfg.FFTSize() != 4096 {
		t.Errorf("FFTSize() = %d, want 4096", cfg.FFTSize())
	}
	p := cfg.ScaleParams()
	if p != (scale.Params{SampleRate: 48000, FFTSize: 4096, GroupNotes: 4, MinFreq: 30, MaxFreq: 16000}) {
		t.Errorf("ScaleParams() = %+v", p)
	}
	if cfg.Render != (RenderConfig{Width: 1024, Height: 256, FrameRate: 30, BarSpacing: 2, TUI: true}) {
		t.Errorf("Render = %+v", cfg.Render)
	}
	if cfg.Transport.UDPSendInterval != 50*time.Millisecond {
		t.Errorf("UDPSendInterval = %s, want 50ms", cfg.Transport.UDPSendInterval)
	}
	if !cfg.Transport.WebSocketEnabled || cfg.Transport.WebSocketAddress != ":9000" || !cfg.Transport.LogFrames {
		t.Errorf("Transport = %+v", cfg.Transport)
	}
	// Unset sections keep their defaults.
	if cfg.Recording.BitDepth != DefaultBitDepth {
		t.Errorf("Recording.BitDepth = %d, want default %d", cfg.Recording.BitDepth, DefaultBitDepth)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "audio:\n  sample_rate: 48000\n")
	t.Setenv("ENV_AUDIO_SAMPLE_RATE", "96000")
	t.Setenv("ENV_ANALYSIS_GROUP_NOTES", "3")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "100ms")
	t.Setenv("ENV_WS_ADDRESS", "0.0.0.0:8181")
	t.Setenv("ENV_ANALYSIS_FFT_ORDER", "not-a-number")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Audio.SampleRate != 96000 {
		t.Errorf("SampleRate = %v, want the env value 96000", cfg.Audio.SampleRate)
	}
	if cfg.Analysis.GroupNotes != 3 {
		t.Errorf("GroupNotes = %d, want 3", cfg.Analysis.GroupNotes)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 100*time.Millisecond {
		t.Errorf("Transport = %+v", cfg.Transport)
	}
	if cfg.Transport.WebSocketAddress != "0.0.0.0:8181" {
		t.Errorf("WebSocketAddress = %q", cfg.Transport.WebSocketAddress)
	}
	if cfg.Analysis.FFTOrder != DefaultFFTOrder {
		t.Errorf("bad env value should be ignored, FFTOrder = %d", cfg.Analysis.FFTOrder)
	}
}

func TestLoadConfig_LeavesValidationToCaller(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "analysis:\n  group_notes: 0\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Analysis.GroupNotes != 0 {
		t.Errorf("GroupNotes = %d, want the raw file value 0", cfg.Analysis.GroupNotes)
	}
	if err := cfg.Validate(); !errors.Is(err, scale.ErrGroupNotes) {
		t.Errorf("Validate() = %v, want ErrGroupNotes", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		errText string
	}{
		{"defaults", func(c *Config) {}, nil, ""},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, scale.ErrSampleRate, ""},
		{"negative sample rate", func(c *Config) { c.Audio.SampleRate = -1 }, scale.ErrSampleRate, ""},
		{"sample rate too high", func(c *Config) { c.Audio.SampleRate = 400000 }, nil, "outside"},
		{"zero grouping", func(c *Config) { c.Analysis.GroupNotes = 0 }, scale.ErrGroupNotes, ""},
		{"fft order too small", func(c *Config) { c.Analysis.FFTOrder = 3 }, ErrFFTOrder, ""},
		{"fft order too large", func(c *Config) { c.Analysis.FFTOrder = 20 }, ErrFFTOrder, ""},
		{"no channels", func(c *Config) { c.Audio.InputChannels = 0 }, ErrChannels, ""},
		{"bad device", func(c *Config) { c.Audio.InputDevice = -2 }, nil, "input_device"},
		{"zero width", func(c *Config) { c.Render.Width = 0 }, ErrCanvas, ""},
		{"zero frame rate", func(c *Config) { c.Render.FrameRate = 0 }, nil, "frame_rate"},
		{"negative spacing", func(c *Config) { c.Render.BarSpacing = -1 }, nil, "bar_spacing"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, nil, "log_level"},
		{"empty range is allowed", func(c *Config) { c.Analysis.MinFreq, c.Analysis.MaxFreq = 500, 100 }, nil, ""},
		{"bad bit depth", func(c *Config) { c.Recording.Enabled = true; c.Recording.BitDepth = 12 }, nil, "bit_depth"},
		{"record a file source", func(c *Config) { c.Recording.Enabled = true; c.Audio.SourceFile = "x.wav" }, nil, "source file"},
		{"udp without target", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPTargetAddress = "" }, nil, "udp_target_address"},
		{"websocket without address", func(c *Config) { c.Transport.WebSocketEnabled = true; c.Transport.WebSocketAddress = "" }, nil, "websocket_address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()

			switch {
			case tt.wantErr == nil && tt.errText == "":
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
				}
			default:
				if err == nil || !strings.Contains(err.Error(), tt.errText) {
					t.Errorf("Validate() = %v, want error mentioning %q", err, tt.errText)
				}
			}
		})
	}
}

func TestValidateRoundsFramesPerBuffer(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Audio.FramesPerBuffer = 300
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Audio.FramesPerBuffer != 512 {
		t.Errorf("FramesPerBuffer = %d, want 512", cfg.Audio.FramesPerBuffer)
	}

	cfg.Audio.FramesPerBuffer = MaxBufferFrames + 1
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error above MaxBufferFrames")
	}
}

func TestRecordingFile(t *testing.T) {
	t.Parallel()
	cfg := Default()
	now := time.Date(2025, 3, 9, 14, 5, 6, 0, time.UTC)
	if got := cfg.RecordingFile(now); got != "recording-09-03-2025-140506.wav" {
		t.Errorf("RecordingFile() = %q", got)
	}
	cfg.Recording.OutputFile = "take1.wav"
	if got := cfg.RecordingFile(now); got != "take1.wav" {
		t.Errorf("RecordingFile() = %q, want take1.wav", got)
	}
}
