// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"time"

	"spectrum/internal/config"
	"spectrum/pkg/build"

	"github.com/spf13/cobra"
)

// cliOptions holds the raw flag values. Only flags the user actually set are
// applied over the loaded configuration.
type cliOptions struct {
	configPath string
	verbose    bool
	logLevel   string

	device          int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	channels        int
	input           string
	loop            bool

	fftOrder   int
	groupNotes int
	minFreq    float64
	maxFreq    float64

	width   int
	height  int
	fps     float64
	spacing float64
	tui     bool

	record   bool
	output   string
	bitDepth int

	ws          bool
	wsAddr      string
	udp         bool
	udpAddr     string
	udpInterval time.Duration
	logFrames   bool
}

// ParseArgs parses the command line, loads the configuration file and applies
// the flags on top of it. A nil config with a nil error means help or version
// output was requested and there is nothing to run.
func ParseArgs(args []string, out io.Writer) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	opts := &cliOptions{}
	var cfg *config.Config

	load := func(cmd *cobra.Command, command string) error {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}
		opts.apply(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		loaded.Command = command
		cfg = loaded
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, "")
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, "list")
		},
	}
	rootCmd.AddCommand(listCmd)

	flags := rootCmd.PersistentFlags()

	// General
	flags.StringVar(&opts.configPath, "config", "",
		"Configuration file (default ./config.yaml when present)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")
	flags.StringVar(&opts.logLevel, "log-level", "info",
		"Log level: debug, info, warn or error")

	// Audio Device Configuration
	flags.IntVarP(&opts.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&opts.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	flags.IntVarP(&opts.channels, "channels", "c", config.DefaultInputChannels,
		"Number of channels to capture; the first is analyzed")
	flags.StringVarP(&opts.input, "input", "i", "",
		"Play a WAV file instead of capturing from a device")
	flags.BoolVar(&opts.loop, "loop", false,
		"Restart the input file when it ends")

	// Analysis Configuration
	flags.IntVar(&opts.fftOrder, "fft-order", config.DefaultFFTOrder,
		"FFT size as a power of 2 (11 = 2048 samples)")
	flags.IntVarP(&opts.groupNotes, "group-notes", "g", config.DefaultGroupNotes,
		"Quarter tones per bar (2 = one bar per semitone)")
	flags.Float64Var(&opts.minFreq, "min-freq", config.DefaultMinFreq,
		"Lowest frequency shown, in Hz")
	flags.Float64Var(&opts.maxFreq, "max-freq", config.DefaultMaxFreq,
		"Highest frequency shown, in Hz")

	// Render Configuration
	flags.IntVar(&opts.width, "width", config.DefaultWidth,
		"Canvas width in pixels")
	flags.IntVar(&opts.height, "height", config.DefaultHeight,
		"Canvas height in pixels")
	flags.Float64Var(&opts.fps, "fps", config.DefaultFrameRate,
		"Render rate in frames per second")
	flags.Float64Var(&opts.spacing, "bar-spacing", config.DefaultBarSpacing,
		"Gap between bars: below 1 a fraction of the bar width, otherwise pixels")
	flags.BoolVarP(&opts.tui, "tui", "t", false,
		"Paint the spectrum in the terminal")

	// Recording Configuration
	flags.BoolVarP(&opts.record, "record", "r", false,
		"Record audio from the specified input device")
	flags.StringVarP(&opts.output, "output", "o", config.DefaultOutputFile,
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")
	flags.IntVar(&opts.bitDepth, "bit-depth", config.DefaultBitDepth,
		"Recording bit depth (16, 24 or 32)")

	// Transport Configuration
	flags.BoolVar(&opts.ws, "ws", false,
		"Broadcast frames as JSON over WebSocket")
	flags.StringVar(&opts.wsAddr, "ws-addr", config.DefaultWebSocketAddress,
		"WebSocket listen address")
	flags.BoolVar(&opts.udp, "udp", false,
		"Send binary frames over UDP")
	flags.StringVar(&opts.udpAddr, "udp-addr", config.DefaultUDPTargetAddress,
		"UDP target address")
	flags.DurationVar(&opts.udpInterval, "udp-interval", config.DefaultUDPSendInterval,
		"Minimum time between UDP packets")
	flags.BoolVar(&opts.logFrames, "log-frames", false,
		"Log a summary of every frame at debug level")

	// Execute the CLI
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies every flag the user set into cfg.
func (o *cliOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("verbose") && o.verbose {
		cfg.Debug = true
	}
	if changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	if changed("device") {
		cfg.Audio.InputDevice = o.device
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = o.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = o.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = o.lowLatency
	}
	if changed("channels") {
		cfg.Audio.InputChannels = o.channels
	}
	if changed("input") {
		cfg.Audio.SourceFile = o.input
	}
	if changed("loop") {
		cfg.Audio.Loop = o.loop
	}

	if changed("fft-order") {
		cfg.Analysis.FFTOrder = o.fftOrder
	}
	if changed("group-notes") {
		cfg.Analysis.GroupNotes = o.groupNotes
	}
	if changed("min-freq") {
		cfg.Analysis.MinFreq = o.minFreq
	}
	if changed("max-freq") {
		cfg.Analysis.MaxFreq = o.maxFreq
	}

	if changed("width") {
		cfg.Render.Width = o.width
	}
	if changed("height") {
		cfg.Render.Height = o.height
	}
	if changed("fps") {
		cfg.Render.FrameRate = o.fps
	}
	if changed("bar-spacing") {
		cfg.Render.BarSpacing = o.spacing
	}
	if changed("tui") {
		cfg.Render.TUI = o.tui
	}

	if changed("record") {
		cfg.Recording.Enabled = o.record
	}
	if changed("output") {
		cfg.Recording.OutputFile = o.output
	}
	if changed("bit-depth") {
		cfg.Recording.BitDepth = o.bitDepth
	}

	if changed("ws") {
		cfg.Transport.WebSocketEnabled = o.ws
	}
	if changed("ws-addr") {
		cfg.Transport.WebSocketAddress = o.wsAddr
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = o.udp
	}
	if changed("udp-addr") {
		cfg.Transport.UDPTargetAddress = o.udpAddr
	}
	if changed("udp-interval") {
		cfg.Transport.UDPSendInterval = o.udpInterval
	}
	if changed("log-frames") {
		cfg.Transport.LogFrames = o.logFrames
	}
}
