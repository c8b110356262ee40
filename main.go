// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spectrum/cmd"
	"spectrum/internal/analysis"
	"spectrum/internal/audio"
	"spectrum/internal/config"
	"spectrum/internal/fifo"
	applog "spectrum/internal/log"
	"spectrum/internal/render"
	"spectrum/internal/transport"
	"spectrum/internal/transport/udp"
	"spectrum/internal/tui"
	"spectrum/pkg/build"

	"golang.org/x/sync/errgroup"
)

// main is the entry point for the spectrum analyzer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Execute one-off commands if requested
//   - Build the assembler, pipeline, sinks and render driver
//
// 2. Concurrent Phase (Hot Path):
//   - Audio callback (or file source) fills the assembler
//   - Render driver ticks, analyzes ready frames and feeds the sinks
//   - Terminal painter runs if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or painter exit
//   - Stop recording if active
//   - Close sinks and the audio stream
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	buildErr := build.Initialize()

	cfg, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg == nil {
		return
	}

	applog.Configure(cfg.LogLevel, cfg.Debug)
	if buildErr != nil {
		applog.Debugf("Build: Development build, %v", buildErr)
	}
	applog.Infof("Build: %s", build.GetBuildFlags())

	// Handle one-off commands (e.g., device listing) that don't require
	// the render loop to be running
	if cfg.Command != "" {
		if err := executeCommand(cfg.Command); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

// executeCommand handles one-off commands that don't require the render
// loop, such as listing available audio devices.
func executeCommand(command string) error {
	switch command {
	case "list":
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)
	}
	return fmt.Errorf("unknown command %q", command)
}

// source is the producer feeding the assembler.
type source interface {
	SampleRate() float64
	Close() error
}

func run(cfg *config.Config) error {
	fftSize := cfg.FFTSize()
	asm, err := fifo.NewAssembler(fftSize)
	if err != nil {
		return err
	}
	pipeline, err := analysis.NewPipeline(fftSize, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// Producer: a WAV file or a PortAudio device.
	var src source
	var file *audio.FileSource
	var capture *audio.Capture
	if cfg.Audio.SourceFile != "" {
		file, err = audio.NewFileSource(cfg.Audio.SourceFile, asm, cfg.Audio.FramesPerBuffer, cfg.Audio.Loop)
		if err != nil {
			return err
		}
		src = file
	} else {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()

		capture, err = audio.NewCapture(&cfg.Audio, asm)
		if err != nil {
			return err
		}
		// CRITICAL: Start of real-time audio processing
		if err := capture.Start(); err != nil {
			return err
		}
		src = capture
	}
	defer func() {
		if err := src.Close(); err != nil {
			applog.Errorf("Source: Close failed: %v", err)
		}
	}()

	if capture != nil && cfg.Recording.Enabled {
		filename := cfg.RecordingFile(time.Now())
		if err := capture.StartRecording(filename, cfg.Recording.BitDepth); err != nil {
			return err
		}
		defer func() {
			if err := capture.StopRecording(); err != nil {
				applog.Errorf("Recording: %v", err)
			}
			fmt.Printf("\nRecording saved to: %s\n", filename)
		}()
	}

	// Sinks
	var driver *render.Driver
	var painter *tui.Painter
	sinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	if cfg.Render.TUI {
		painter = tui.NewPainter(build.GetBuildFlags().Name, func(w, h float64) error {
			return driver.Resize(w, h)
		}, cfg.Render.FrameRate)
		sinks = append(sinks, painter)
		// The painter owns the terminal.
		logFile, err := os.Create("spectrum.log")
		if err != nil {
			closeSinks(sinks)
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()
		applog.SetOutput(logFile)
		defer applog.SetOutput(os.Stderr)
	}
	defer closeSinks(sinks)
	if len(sinks) == 0 {
		applog.Warnf("Render: No outputs enabled, frames are analyzed but not shown")
	}

	params := cfg.ScaleParams()
	params.SampleRate = src.SampleRate()
	driver, err = render.NewDriver(render.Options{
		Assembler:  asm,
		Pipeline:   pipeline,
		Params:     params,
		Width:      float64(cfg.Render.Width),
		Height:     float64(cfg.Render.Height),
		FrameRate:  cfg.Render.FrameRate,
		BarSpacing: cfg.Render.BarSpacing,
		Sinks:      sinks,
	})
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if file != nil {
		g.Go(func() error {
			if err := file.Run(ctx); err != nil {
				return err
			}
			if painter == nil {
				stop()
			} else {
				// Keep the last frame on screen until the user quits.
				applog.Infof("Source: Finished, press q to exit")
			}
			return nil
		})
	}
	g.Go(func() error {
		return driver.Run(ctx)
	})
	if painter != nil {
		g.Go(func() error {
			err := painter.Run()
			// Quitting the painter ends the program.
			stop()
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			return painter.Close()
		})
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s := driver.Stats()
	applog.Infof("Render: %d frames rendered, %d dropped by the assembler, %d sink errors",
		s.Rendered, asm.Dropped(), s.SinkErrors)
	return nil
}

// openSinks creates the network and logging outputs selected in cfg.
func openSinks(cfg *config.Config) ([]transport.Transport, error) {
	var sinks []transport.Transport

	if cfg.Transport.LogFrames {
		sinks = append(sinks, transport.NewLoggingTransport())
	}
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		if err != nil {
			closeSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, ws)
	}
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			closeSinks(sinks)
			return nil, err
		}
		pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			closeSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, pub)
	}
	return sinks, nil
}

func closeSinks(sinks []transport.Transport) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			applog.Errorf("Transport: Close %T failed: %v", s, err)
		}
	}
}
