// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	applog "spectrum/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrAlreadyRecording = errors.New("already recording")

// Recorder writes captured float32 blocks to a PCM WAV file. Write is called
// from the audio callback; Start and Stop from the main goroutine. Write never
// takes a lock: it registers in writers and Stop waits for that count to
// drain before closing the encoder.
type Recorder struct {
	recording atomic.Bool
	writers   atomic.Int32 // Writes in flight

	mu         sync.Mutex // Serialises Start and Stop
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reused for format conversion
	bitDepth   int
	frames     uint64
}

// Start creates filename and begins accepting blocks of up to
// framesPerBuffer*channels interleaved samples.
func (r *Recorder) Start(filename string, sampleRate, channels, bitDepth, framesPerBuffer int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording.Load() {
		return ErrAlreadyRecording
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}

	r.outputFile = file
	r.wavEncoder = wav.NewEncoder(file, sampleRate, bitDepth, channels, 1)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, framesPerBuffer*channels),
		SourceBitDepth: bitDepth,
	}
	r.bitDepth = bitDepth
	r.frames = 0
	r.recording.Store(true)

	applog.Infof("Recorder: Writing %s (%d Hz, %d ch, %d bit)", filename, sampleRate, channels, bitDepth)
	return nil
}

// Write appends one interleaved block. It is a no-op when not recording.
func (r *Recorder) Write(block []float32) error {
	if !r.recording.Load() {
		return nil
	}

	r.writers.Add(1)
	defer r.writers.Add(-1)
	// Stop may have flipped the flag before we registered.
	if !r.recording.Load() {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(block) {
		r.sampleBuf.Data = make([]int, len(block))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(block)]
	FloatToPCM(r.sampleBuf.Data, block, r.bitDepth)

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	r.frames += uint64(len(block) / r.sampleBuf.Format.NumChannels)
	return nil
}

// Stop finalizes the WAV header and closes the file. It waits for any Write
// already in progress to finish first.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording.Swap(false) {
		return nil
	}
	for r.writers.Load() != 0 {
		runtime.Gosched()
	}

	var errs []error
	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to finalize recording: %w", err))
		}
		r.wavEncoder = nil
	}
	if r.outputFile != nil {
		applog.Infof("Recorder: Saved %s (%d frames)", r.outputFile.Name(), r.frames)
		if err := r.outputFile.Close(); err != nil {
			errs = append(errs, err)
		}
		r.outputFile = nil
	}
	return errors.Join(errs...)
}

// Recording reports whether a file is open.
func (r *Recorder) Recording() bool {
	return r.recording.Load()
}

// FloatToPCM converts samples in [-1, 1] to signed integers of bitDepth
// bits, clipping out-of-range input. dst must be at least len(src).
func FloatToPCM(dst []int, src []float32, bitDepth int) {
	full := float64(int64(1)<<(bitDepth-1) - 1)
	for i, s := range src {
		v := math.Max(-1, math.Min(1, float64(s)))
		dst[i] = int(math.Round(v * full))
	}
}

// PCMToFloat converts signed integers of bitDepth bits to [-1, 1].
func PCMToFloat(dst []float32, src []int, bitDepth int) {
	scale := 1 / float64(int64(1)<<(bitDepth-1))
	for i, s := range src {
		dst[i] = float32(float64(s) * scale)
	}
}
