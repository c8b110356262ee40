// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	applog "spectrum/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrInvalidWAV = errors.New("not a valid PCM WAV file")

// FileSource plays a WAV file into a SampleWriter at real-time pace, as if
// it were an input device running at the file's sample rate.
type FileSource struct {
	path string
	out  SampleWriter
	loop bool
	pace bool

	file    *os.File
	decoder *wav.Decoder

	sampleRate int
	channels   int
	bitDepth   int
	frames     int // frames per block

	pcm     *audio.IntBuffer
	samples []float32
	played  atomic.Uint64 // frames delivered
}

// NewFileSource opens path and reads its header. framesPerBuffer sets the
// block size delivered per write.
func NewFileSource(path string, out SampleWriter, framesPerBuffer int, loop bool) (*FileSource, error) {
	if out == nil {
		return nil, fmt.Errorf("file source needs a sample writer")
	}
	if framesPerBuffer < 1 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}

	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		f.Close()
		return nil, fmt.Errorf("%s: unsupported bit depth %d: %w", path, dec.BitDepth, ErrInvalidWAV)
	}

	s := &FileSource{
		path:       path,
		out:        out,
		loop:       loop,
		pace:       true,
		file:       f,
		decoder:    dec,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		bitDepth:   int(dec.BitDepth),
		frames:     framesPerBuffer,
	}
	s.pcm = &audio.IntBuffer{
		Format: &audio.Format{NumChannels: s.channels, SampleRate: s.sampleRate},
		Data:   make([]int, framesPerBuffer*s.channels),
	}
	s.samples = make([]float32, framesPerBuffer*s.channels)

	applog.Infof("FileSource: %s (%d Hz, %d ch, %d bit, loop %v)", path, s.sampleRate, s.channels, s.bitDepth, loop)
	return s, nil
}

// SampleRate returns the file's sample rate.
func (s *FileSource) SampleRate() float64 {
	return float64(s.sampleRate)
}

// Channels returns the file's channel count.
func (s *FileSource) Channels() int {
	return s.channels
}

// Played returns how many frames have been delivered.
func (s *FileSource) Played() uint64 {
	return s.played.Load()
}

// Run delivers blocks until the file ends (or forever when looping) or ctx
// is done. It returns nil at the end of the file and on cancellation.
func (s *FileSource) Run(ctx context.Context) error {
	period := time.Duration(float64(s.frames) / float64(s.sampleRate) * float64(time.Second))
	var tick <-chan time.Time
	if s.pace {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	rewound := false
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		s.pcm.Data = s.pcm.Data[:cap(s.pcm.Data)]
		n, err := s.decoder.PCMBuffer(s.pcm)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode %s: %w", s.path, err)
		}
		if n > 0 {
			PCMToFloat(s.samples[:n], s.pcm.Data[:n], s.bitDepth)
			s.out.Write(s.samples[:n], s.channels)
			s.played.Add(uint64(n / s.channels))
		}
		if n < len(s.samples) {
			if n == 0 && rewound {
				return fmt.Errorf("%s holds no samples", s.path)
			}
			if !s.loop {
				applog.Infof("FileSource: End of %s after %d frames", s.path, s.played.Load())
				return nil
			}
			if err := s.rewind(); err != nil {
				return err
			}
			rewound = true
			continue
		}
		rewound = false
	}
}

// rewind restarts decoding at the first sample.
func (s *FileSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind %s: %w", s.path, err)
	}
	s.decoder = wav.NewDecoder(s.file)
	if !s.decoder.IsValidFile() {
		return fmt.Errorf("%s: %w", s.path, ErrInvalidWAV)
	}
	applog.Debugf("FileSource: Looping %s", s.path)
	return nil
}

func (s *FileSource) Close() error {
	return s.file.Close()
}
