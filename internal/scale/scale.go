// SPDX-License-Identifier: MIT

/*
Package scale maps visual bars onto FFT bins using an equal-tempered
frequency scale.

Canvas space is spent on the musically interesting part of the spectrum: the
candidate frequencies are quarter-tone steps starting at C0, and every
GroupNotes-th step inside [MinFreq, MaxFreq] becomes one bar.

	1 Hz       10        100        1K        10K      100K
	|----------|----------|----------|----------|---------|
	                |<-------------- bars ------------->|
	       MinFreq  20 Hz                       22 kHz  MaxFreq

At low frequencies the FFT resolution is coarser than the note spacing, so
several bars can fall on one bin; those bars are given interpolation factors.
At high frequencies one bar covers many bins; the bar aggregates (max) over
half of the gap to its neighbour.

The table is rebuilt only when its inputs change and is read-only afterwards.
*/
package scale

import (
	"errors"
	"fmt"
	"math"

	"spectrum/pkg/bitint"
)

const (
	// ReferencePitch is A4 in Hz.
	ReferencePitch = 440.0
	// StepsPerOctave gives quarter-tone resolution.
	StepsPerOctave = 24
	// LowestStep is the offset from A4 of the first candidate, C0 (~16.35 Hz).
	LowestStep = -114

	DefaultMinFreq    = 20.0
	DefaultMaxFreq    = 22000.0
	DefaultGroupNotes = 2
)

// StepRatio is the frequency ratio between adjacent candidates, 2^(1/24).
var StepRatio = math.Pow(2, 1.0/StepsPerOctave)

var (
	ErrSampleRate = errors.New("sample rate must be positive")
	ErrGroupNotes = errors.New("note grouping must be at least 1")
	ErrFFTSize    = errors.New("fft size must be a power of 2 >= 2")
)

// Params are the inputs the bar table depends on.
type Params struct {
	SampleRate float64 // Hz, from the audio collaborator
	FFTSize    int     // samples per frame
	GroupNotes int     // keep every GroupNotes-th quarter tone
	MinFreq    float64 // Hz
	MaxFreq    float64 // Hz
}

// Validate rejects caller-contract violations. An empty frequency range is
// not an error; it yields zero bars.
func (p Params) Validate() error {
	if !(p.SampleRate > 0) {
		return fmt.Errorf("%w, got %v", ErrSampleRate, p.SampleRate)
	}
	if p.GroupNotes < 1 {
		return fmt.Errorf("%w, got %d", ErrGroupNotes, p.GroupNotes)
	}
	if !bitint.IsPowerOfTwo(p.FFTSize) || p.FFTSize < 2 {
		return fmt.Errorf("%w, got %d", ErrFFTSize, p.FFTSize)
	}
	return nil
}

// Bar is one visual column.
type Bar struct {
	Position  int     // column index, same as the index in the scale
	DataIndex int     // primary FFT bin
	EndIndex  int     // inclusive end of a bin range, 0 for a single-bin bar
	Factor    float64 // interpolation factor for bars sharing a bin, else 0
}

// TemperedScale returns the retained candidate frequencies in increasing
// order. Candidate i is 440 * 2^((i+LowestStep)/24); it is kept when it lies
// in [minFreq, maxFreq] and i is a multiple of groupNotes. Generation stops
// at the first candidate above maxFreq.
func TemperedScale(minFreq, maxFreq float64, groupNotes int) []float64 {
	if groupNotes < 1 || !(minFreq < maxFreq) || math.IsInf(maxFreq, 1) {
		return nil
	}
	c0 := ReferencePitch * math.Pow(StepRatio, LowestStep)

	var freqs []float64
	for i := 0; ; i++ {
		freq := c0 * math.Pow(StepRatio, float64(i))
		if freq > maxFreq {
			break
		}
		if freq >= minFreq && i%groupNotes == 0 {
			freqs = append(freqs, freq)
		}
	}
	return freqs
}

// FreqToBin returns the FFT bin nearest to freq, clamped to the usable range
// [0, fftSize/2-1].
func FreqToBin(freq, sampleRate float64, fftSize int) int {
	bin := int(math.Round(freq * float64(fftSize) / sampleRate))
	if last := fftSize/2 - 1; bin > last {
		return last
	}
	if bin < 0 {
		return 0
	}
	return bin
}

// BuildBars walks the scale in increasing order and assigns FFT bins to bars.
//
//   - A bar starts at the bin after the previous bar's end when that does not
//     pass its own nearest bin; otherwise at its nearest bin.
//   - Consecutive bars starting on the same bin form a run. When a run of
//     N > 1 bars closes, the bars get factors 1/N, 2/N, ..., 1.
//   - When the next scale entry is more than one bin away, round(gap/2) bins
//     are added to this bar's range. Only the forward half of the gap is
//     folded in; the following bar does not take the backward half.
func BuildBars(freqs []float64, sampleRate float64, fftSize int) []Bar {
	if len(freqs) == 0 {
		return nil
	}

	bars := make([]Bar, 0, len(freqs))
	prevEnd := 0  // previous bar's end bin
	runStart := 0 // first bar of the current run
	runIdx := -1  // start bin shared by the current run

	for index, freq := range freqs {
		bin := FreqToBin(freq, sampleRate, fftSize)

		idx := bin
		if prevEnd > 0 && prevEnd+1 <= bin {
			idx = prevEnd + 1
		}

		if idx != runIdx {
			assignFactors(bars[runStart:])
			runStart = index
			runIdx = idx
		}

		end := bin
		if index+1 < len(freqs) {
			next := FreqToBin(freqs[index+1], sampleRate, fftSize)
			if gap := next - bin; gap > 1 {
				end += int(math.Round(float64(gap) / 2))
			}
		}
		prevEnd = end

		endIndex := 0
		if end > idx {
			endIndex = end
		}

		bars = append(bars, Bar{
			Position:  index,
			DataIndex: idx,
			EndIndex:  endIndex,
		})
	}
	assignFactors(bars[runStart:])

	return bars
}

// assignFactors spreads a run of bars sharing one bin across (0, 1].
func assignFactors(run []Bar) {
	n := len(run)
	if n < 2 {
		return
	}
	for rank := range run {
		run[rank].Factor = float64(rank+1) / float64(n)
	}
}
