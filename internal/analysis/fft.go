// SPDX-License-Identifier: MIT

/*
Package analysis turns a completed sample frame into a magnitude spectrum.

The pipeline is fixed at construction: a Hann window of the FFT size,
normalised so its coefficients sum to the FFT size, and a MagnitudeTransform. All buffers are pre-allocated so Analyze performs no
allocation per frame.
*/
package analysis

import (
	"fmt"

	applog "spectrum/internal/log"
	"spectrum/pkg/bitint"

	"gonum.org/v1/gonum/dsp/window"
)

// Pipeline applies the window and the magnitude transform to one frame.
type Pipeline struct {
	fftSize   int
	window    []float64 // Pre-calculated Hann coefficients.
	magnitude []float64 // fftSize/2 usable bins, overwritten each frame.
	transform MagnitudeTransform
}

// NewPipeline builds a pipeline for fftSize samples. A nil transform selects
// the gonum FFT.
func NewPipeline(fftSize int, transform MagnitudeTransform) (*Pipeline, error) {
	if !bitint.IsPowerOfTwo(fftSize) || fftSize < 2 {
		return nil, fmt.Errorf("fft size must be a power of 2 >= 2, got %d", fftSize)
	}
	if transform == nil {
		transform = NewFourierTransform(fftSize)
	}

	applog.Infof("Analysis: Initializing pipeline (Size: %d, Bins: %d, Window: Hann)", fftSize, fftSize/2)

	return &Pipeline{
		fftSize:   fftSize,
		window:    hannTable(fftSize),
		magnitude: make([]float64, fftSize/2),
		transform: transform,
	}, nil
}

// hannTable returns the window coefficients. gonum's window functions scale
// a sequence in place, so the table starts as all ones. The coefficients are
// then normalised to sum to n, so a full-scale sine at a bin centre reads
// n/2 after the transform whatever the window's coherent gain.
func hannTable(n int) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	window.Hann(coeffs)

	var sum float64
	for _, c := range coeffs {
		sum += c
	}
	if sum > 0 {
		scale := float64(n) / sum
		for i := range coeffs {
			coeffs[i] *= scale
		}
	}
	return coeffs
}

// Analyze windows frame in place and returns the magnitude spectrum. The
// frame contents are destroyed. The returned slice is owned by the pipeline
// and is only valid until the next call.
// Performance Critical: no allocations.
func (p *Pipeline) Analyze(frame []float64) []float64 {
	for i, w := range p.window {
		frame[i] *= w
	}
	p.transform.Magnitudes(p.magnitude, frame)
	return p.magnitude
}

// FFTSize returns the number of samples per frame.
func (p *Pipeline) FFTSize() int {
	return p.fftSize
}

// Bins returns the number of usable magnitude bins (fftSize/2).
func (p *Pipeline) Bins() int {
	return len(p.magnitude)
}

// Window returns the window coefficients. Callers must not modify them.
func (p *Pipeline) Window() []float64 {
	return p.window
}
