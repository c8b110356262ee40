// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MagnitudeTransform is the forward transform capability the pipeline needs.
// Magnitudes writes one non-negative magnitude per frequency bin of an
// already windowed frame into dst, ordered by increasing frequency.
// len(dst) is len(frame)/2; the mirrored upper half is never produced.
// Implementations are called from the render goroutine once per frame and
// must not allocate.
type MagnitudeTransform interface {
	Magnitudes(dst, frame []float64)
}

// FourierTransform is the gonum backed MagnitudeTransform. Magnitudes are
// not normalized; the level mapper subtracts the FFT size in decibels.
type FourierTransform struct {
	fft       *fourier.FFT
	size      int
	fftOutput []complex128 // N/2 + 1 coefficients for real input
}

var _ MagnitudeTransform = (*FourierTransform)(nil)

// NewFourierTransform pre-allocates the FFT plan and coefficient buffer.
func NewFourierTransform(size int) *FourierTransform {
	return &FourierTransform{
		fft:       fourier.NewFFT(size),
		size:      size,
		fftOutput: make([]complex128, size/2+1),
	}
}

// Magnitudes performs the FFT and writes |X[k]| for k in [0, len(dst)).
func (f *FourierTransform) Magnitudes(dst, frame []float64) {
	if len(frame) != f.size {
		panic(fmt.Sprintf("analysis: frame length %d does not match FFT size %d", len(frame), f.size))
	}
	f.fft.Coefficients(f.fftOutput, frame)
	for i := range dst {
		dst[i] = cmplx.Abs(f.fftOutput[i])
	}
}
