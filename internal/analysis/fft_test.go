// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"spectrum/pkg/utils"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

// identityTransform copies the first half of the windowed frame into the
// magnitude buffer so tests can see exactly what reached the transform.
type identityTransform struct {
	calls int
}

func (t *identityTransform) Magnitudes(dst, frame []float64) {
	t.calls++
	copy(dst, frame[:len(dst)])
}

func toFrame(samples []float32) []float64 {
	frame := make([]float64, len(samples))
	for i, s := range samples {
		frame[i] = float64(s)
	}
	return frame
}

func TestNewPipelineRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, 1, 3, 1000} {
		if _, err := NewPipeline(size, nil); err == nil {
			t.Errorf("Expected error for FFT size %d", size)
		}
	}
}

func TestPipelineBins(t *testing.T) {
	p, err := NewPipeline(testFFTSize, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if p.FFTSize() != testFFTSize {
		t.Errorf("FFTSize() = %d, want %d", p.FFTSize(), testFFTSize)
	}
	if p.Bins() != testFFTSize/2 {
		t.Errorf("Bins() = %d, want %d", p.Bins(), testFFTSize/2)
	}
}

func TestHannWindowShape(t *testing.T) {
	p, _ := NewPipeline(testFFTSize, &identityTransform{})
	w := p.Window()

	if w[0] > 1e-12 || w[len(w)-1] > 1e-12 {
		t.Errorf("Hann edges should be zero, got %v and %v", w[0], w[len(w)-1])
	}
	for i := range len(w) / 2 {
		if math.Abs(w[i]-w[len(w)-1-i]) > 1e-12 {
			t.Fatalf("Window not symmetric at %d: %v vs %v", i, w[i], w[len(w)-1-i])
		}
	}
	// Normalised to sum to the FFT size, which puts the peak near 2.
	var sum float64
	for _, c := range w {
		sum += c
	}
	if math.Abs(sum-testFFTSize) > 1e-9 {
		t.Errorf("Window sum = %v, want %d", sum, testFFTSize)
	}
	if mid := w[len(w)/2]; mid < 1.99 || mid > 2.01 {
		t.Errorf("Window peak should be ~2, got %v", mid)
	}
}

func TestAnalyzeAppliesWindowBeforeTransform(t *testing.T) {
	tr := &identityTransform{}
	p, _ := NewPipeline(testFFTSize, tr)

	frame := make([]float64, testFFTSize)
	for i := range frame {
		frame[i] = 2
	}
	mags := p.Analyze(frame)

	if tr.calls != 1 {
		t.Fatalf("Expected one transform call, got %d", tr.calls)
	}
	if len(mags) != testFFTSize/2 {
		t.Fatalf("Expected %d bins, got %d", testFFTSize/2, len(mags))
	}
	w := p.Window()
	for i, m := range mags {
		if math.Abs(m-2*w[i]) > 1e-12 {
			t.Fatalf("mags[%d] = %v, want %v", i, m, 2*w[i])
		}
	}
	// The frame is consumed in place.
	if frame[0] != 0 {
		t.Errorf("Analyze should window the frame in place, frame[0] = %v", frame[0])
	}
}

func TestAnalyzeFindsSinePeak(t *testing.T) {
	p, _ := NewPipeline(testFFTSize, nil)

	const bin = 40
	freq := utils.BinFrequency(bin, testFFTSize, testSampleRate)
	frame := toFrame(utils.GenerateSineWave(testFFTSize, testSampleRate, freq, 1.0))

	mags := p.Analyze(frame)

	if peak := utils.FindPeakBin(mags, 0, len(mags)-1); peak != bin {
		t.Errorf("Peak at bin %d, want %d", peak, bin)
	}

	// A unit sine through the normalised window peaks near N/2.
	want := float64(testFFTSize) / 2
	if got := mags[bin]; math.Abs(got-want)/want > 0.02 {
		t.Errorf("Peak magnitude %v, want about %v", got, want)
	}
	for i, m := range mags {
		if m < 0 {
			t.Fatalf("mags[%d] is negative: %v", i, m)
		}
	}
}

func TestAnalyzeSilenceIsZero(t *testing.T) {
	p, _ := NewPipeline(testFFTSize, nil)
	mags := p.Analyze(make([]float64, testFFTSize))
	for i, m := range mags {
		if m != 0 {
			t.Fatalf("mags[%d] = %v for silence", i, m)
		}
	}
}

func TestAnalyzeHotPath(t *testing.T) {
	p, _ := NewPipeline(testFFTSize, nil)
	source := toFrame(utils.GenerateComplexWave(testFFTSize, testSampleRate))
	frame := make([]float64, testFFTSize)

	// Warm-up call so lazy initialisation does not count.
	copy(frame, source)
	p.Analyze(frame)

	allocs := testing.AllocsPerRun(100, func() {
		copy(frame, source)
		p.Analyze(frame)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Analyze hot path, got %.1f", allocs)
	}
}

func TestFourierTransformPanicsOnWrongLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for mismatched frame length")
		}
	}()
	f := NewFourierTransform(64)
	f.Magnitudes(make([]float64, 16), make([]float64, 32))
}

func BenchmarkAnalyze(b *testing.B) {
	p, _ := NewPipeline(2048, nil)
	source := toFrame(utils.GenerateComplexWave(2048, testSampleRate))
	frame := make([]float64, 2048)

	b.ReportAllocs()
	for b.Loop() {
		copy(frame, source)
		p.Analyze(frame)
	}
}
