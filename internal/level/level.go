// SPDX-License-Identifier: MIT

// Package level turns FFT magnitudes into pixel-space bar tops.
package level

import (
	"math"

	"spectrum/internal/scale"
)

const (
	DefaultMinDB = -100.0
	DefaultMaxDB = 0.0
)

// Mapper converts magnitudes from an FFT of FFTSize points into decibels
// normalised against the transform gain, then into pixel rows.
type Mapper struct {
	FFTSize int
	MinDB   float64
	MaxDB   float64

	offset float64 // decibel value of FFTSize
}

func NewMapper(fftSize int) *Mapper {
	m := &Mapper{
		FFTSize: fftSize,
		MinDB:   DefaultMinDB,
		MaxDB:   DefaultMaxDB,
	}
	m.offset = m.GainToDecibels(float64(fftSize))
	return m
}

// GainToDecibels returns 20*log10(gain). Non-positive and NaN gains map to
// MinDB so silence never produces -Inf.
func (m *Mapper) GainToDecibels(gain float64) float64 {
	if !(gain > 0) {
		return m.MinDB
	}
	return math.Max(20*math.Log10(gain), m.MinDB)
}

// Decibels returns the normalised level of mag clamped to [MinDB, MaxDB].
func (m *Mapper) Decibels(mag float64) float64 {
	db := m.GainToDecibels(mag) - m.offset
	if db < m.MinDB {
		return m.MinDB
	}
	if db > m.MaxDB {
		return m.MaxDB
	}
	return db
}

// Height maps mag linearly from [MinDB, MaxDB] onto [canvasHeight, 0].
// Louder is a smaller value, a taller bar.
func (m *Mapper) Height(mag, canvasHeight float64) float64 {
	db := m.Decibels(mag)
	return canvasHeight - (db-m.MinDB)/(m.MaxDB-m.MinDB)*canvasHeight
}

// LevelFor returns the top of bar in pixel space.
//
// A single-bin bar reads its own bin; when it shares that bin with earlier
// bars it blends from the level of the bin below by its factor. A range bar
// takes the loudest bin in [DataIndex, EndIndex].
func (m *Mapper) LevelFor(bar scale.Bar, mags []float64, canvasHeight float64) float64 {
	if len(mags) == 0 {
		return canvasHeight
	}

	if bar.EndIndex > 0 {
		lo, hi := clamp(bar.DataIndex, len(mags)), clamp(bar.EndIndex, len(mags))
		peak := mags[lo]
		for _, v := range mags[lo+1 : hi+1] {
			if v > peak {
				peak = v
			}
		}
		return m.Height(peak, canvasHeight)
	}

	idx := clamp(bar.DataIndex, len(mags))
	cur := m.Height(mags[idx], canvasHeight)
	if bar.Factor <= 0 {
		return cur
	}
	prev := cur
	if idx > 0 {
		prev = m.Height(mags[idx-1], canvasHeight)
	}
	return prev + (cur-prev)*bar.Factor
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
