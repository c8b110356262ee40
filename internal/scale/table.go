// SPDX-License-Identifier: MIT
package scale

import (
	applog "spectrum/internal/log"
)

// Table is the bar mapping for one set of Params. It is the single source of
// truth consulted every render tick and is never modified in place; Rebuild
// replaces Scale and Bars wholesale.
type Table struct {
	params Params
	scale  []float64
	bars   []Bar
}

// NewTable validates p and builds the table.
func NewTable(p Params) (*Table, error) {
	t := &Table{}
	if _, err := t.Rebuild(p); err != nil {
		return nil, err
	}
	return t, nil
}

// Rebuild recomputes the table from scratch when p differs from the current
// params. It reports whether a rebuild happened. Invalid params leave the
// table untouched.
func (t *Table) Rebuild(p Params) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	if t.bars != nil && p == t.params {
		return false, nil
	}

	freqs := TemperedScale(p.MinFreq, p.MaxFreq, p.GroupNotes)
	bars := BuildBars(freqs, p.SampleRate, p.FFTSize)
	if bars == nil {
		bars = []Bar{}
	}

	t.params = p
	t.scale = freqs
	t.bars = bars

	if len(bars) == 0 {
		applog.Warnf("Scale: empty frequency range [%.1f, %.1f] Hz, no bars to draw", p.MinFreq, p.MaxFreq)
	} else {
		applog.Infof("Scale: %d bars over %.2f-%.2f Hz (SampleRate: %.0f Hz, FFT: %d, Group: %d)",
			len(bars), freqs[0], freqs[len(freqs)-1], p.SampleRate, p.FFTSize, p.GroupNotes)
	}
	return true, nil
}

// Params returns the inputs the table was built from.
func (t *Table) Params() Params {
	return t.params
}

// Scale returns the retained frequencies. Callers must not modify it.
func (t *Table) Scale() []float64 {
	return t.scale
}

// Bars returns the bar mapping. Callers must not modify it.
func (t *Table) Bars() []Bar {
	return t.bars
}

// Len returns the number of bars.
func (t *Table) Len() int {
	return len(t.bars)
}
