// SPDX-License-Identifier: MIT
package scale

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewTableRejectsInvalidParams(t *testing.T) {
	p := defaultParams()
	p.GroupNotes = 0
	if _, err := NewTable(p); !errors.Is(err, ErrGroupNotes) {
		t.Errorf("Expected ErrGroupNotes, got %v", err)
	}
}

func TestTableRebuildIsIdempotent(t *testing.T) {
	p := defaultParams()

	a, err := NewTable(p)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	b, err := NewTable(p)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	if !reflect.DeepEqual(a.Bars(), b.Bars()) {
		t.Error("Tables built from identical params differ")
	}
	if !reflect.DeepEqual(a.Scale(), b.Scale()) {
		t.Error("Scales built from identical params differ")
	}

	before := a.Bars()
	rebuilt, err := a.Rebuild(p)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if rebuilt {
		t.Error("Rebuild with identical params should be a no-op")
	}
	if &before[0] != &a.Bars()[0] {
		t.Error("No-op rebuild should keep the same table")
	}
}

func TestTableRebuildOnChange(t *testing.T) {
	p := defaultParams()
	tbl, _ := NewTable(p)
	old := tbl.Bars()

	p.SampleRate = 48000
	rebuilt, err := tbl.Rebuild(p)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !rebuilt {
		t.Fatal("Expected a rebuild after a sample rate change")
	}
	if tbl.Params().SampleRate != 48000 {
		t.Errorf("Params not updated: %+v", tbl.Params())
	}
	if reflect.DeepEqual(old, tbl.Bars()) {
		t.Error("Bars should change with the sample rate")
	}
	// The previous slice is left intact for anyone still holding it.
	if old[53].DataIndex != 20 {
		t.Errorf("Old table was modified in place: %+v", old[53])
	}
}

func TestTableRebuildInvalidKeepsTable(t *testing.T) {
	p := defaultParams()
	tbl, _ := NewTable(p)
	n := tbl.Len()

	bad := p
	bad.SampleRate = 0
	if _, err := tbl.Rebuild(bad); !errors.Is(err, ErrSampleRate) {
		t.Fatalf("Expected ErrSampleRate, got %v", err)
	}
	if tbl.Len() != n || tbl.Params() != p {
		t.Error("Invalid rebuild should leave the table untouched")
	}
}

func TestTableEmptyRange(t *testing.T) {
	p := defaultParams()
	p.MinFreq, p.MaxFreq = 8000, 8000

	tbl, err := NewTable(p)
	if err != nil {
		t.Fatalf("Empty range must not be an error: %v", err)
	}
	if tbl.Len() != 0 || len(tbl.Scale()) != 0 {
		t.Errorf("Expected zero bars, got %d", tbl.Len())
	}

	// A second rebuild with the same empty params is still a no-op.
	if rebuilt, _ := tbl.Rebuild(p); rebuilt {
		t.Error("Rebuild of an identical empty table should be a no-op")
	}
}

func BenchmarkRebuild(b *testing.B) {
	p := defaultParams()
	tbl := &Table{}
	b.ReportAllocs()
	for i := 0; b.Loop(); i++ {
		p.SampleRate = 44100 + float64(i%2)
		_, _ = tbl.Rebuild(p)
	}
}
