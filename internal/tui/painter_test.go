// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"spectrum/internal/render"
	"spectrum/internal/transport"

	tea "github.com/charmbracelet/bubbletea"
)

type resizeCall struct{ width, height float64 }

func newTestModel(t *testing.T) (model, *Painter, *[]resizeCall) {
	t.Helper()
	p := &Painter{}
	var calls []resizeCall
	m := newModel(p, "Spectrum", func(w, h float64) error {
		calls = append(calls, resizeCall{w, h})
		return nil
	}, 60)
	return m, p, &calls
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

// testFrame is a canvas of cols x rows*SubCells with one bar per column.
func testFrame(cols, rows int, heights map[int]float64) *render.Frame {
	f := &render.Frame{Width: float64(cols), Height: float64(rows * SubCells)}
	f.Bars = make([]render.Rect, cols)
	for i := range f.Bars {
		h := heights[i]
		f.Bars[i] = render.Rect{X: float64(i), Y: f.Height - h, Width: 1, Height: h}
	}
	return f
}

func TestWindowSizeResizesCanvas(t *testing.T) {
	m, _, calls := newTestModel(t)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 12})
	if len(*calls) != 1 {
		t.Fatalf("resize called %d times, want 1", len(*calls))
	}
	if got := (*calls)[0]; got.width != 80 || got.height != 10*SubCells {
		t.Errorf("resize(%v, %v), want (80, %d)", got.width, got.height, 10*SubCells)
	}

	// Too small to draw anything: no resize.
	update(t, m, tea.WindowSizeMsg{Width: 80, Height: chrome})
	if len(*calls) != 1 {
		t.Errorf("resize called for a terminal with no canvas rows")
	}
}

func TestTickPicksUpLatestFrame(t *testing.T) {
	m, p, _ := newTestModel(t)

	m, cmd := update(t, m, tickMsg(time.Now()))
	if m.frame != nil {
		t.Error("frame set before anything was sent")
	}
	if cmd == nil {
		t.Fatal("tick must schedule the next tick")
	}

	f := testFrame(4, 1, map[int]float64{2: 8})
	if err := p.Send(f); err != nil {
		t.Fatalf("Send: %v", err)
	}
	f.Bars[2].Height = 0 // the driver reuses its frame

	m, _ = update(t, m, tickMsg(time.Now()))
	if m.frame == nil || m.frame.Bars[2].Height != 8 {
		t.Fatalf("painter did not keep a copy of the frame: %+v", m.frame)
	}

	if err := p.Send(*f); err != nil {
		t.Fatalf("Send by value: %v", err)
	}
	m, _ = update(t, m, tickMsg(time.Now()))
	if m.frame.Bars[2].Height != 0 {
		t.Error("second frame not picked up")
	}
}

func TestSendIgnoresOtherPayloads(t *testing.T) {
	p := &Painter{}
	if err := p.Send("hello"); err != nil {
		t.Errorf("Send(string) = %v", err)
	}
	if p.latest.Load() != nil {
		t.Error("non-frame payload was stored")
	}
}

func TestCloseQuitsOnNextTick(t *testing.T) {
	m, p, _ := newTestModel(t)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Send(&render.Frame{}); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
	if _, cmd := update(t, m, tickMsg(time.Now())); !isQuit(cmd) {
		t.Error("tick after Close should quit")
	}
}

func TestQuitKeys(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		quit bool
	}{
		{"q", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}, true},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}, true},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}, true},
		{"x", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newTestModel(t)
			if _, cmd := update(t, m, tt.msg); isQuit(cmd) != tt.quit {
				t.Errorf("quit = %v, want %v", !tt.quit, tt.quit)
			}
		})
	}
}

func TestViewPaintsBars(t *testing.T) {
	m, p, _ := newTestModel(t)
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View before sizing = %q", got)
	}

	const rows = 4
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 6, Height: rows + chrome})
	// Column 1 full height, column 3 half, column 5 one and a half rows.
	p.Send(testFrame(6, rows, map[int]float64{1: 32, 3: 16, 5: 12}))
	m, _ = update(t, m, tickMsg(time.Now()))

	view := m.View()
	if !strings.Contains(view, "Spectrum") || !strings.Contains(view, "q: Quit") {
		t.Errorf("View is missing the title or help:\n%s", view)
	}
	if n := strings.Count(view, "█"); n != rows+2+1 {
		t.Errorf("View has %d full blocks, want %d:\n%s", n, rows+2+1, view)
	}
	if n := strings.Count(view, "▄"); n != 1 {
		t.Errorf("View has %d half blocks, want 1:\n%s", n, view)
	}
}

func TestColumnLevels(t *testing.T) {
	// 12 bars squeezed into 6 columns: each column takes the taller of two.
	f := &render.Frame{Width: 12, Height: 100}
	for i := range 12 {
		h := float64(i * 5)
		f.Bars = append(f.Bars, render.Rect{X: float64(i), Width: 1, Y: 100 - h, Height: h})
	}
	got := columnLevels(f, 6, 10)
	want := []int{4, 12, 20, 28, 36, 44}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("columnLevels = %v, want %v", got, want)
		}
	}

	if got := columnLevels(&render.Frame{}, 3, 1); got[0] != 0 || len(got) != 3 {
		t.Errorf("empty frame levels = %v", got)
	}
}

func TestGlyph(t *testing.T) {
	tests := []struct {
		n    int
		want rune
	}{
		{-3, ' '},
		{0, ' '},
		{1, '▁'},
		{4, '▄'},
		{7, '▇'},
		{8, '█'},
		{20, '█'},
	}
	for _, tt := range tests {
		if got := glyph(tt.n); got != tt.want {
			t.Errorf("glyph(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
