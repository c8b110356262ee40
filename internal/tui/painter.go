// SPDX-License-Identifier: MIT

/*
Package tui paints rendered frames in the terminal with bubbletea.

The render goroutine hands frames to a Painter through Send, which only
stores a copy of the latest frame. The bubbletea program polls that slot at
its own refresh rate, so a slow terminal never holds up rendering. Terminal
size changes are reported back as canvas resizes: one pixel per column and
eight pixels per row, one for each block glyph step.
*/
package tui

import (
	"strings"
	"sync/atomic"
	"time"

	applog "spectrum/internal/log"
	"spectrum/internal/render"
	"spectrum/internal/transport"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SubCells is the number of vertical steps a single character row can show.
const SubCells = 8

// chrome is the number of rows taken by the title and help lines.
const chrome = 2

// Lower block glyphs from one eighth to full.
var blocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	peakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F25D94")).
			Bold(true)
)

// ResizeFunc receives the canvas size matching the terminal.
type ResizeFunc func(width, height float64) error

// Painter is a transport that shows frames in the terminal.
type Painter struct {
	latest  atomic.Pointer[render.Frame]
	closed  atomic.Bool
	program *tea.Program
}

var _ transport.Transport = (*Painter)(nil)

// NewPainter prepares the terminal program. refresh is how many times per
// second the screen is redrawn.
func NewPainter(title string, resize ResizeFunc, refresh float64, opts ...tea.ProgramOption) *Painter {
	p := &Painter{}
	m := newModel(p, title, resize, refresh)
	p.program = tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	return p
}

// Run blocks until the user quits or Close is called.
func (p *Painter) Run() error {
	_, err := p.program.Run()
	return err
}

// Send stores a copy of the frame for the next redraw.
func (p *Painter) Send(data any) error {
	if p.closed.Load() {
		return transport.ErrClosed
	}
	var frame *render.Frame
	switch v := data.(type) {
	case *render.Frame:
		frame = v.Clone().(*render.Frame)
	case render.Frame:
		frame = &v
	default:
		return nil
	}
	p.latest.Store(frame)
	return nil
}

// Close asks the program to exit on its next redraw.
func (p *Painter) Close() error {
	p.closed.Store(true)
	return nil
}

type tickMsg time.Time

// model is the bubbletea model behind a Painter.
type model struct {
	painter *Painter
	title   string
	resize  ResizeFunc
	period  time.Duration

	cols, rows int
	frame      *render.Frame
	err        error
}

func newModel(p *Painter, title string, resize ResizeFunc, refresh float64) model {
	if !(refresh > 0) {
		refresh = render.DefaultFrameRate
	}
	return model{
		painter: p,
		title:   title,
		resize:  resize,
		period:  time.Duration(float64(time.Second) / refresh),
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.period, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.cols, m.rows = msg.Width, msg.Height
		if m.resize != nil && m.cols > 0 && m.canvasRows() > 0 {
			if err := m.resize(float64(m.cols), float64(m.canvasRows()*SubCells)); err != nil {
				applog.Warnf("TUI: Resize rejected: %v", err)
			}
		}

	case tickMsg:
		if m.painter.closed.Load() {
			return m, tea.Quit
		}
		if f := m.painter.latest.Load(); f != nil {
			m.frame = f
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

// canvasRows is the number of rows left for bars.
func (m model) canvasRows() int {
	return m.rows - chrome
}

func (m model) View() string {
	if m.cols == 0 {
		return "Initializing..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteByte('\n')
	if m.frame != nil && m.canvasRows() > 0 {
		sb.WriteString(m.paint())
	}
	sb.WriteString(infoStyle.Render("q: Quit"))
	return sb.String()
}

// paint draws the frame as rows of block glyphs, top row first.
func (m model) paint() string {
	rows := m.canvasRows()
	levels := columnLevels(m.frame, m.cols, rows)
	peak := rows*SubCells - SubCells

	var sb strings.Builder
	line := make([]rune, m.cols)
	for r := range rows {
		base := (rows - 1 - r) * SubCells
		for c, lvl := range levels {
			line[c] = glyph(lvl - base)
		}
		style := barStyle
		if base >= peak {
			style = peakStyle
		}
		sb.WriteString(style.Render(string(line)))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// columnLevels returns, for each terminal column, the tallest bar touching it
// in sub-cells out of rows*SubCells. Bars are scaled from the frame's canvas,
// which may lag the terminal size by a frame after a resize.
func columnLevels(f *render.Frame, cols, rows int) []int {
	levels := make([]int, cols)
	if !(f.Width > 0) || !(f.Height > 0) {
		return levels
	}
	xScale := float64(cols) / f.Width
	yScale := float64(rows*SubCells) / f.Height
	for _, b := range f.Bars {
		h := int(b.Height*yScale + 0.5)
		lo := int(b.X * xScale)
		hi := int((b.X + b.Width) * xScale)
		if hi <= lo {
			hi = lo + 1
		}
		for c := max(lo, 0); c < min(hi, cols); c++ {
			levels[c] = max(levels[c], h)
		}
	}
	return levels
}

// glyph returns the block for a cell filled to n sub-cells.
func glyph(n int) rune {
	switch {
	case n <= 0:
		return ' '
	case n >= SubCells:
		return blocks[SubCells-1]
	}
	return blocks[n-1]
}
