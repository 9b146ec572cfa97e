package backend

import (
	"github.com/rivo/uniseg"

	"github.com/dshills/buildpane/internal/panel"
)

// View draws a panel's buffer tail into a Backend: output rows on top,
// one reversed status row at the bottom.
type View struct {
	backend Backend
	pnl     *panel.Panel
}

// NewView creates a view over the panel.
func NewView(b Backend, p *panel.Panel) *View {
	return &View{backend: b, pnl: p}
}

// Render redraws the whole grid from the buffer's current contents.
// With word wrap off, lines wider than the grid are clipped.
func (v *View) Render(status string) {
	width, height := v.backend.Size()
	if width <= 0 || height <= 0 {
		return
	}
	v.backend.Clear()

	rows := height - 1
	lines := v.pnl.Buffer().Lines()
	wrap := v.pnl.Settings().WordWrap

	var display []string
	for _, line := range lines {
		if wrap {
			display = append(display, wrapLine(line, width)...)
		} else {
			display = append(display, line)
		}
	}
	// Tail: the latest output is what matters while a build runs.
	if len(display) > rows {
		display = display[len(display)-rows:]
	}

	for y, line := range display {
		v.drawLine(0, y, line, width, Cell{})
	}
	v.drawLine(0, height-1, status, width, Cell{Reverse: true})
	for x := lineWidth(status); x < width; x++ {
		v.backend.SetCell(x, height-1, Cell{Rune: ' ', Width: 1, Reverse: true})
	}

	v.backend.Show()
}

// drawLine writes one line left to right, clipping at the grid edge.
// Wide graphemes occupy their full display width; the cell after a
// double-width grapheme is a zero-width continuation.
func (v *View) drawLine(x, y int, line string, width int, base Cell) {
	gr := uniseg.NewGraphemes(line)
	for gr.Next() {
		w := gr.Width()
		if w == 0 {
			continue
		}
		if x+w > width {
			return
		}
		cell := base
		cell.Rune = gr.Runes()[0]
		cell.Width = w
		v.backend.SetCell(x, y, cell)
		for i := 1; i < w; i++ {
			cont := base
			cont.Width = 0
			v.backend.SetCell(x+i, y, cont)
		}
		x += w
	}
}

// wrapLine splits a line into display rows of at most width columns,
// breaking on grapheme boundaries.
func wrapLine(line string, width int) []string {
	if lineWidth(line) <= width {
		return []string{line}
	}

	var rows []string
	var row []rune
	used := 0
	gr := uniseg.NewGraphemes(line)
	for gr.Next() {
		w := gr.Width()
		if used+w > width && used > 0 {
			rows = append(rows, string(row))
			row = row[:0]
			used = 0
		}
		row = append(row, gr.Runes()...)
		used += w
	}
	if len(row) > 0 {
		rows = append(rows, string(row))
	}
	return rows
}

func lineWidth(line string) int {
	return uniseg.StringWidth(line)
}
