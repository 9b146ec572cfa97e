package panel

import (
	"strings"
	"sync"
)

// ViewState is a saved viewport position and selection set.
type ViewState struct {
	// ScrollX and ScrollY are the viewport origin.
	ScrollX int
	ScrollY int

	// Selections are (begin, end) offset pairs.
	Selections [][2]int
}

// Buffer is the display buffer build output is appended to.
//
// All mutation is expected to come from the single display scheduler;
// the mutex exists so readers (renders, error-index rebuilds triggered
// off-thread, tests) see consistent state.
type Buffer struct {
	mu      sync.RWMutex
	text    strings.Builder
	scrollX int
	scrollY int
	sels    [][2]int
	atEnd   bool
}

// NewBuffer creates an empty display buffer.
func NewBuffer() *Buffer {
	return &Buffer{atEnd: true}
}

// Append normalizes newlines in text and appends it, forcing the cursor
// to the end. It reports whether the appended text contained a newline,
// which gates error-index rebuilds.
func (b *Buffer) Append(text string) bool {
	text = normalizeNewlines(text)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.WriteString(text)
	b.atEnd = true
	return strings.Contains(text, "\n")
}

// Text returns the full buffer contents.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text.String()
}

// Len returns the buffer length in bytes.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text.Len()
}

// Lines returns the buffer contents split into lines.
func (b *Buffer) Lines() []string {
	return strings.Split(b.Text(), "\n")
}

// Clear empties the buffer and resets the viewport.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.Reset()
	b.scrollX, b.scrollY = 0, 0
	b.sels = nil
	b.atEnd = true
}

// SaveState captures the current viewport and selections.
func (b *Buffer) SaveState() ViewState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sels := make([][2]int, len(b.sels))
	copy(sels, b.sels)
	return ViewState{ScrollX: b.scrollX, ScrollY: b.scrollY, Selections: sels}
}

// RestoreState reinstates a previously saved viewport and selections.
func (b *Buffer) RestoreState(st ViewState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scrollX, b.scrollY = st.ScrollX, st.ScrollY
	b.sels = make([][2]int, len(st.Selections))
	copy(b.sels, st.Selections)
	b.atEnd = false
}

// SetScroll positions the viewport origin.
func (b *Buffer) SetScroll(x, y int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scrollX, b.scrollY = x, y
	b.atEnd = false
}

// Scroll returns the viewport origin.
func (b *Buffer) Scroll() (x, y int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scrollX, b.scrollY
}

// ResetHorizontalScroll moves the viewport back to column zero, keeping
// the vertical position. Long unwrapped error lines otherwise leave the
// panel scrolled all the way to the right.
func (b *Buffer) ResetHorizontalScroll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scrollX = 0
}

// SetSelections replaces the selection set.
func (b *Buffer) SetSelections(sels [][2]int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sels = make([][2]int, len(sels))
	copy(b.sels, sels)
}

// Selections returns the selection set.
func (b *Buffer) Selections() [][2]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([][2]int, len(b.sels))
	copy(out, b.sels)
	return out
}

// AtEnd reports whether the cursor is pinned to the end of the buffer.
func (b *Buffer) AtEnd() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.atEnd
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
