// Package backend renders the output panel to a terminal. The Backend
// interface isolates the tcell dependency; Null is the in-memory
// implementation used by tests.
package backend

// Cell is one screen cell.
type Cell struct {
	Rune  rune
	Width int
	Bold  bool
	// Reverse swaps foreground and background, used for the status row.
	Reverse bool
}

// Key identifies a non-rune key press the panel reacts to.
type Key int

const (
	// KeyRune is a printable key; Event.Rune carries it.
	KeyRune Key = iota
	// KeyCtrlC requests build cancellation.
	KeyCtrlC
	// KeyEscape dismisses the panel.
	KeyEscape
)

// Event is a key press or resize delivered by the backend.
type Event struct {
	Key     Key
	Rune    rune
	Resized bool
	Width   int
	Height  int
}

// Backend is a grid of cells the panel view draws into.
type Backend interface {
	// Init takes over the terminal. Call Shutdown to release it.
	Init() error
	Shutdown()

	Size() (width, height int)
	SetCell(x, y int, cell Cell)
	Clear()

	// Show flushes pending cell updates to the display.
	Show()

	// Events delivers key presses and resizes. The channel closes on
	// Shutdown.
	Events() <-chan Event
}

// Null is an in-memory backend for tests.
type Null struct {
	width, height int
	cells         [][]Cell
	events        chan Event
}

// NewNull creates a null backend with fixed dimensions.
func NewNull(width, height int) *Null {
	return &Null{
		width:  width,
		height: height,
		events: make(chan Event, 16),
	}
}

func (b *Null) Init() error {
	b.cells = make([][]Cell, b.height)
	for y := range b.cells {
		b.cells[y] = make([]Cell, b.width)
		for x := range b.cells[y] {
			b.cells[y][x] = Cell{Rune: ' ', Width: 1}
		}
	}
	return nil
}

func (b *Null) Shutdown() {
	close(b.events)
}

func (b *Null) Size() (int, int) {
	return b.width, b.height
}

func (b *Null) SetCell(x, y int, cell Cell) {
	if x >= 0 && x < b.width && y >= 0 && y < b.height {
		b.cells[y][x] = cell
	}
}

func (b *Null) Clear() {
	for y := range b.cells {
		for x := range b.cells[y] {
			b.cells[y][x] = Cell{Rune: ' ', Width: 1}
		}
	}
}

func (b *Null) Show() {}

func (b *Null) Events() <-chan Event {
	return b.events
}

// Inject queues an event, standing in for a real key press.
func (b *Null) Inject(ev Event) {
	b.events <- ev
}

// Row returns row y as a string, continuation cells skipped and
// trailing blanks trimmed. Test helper.
func (b *Null) Row(y int) string {
	if y < 0 || y >= b.height {
		return ""
	}
	var runes []rune
	for _, c := range b.cells[y] {
		if c.Width == 0 {
			continue
		}
		runes = append(runes, c.Rune)
	}
	end := len(runes)
	for end > 0 && runes[end-1] == ' ' {
		end--
	}
	return string(runes[:end])
}
