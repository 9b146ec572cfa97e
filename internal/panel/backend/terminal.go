package backend

import (
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Terminal implements Backend over a tcell screen.
type Terminal struct {
	mu     sync.Mutex
	screen tcell.Screen
	events chan Event
	done   chan struct{}
}

// NewTerminal creates a terminal backend. The screen is not taken over
// until Init.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Terminal{
		screen: screen,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}, nil
}

func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return err
	}
	go t.pump()
	return nil
}

func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.done:
		return
	default:
	}
	close(t.done)
	// Fini unblocks PollEvent; the pump closes the event channel on
	// its way out so Shutdown never races a send.
	t.screen.Fini()
}

func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.screen.Size()
}

func (t *Terminal) SetCell(x, y int, cell Cell) {
	t.mu.Lock()
	defer t.mu.Unlock()

	style := tcell.StyleDefault
	if cell.Bold {
		style = style.Bold(true)
	}
	if cell.Reverse {
		style = style.Reverse(true)
	}
	t.screen.SetContent(x, y, cell.Rune, nil, style)
}

func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screen.Clear()
}

func (t *Terminal) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screen.Show()
}

func (t *Terminal) Events() <-chan Event {
	return t.events
}

// pump translates tcell events onto the backend event channel until
// Shutdown.
func (t *Terminal) pump() {
	defer close(t.events)
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}

		var out Event
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyCtrlC:
				out = Event{Key: KeyCtrlC}
			case tcell.KeyEscape:
				out = Event{Key: KeyEscape}
			case tcell.KeyRune:
				out = Event{Key: KeyRune, Rune: ev.Rune()}
			default:
				continue
			}
		case *tcell.EventResize:
			w, h := ev.Size()
			out = Event{Resized: true, Width: w, Height: h}
		default:
			continue
		}

		select {
		case t.events <- out:
		case <-t.done:
			return
		}
	}
}
