package panel

import "sync"

// Settings is the presentation configuration applied to the panel
// before each build.
type Settings struct {
	// FilePattern and LinePattern are the result-extraction patterns
	// recorded on the panel for navigation.
	FilePattern string
	LinePattern string

	// BaseDir resolves relative paths in extracted results.
	BaseDir string

	// WordWrap enables soft wrapping of long output lines.
	WordWrap bool

	// Gutter shows the panel gutter.
	Gutter bool

	// Syntax names the syntax used to colorize the output.
	Syntax string
}

// DefaultSyntax is applied when a build does not name one.
const DefaultSyntax = "text.plain"

// Panel is the output panel: one display buffer plus presentation state.
type Panel struct {
	mu       sync.RWMutex
	buf      *Buffer
	settings Settings
	visible  bool
}

// New creates a hidden panel with an empty buffer.
func New() *Panel {
	return &Panel{buf: NewBuffer()}
}

// Buffer returns the panel's display buffer.
func (p *Panel) Buffer() *Buffer {
	return p.buf
}

// Configure applies presentation settings. An empty syntax falls back
// to DefaultSyntax.
func (p *Panel) Configure(s Settings) {
	if s.Syntax == "" {
		s.Syntax = DefaultSyntax
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
}

// Settings returns the current presentation settings.
func (p *Panel) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// Show makes the panel visible.
func (p *Panel) Show() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = true
}

// Hide makes the panel invisible. The buffer contents survive.
func (p *Panel) Hide() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = false
}

// Visible reports whether the panel is shown.
func (p *Panel) Visible() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visible
}
