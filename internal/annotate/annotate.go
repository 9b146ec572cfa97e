package annotate

import (
	"fmt"
	"html"
	"sync"

	"github.com/dshills/buildpane/internal/errindex"
)

// markerKey namespaces this package's markers on a view, so other
// marker producers are untouched by a full replace.
const markerKey = "buildpane"

// Marker is one dismissible inline annotation anchored to a buffer range.
type Marker struct {
	// Start is the anchor offset computed from the finding's
	// 1-based line and column.
	Start int

	// End extends the anchor to the end of the physical line.
	End int

	// HTML is the rendered marker body with the message escaped.
	HTML string

	// OnDismiss hides all markers when invoked.
	OnDismiss func()
}

// View is an open source view markers can be rendered into.
type View interface {
	// Anchor converts a 1-based line and column to a buffer offset.
	// ok is false when the location is out of range.
	Anchor(line, col int) (offset int, ok bool)

	// LineEnd returns the offset of the end of the physical line
	// containing offset.
	LineEnd(offset int) int

	// SetMarkers atomically replaces the marker set stored under key.
	SetMarkers(key string, markers []Marker)

	// ClearMarkers removes the marker set stored under key.
	ClearMarkers(key string)
}

// ViewResolver finds the open view for a file, or nil if none.
type ViewResolver interface {
	FindOpenView(path string) View
}

// Renderer maintains the inline markers for every file with indexed
// errors. One marker set per view is created lazily the first time the
// file gains an error and persists until cleared.
type Renderer struct {
	mu       sync.Mutex
	resolver ViewResolver
	index    *errindex.Index
	tracked  map[string]View
	enabled  bool
}

// New creates a renderer over the given index. Rendering starts
// disabled; Enable is called when a build begins.
func New(resolver ViewResolver, index *errindex.Index) *Renderer {
	return &Renderer{
		resolver: resolver,
		index:    index,
		tracked:  make(map[string]View),
	}
}

// Enable turns rendering on for the next Update calls.
func (r *Renderer) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = true
}

// Enabled reports whether Update currently renders.
func (r *Renderer) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Update re-renders markers for every file in the index. Files without
// an open view are skipped. The marker set for each resolved view is
// replaced wholesale.
func (r *Renderer) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return
	}

	for _, file := range r.index.Files() {
		view := r.resolver.FindOpenView(file)
		if view == nil {
			continue
		}
		r.tracked[file] = view

		findings := r.index.ForFile(file)
		markers := make([]Marker, 0, len(findings))
		for _, f := range findings {
			start, ok := view.Anchor(f.Line, f.Column)
			if !ok {
				continue
			}
			markers = append(markers, Marker{
				Start:     start,
				End:       view.LineEnd(start),
				HTML:      renderHTML(f.Message),
				OnDismiss: r.HideAll,
			})
		}
		view.SetMarkers(markerKey, markers)
	}
}

// HideAll erases every rendered marker, clears the index, and disables
// rendering until the next Enable.
func (r *Renderer) HideAll() {
	r.mu.Lock()
	for _, view := range r.tracked {
		view.ClearMarkers(markerKey)
	}
	r.tracked = make(map[string]View)
	r.enabled = false
	r.mu.Unlock()

	r.index.Clear()
}

// TrackedFiles returns the files that currently have rendered markers.
func (r *Renderer) TrackedFiles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	files := make([]string, 0, len(r.tracked))
	for f := range r.tracked {
		files = append(files, f)
	}
	return files
}

// renderHTML builds the marker body. The message is escaped; the
// trailing link is the dismiss affordance.
func renderHTML(message string) string {
	return fmt.Sprintf(
		`<body id="inline-error"><div class="error"><span class="message">%s</span><a href="hide">%c</a></div></body>`,
		html.EscapeString(message), rune(0x00D7))
}
