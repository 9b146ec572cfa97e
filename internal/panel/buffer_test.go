package panel

import (
	"testing"
)

func TestBufferAppendNormalizesNewlines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "a\r\nb", "a\nb"},
		{"lone cr", "a\rb", "a\nb"},
		{"mixed", "a\r\nb\rc\n", "a\nb\nc\n"},
		{"plain", "abc", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer()
			b.Append(tt.in)
			if got := b.Text(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBufferAppendReportsNewline(t *testing.T) {
	b := NewBuffer()
	if b.Append("no newline") {
		t.Error("expected false for text without newline")
	}
	if !b.Append("line\r") {
		t.Error("expected true: lone CR normalizes to a newline")
	}
}

func TestBufferAppendForcesCursorToEnd(t *testing.T) {
	b := NewBuffer()
	b.SetScroll(4, 10)
	if b.AtEnd() {
		t.Fatal("expected AtEnd false after SetScroll")
	}
	b.Append("more\n")
	if !b.AtEnd() {
		t.Error("expected Append to pin cursor to end")
	}
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer()
	b.Append("content\n")
	b.SetScroll(3, 7)
	b.Clear()

	if b.Len() != 0 {
		t.Error("expected empty buffer after Clear")
	}
	if x, y := b.Scroll(); x != 0 || y != 0 {
		t.Errorf("expected viewport reset, got (%d,%d)", x, y)
	}
}

func TestBufferSaveRestoreState(t *testing.T) {
	b := NewBuffer()
	b.Append("one\ntwo\nthree\n")
	b.SetScroll(2, 1)
	b.SetSelections([][2]int{{0, 3}, {4, 7}})

	st := b.SaveState()

	b.Clear()
	b.Append("rebuilt output\n")
	b.RestoreState(st)

	if x, y := b.Scroll(); x != 2 || y != 1 {
		t.Errorf("expected scroll (2,1), got (%d,%d)", x, y)
	}
	sels := b.Selections()
	if len(sels) != 2 || sels[1] != [2]int{4, 7} {
		t.Errorf("unexpected selections: %v", sels)
	}
}

func TestBufferResetHorizontalScroll(t *testing.T) {
	b := NewBuffer()
	b.SetScroll(80, 5)
	b.ResetHorizontalScroll()
	if x, y := b.Scroll(); x != 0 || y != 5 {
		t.Errorf("expected (0,5), got (%d,%d)", x, y)
	}
}

func TestPanelConfigure(t *testing.T) {
	p := New()
	p.Configure(Settings{FilePattern: `(\S+):(\d+)`, WordWrap: true})

	s := p.Settings()
	if s.Syntax != DefaultSyntax {
		t.Errorf("expected default syntax, got %q", s.Syntax)
	}
	if !s.WordWrap {
		t.Error("expected WordWrap true")
	}
}

func TestPanelVisibility(t *testing.T) {
	p := New()
	if p.Visible() {
		t.Error("expected new panel hidden")
	}
	p.Show()
	if !p.Visible() {
		t.Error("expected panel visible after Show")
	}
	p.Buffer().Append("kept\n")
	p.Hide()
	if p.Visible() {
		t.Error("expected panel hidden after Hide")
	}
	if p.Buffer().Text() != "kept\n" {
		t.Error("expected buffer contents to survive Hide")
	}
}
