package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	s := Default()
	if !s.ShowPanelOnBuild || !s.ShowErrorsInline || !s.Gutter {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.OutputWordWrap || s.RestoreOutputScroll {
		t.Errorf("expected word wrap and scroll restore off by default: %+v", s)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.ShowPanelOnBuild || !s.ShowErrorsInline || !s.Gutter || s.OutputWordWrap {
		t.Errorf("expected defaults, got %+v", s)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	content := `
show_panel_on_build = false
output_word_wrap = true
restore_output_scroll = true

[build_env]
CFLAGS = "-O2"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.ShowPanelOnBuild {
		t.Error("expected show_panel_on_build false")
	}
	if !s.OutputWordWrap || !s.RestoreOutputScroll {
		t.Errorf("expected file values applied: %+v", s)
	}
	if s.BuildEnv["CFLAGS"] != "-O2" {
		t.Errorf("expected build_env parsed, got %v", s.BuildEnv)
	}
	// Untouched keys keep their defaults.
	if !s.ShowErrorsInline {
		t.Error("expected show_errors_inline default true")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverlay(t *testing.T) {
	s := Default()
	applyEnv(&s, []string{
		"BUILDPANE_GUTTER=false",
		"BUILDPANE_OUTPUT_WORD_WRAP=1",
		"BUILDPANE_GUTTER_TYPO_IGNORED=true",
		"UNRELATED=x",
		"BUILDPANE_SHOW_PANEL_ON_BUILD=not-a-bool",
	})

	if s.Gutter {
		t.Error("expected gutter overridden to false")
	}
	if !s.OutputWordWrap {
		t.Error("expected word wrap overridden to true")
	}
	if !s.ShowPanelOnBuild {
		t.Error("expected unparseable value ignored")
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	if err := os.WriteFile(path, []byte("gutter = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan Settings, 4)
	w, err := Watch(path, func(s Settings) { changes <- s })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("gutter = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-changes:
		if s.Gutter {
			t.Errorf("expected reloaded gutter=false, got %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	if err := os.WriteFile(path, []byte("gutter = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan Settings, 4)
	w, err := Watch(path, func(s Settings) { changes <- s })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changes:
		t.Error("expected no reload for sibling file")
	case <-time.After(300 * time.Millisecond):
	}
}
