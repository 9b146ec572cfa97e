package buildspec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/buildpane/internal/process"
)

func TestParseYAML(t *testing.T) {
	data := []byte(`
shell_cmd: make -j4
file_regex: '^(.*?):(\d+):(\d+): (.*)$'
working_dir: /src/project
encoding: utf-8
quiet: true
env:
  CC: clang
`)
	req, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("ParseYAML() error: %v", err)
	}
	if req.ShellCmd != "make -j4" {
		t.Errorf("ShellCmd = %q", req.ShellCmd)
	}
	if req.FilePattern != `^(.*?):(\d+):(\d+): (.*)$` {
		t.Errorf("FilePattern = %q", req.FilePattern)
	}
	if req.Dir != "/src/project" {
		t.Errorf("Dir = %q", req.Dir)
	}
	if !req.Quiet {
		t.Error("Quiet = false")
	}
	if req.Env["CC"] != "clang" {
		t.Errorf("Env = %v", req.Env)
	}
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"cmd": ["python", "-u", "$file"],
		"file_regex": "^[ ]*File \"(...*?)\", line ([0-9]*)",
		"env": {"PYTHONIOENCODING": "utf-8"},
		"encoding": "utf-8"
	}`)
	req, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON() error: %v", err)
	}
	want := []string{"python", "-u", "$file"}
	if len(req.Cmd) != len(want) {
		t.Fatalf("Cmd = %v, want %v", req.Cmd, want)
	}
	for i := range want {
		if req.Cmd[i] != want[i] {
			t.Errorf("Cmd[%d] = %q, want %q", i, req.Cmd[i], want[i])
		}
	}
	if req.Env["PYTHONIOENCODING"] != "utf-8" {
		t.Errorf("Env = %v", req.Env)
	}
	if req.ShellCmd != "" {
		t.Errorf("ShellCmd = %q, want empty", req.ShellCmd)
	}
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		data string
		json bool
	}{
		{"yaml no command", "encoding: utf-8\n", false},
		{"yaml both commands", "shell_cmd: make\ncmd: [make]\n", false},
		{"json no command", `{"encoding": "utf-8"}`, true},
		{"json both commands", `{"shell_cmd": "make", "cmd": ["make"]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.json {
				_, err = ParseJSON([]byte(tt.data))
			} else {
				_, err = ParseYAML([]byte(tt.data))
			}
			if !errors.Is(err, process.ErrConfig) {
				t.Errorf("error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestParseMalformedInput(t *testing.T) {
	if _, err := ParseJSON([]byte(`{"cmd": [`)); err == nil {
		t.Error("ParseJSON() accepted truncated JSON")
	}
	if _, err := ParseYAML([]byte("cmd: [unclosed\n  bad indent")); err == nil {
		t.Error("ParseYAML() accepted malformed YAML")
	}
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "project.buildpane.yaml")
	if err := os.WriteFile(yamlPath, []byte("shell_cmd: go build ./...\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	req, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load(yaml) error: %v", err)
	}
	if req.ShellCmd != "go build ./..." {
		t.Errorf("ShellCmd = %q", req.ShellCmd)
	}

	buildPath := filepath.Join(dir, "project.build")
	if err := os.WriteFile(buildPath, []byte(`{"shell_cmd": "make"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	req, err = Load(buildPath)
	if err != nil {
		t.Fatalf("Load(build) error: %v", err)
	}
	if req.ShellCmd != "make" {
		t.Errorf("ShellCmd = %q", req.ShellCmd)
	}

	tomlPath := filepath.Join(dir, "nope.toml")
	if err := os.WriteFile(tomlPath, []byte("shell_cmd = \"make\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tomlPath); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Load(toml) error = %v, want ErrUnknownFormat", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() succeeded on a missing file")
	}
}
