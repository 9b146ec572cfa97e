// Package buildspec loads build definition files and maps them onto
// run requests. Two document forms are supported: YAML (.buildpane.yaml)
// and Sublime-style JSON .build documents.
package buildspec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/dshills/buildpane/internal/process"
	"github.com/dshills/buildpane/internal/run"
)

// ErrUnknownFormat is returned for files with an unrecognized extension.
var ErrUnknownFormat = errors.New("unknown build definition format")

// Definition is the on-disk shape of a build definition. Exactly one of
// Cmd and ShellCmd must be set.
type Definition struct {
	Cmd         []string          `yaml:"cmd"`
	ShellCmd    string            `yaml:"shell_cmd"`
	FileRegex   string            `yaml:"file_regex"`
	LineRegex   string            `yaml:"line_regex"`
	WorkingDir  string            `yaml:"working_dir"`
	Encoding    string            `yaml:"encoding"`
	Env         map[string]string `yaml:"env"`
	Path        string            `yaml:"path"`
	Syntax      string            `yaml:"syntax"`
	Quiet       bool              `yaml:"quiet"`
}

// Request converts the definition into a run request, validating the
// command form.
func (d Definition) Request() (run.Request, error) {
	spec := process.Spec{Cmd: d.Cmd, ShellCmd: d.ShellCmd}
	if err := spec.Validate(); err != nil {
		return run.Request{}, err
	}
	return run.Request{
		Cmd:         d.Cmd,
		ShellCmd:    d.ShellCmd,
		FilePattern: d.FileRegex,
		LinePattern: d.LineRegex,
		Dir:         d.WorkingDir,
		Encoding:    d.Encoding,
		Env:         d.Env,
		Path:        d.Path,
		Syntax:      d.Syntax,
		Quiet:       d.Quiet,
	}, nil
}

// Load reads a build definition file and converts it. The format is
// chosen by extension: .yaml/.yml parse as YAML, .build/.json as JSON.
func Load(path string) (run.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return run.Request{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".build", ".json":
		return ParseJSON(data)
	default:
		return run.Request{}, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
	}
}

// ParseYAML converts a YAML build definition.
func ParseYAML(data []byte) (run.Request, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return run.Request{}, fmt.Errorf("parse build definition: %w", err)
	}
	return def.Request()
}

// ParseJSON converts a Sublime-style JSON .build document.
func ParseJSON(data []byte) (run.Request, error) {
	if !gjson.ValidBytes(data) {
		return run.Request{}, fmt.Errorf("parse build definition: invalid JSON")
	}

	var def Definition
	if cmd := gjson.GetBytes(data, "cmd"); cmd.IsArray() {
		for _, arg := range cmd.Array() {
			def.Cmd = append(def.Cmd, arg.String())
		}
	}
	def.ShellCmd = gjson.GetBytes(data, "shell_cmd").String()
	def.FileRegex = gjson.GetBytes(data, "file_regex").String()
	def.LineRegex = gjson.GetBytes(data, "line_regex").String()
	def.WorkingDir = gjson.GetBytes(data, "working_dir").String()
	def.Encoding = gjson.GetBytes(data, "encoding").String()
	def.Path = gjson.GetBytes(data, "path").String()
	def.Syntax = gjson.GetBytes(data, "syntax").String()
	def.Quiet = gjson.GetBytes(data, "quiet").Bool()

	if env := gjson.GetBytes(data, "env"); env.IsObject() {
		def.Env = make(map[string]string)
		env.ForEach(func(key, value gjson.Result) bool {
			def.Env[key.String()] = value.String()
			return true
		})
	}

	return def.Request()
}
