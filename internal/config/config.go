package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is the prefix for environment-variable overrides.
const EnvPrefix = "BUILDPANE_"

// Settings configure build presentation for one context.
type Settings struct {
	// ShowPanelOnBuild shows the output panel when a build starts.
	ShowPanelOnBuild bool `toml:"show_panel_on_build"`

	// ShowErrorsInline renders indexed errors as inline annotations.
	ShowErrorsInline bool `toml:"show_errors_inline"`

	// OutputWordWrap soft-wraps long output lines in the panel.
	OutputWordWrap bool `toml:"output_word_wrap"`

	// Gutter shows the panel gutter.
	Gutter bool `toml:"gutter"`

	// RestoreOutputScroll saves the panel's scroll position before a
	// build erases it and restores it when the build finishes.
	RestoreOutputScroll bool `toml:"restore_output_scroll"`

	// BuildEnv is merged over each build's environment overrides.
	BuildEnv map[string]string `toml:"build_env"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		ShowPanelOnBuild: true,
		ShowErrorsInline: true,
		Gutter:           true,
	}
}

// Load reads settings from a TOML file and applies the environment
// overlay. A missing file yields defaults plus the overlay; a malformed
// file is an error.
func Load(path string) (Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return s, fmt.Errorf("reading settings %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &s); err != nil {
				return s, fmt.Errorf("parsing settings %s: %w", path, err)
			}
		}
	}

	applyEnv(&s, os.Environ())
	return s, nil
}

// applyEnv overlays BUILDPANE_* variables onto s. Unknown keys and
// unparseable booleans are ignored.
func applyEnv(s *Settings, environ []string) {
	for _, kv := range environ {
		idx := strings.Index(kv, "=")
		if idx <= 0 || !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):idx]
		value := kv[idx+1:]

		switch strings.ToUpper(key) {
		case "SHOW_PANEL_ON_BUILD":
			setBool(&s.ShowPanelOnBuild, value)
		case "SHOW_ERRORS_INLINE":
			setBool(&s.ShowErrorsInline, value)
		case "OUTPUT_WORD_WRAP":
			setBool(&s.OutputWordWrap, value)
		case "GUTTER":
			setBool(&s.Gutter, value)
		case "RESTORE_OUTPUT_SCROLL":
			setBool(&s.RestoreOutputScroll, value)
		}
	}
}

func setBool(dst *bool, value string) {
	if b, err := strconv.ParseBool(value); err == nil {
		*dst = b
	}
}
