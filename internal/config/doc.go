// Package config holds the per-context settings that shape how builds
// are presented.
//
// Settings load from a TOML file, with a BUILDPANE_-prefixed
// environment overlay taking precedence, and can be hot-reloaded
// through a filesystem watcher. A missing settings file is not an
// error; defaults apply.
package config
