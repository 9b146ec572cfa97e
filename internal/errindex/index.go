package errindex

import (
	"path/filepath"
	"strings"
	"sync"
)

// Index maps file paths to the ordered error references found in a body
// of build output. It is rebuilt wholesale from the full display-buffer
// text; there is no incremental diffing.
//
// Index is safe for concurrent use: rebuilds happen on the display
// scheduler while readers (annotation rendering, status counts) may run
// elsewhere.
type Index struct {
	mu      sync.RWMutex
	baseDir string
	order   []string
	byFile  map[string][]Finding
	total   int
}

// New creates an empty index. baseDir, when non-empty, resolves
// relative file paths in findings; pass the build's working directory.
func New(baseDir string) *Index {
	return &Index{
		baseDir: baseDir,
		byFile:  make(map[string][]Finding),
	}
}

// SetBaseDir changes the directory used to resolve relative paths.
// It affects subsequent rebuilds only.
func (x *Index) SetBaseDir(dir string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.baseDir = dir
}

// Rebuild replaces the index contents by scanning text line by line with
// the matcher. Findings are grouped by file, preserving encounter order
// both across files and within each file.
func (x *Index) Rebuild(text string, m Matcher) {
	m.Reset()

	order := make([]string, 0, 4)
	byFile := make(map[string][]Finding)
	total := 0

	x.mu.RLock()
	baseDir := x.baseDir
	x.mu.RUnlock()

	for _, line := range strings.Split(text, "\n") {
		f, ok := m.Match(line)
		if !ok {
			continue
		}

		if baseDir != "" && !filepath.IsAbs(f.File) {
			f.File = filepath.Join(baseDir, f.File)
		}

		if _, seen := byFile[f.File]; !seen {
			order = append(order, f.File)
		}
		byFile[f.File] = append(byFile[f.File], f)
		total++
	}

	x.mu.Lock()
	x.order = order
	x.byFile = byFile
	x.total = total
	x.mu.Unlock()
}

// Files returns the indexed file paths in encounter order.
func (x *Index) Files() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

// ForFile returns the findings for one file in encounter order.
func (x *Index) ForFile(path string) []Finding {
	x.mu.RLock()
	defer x.mu.RUnlock()
	fs := x.byFile[path]
	out := make([]Finding, len(fs))
	copy(out, fs)
	return out
}

// Count returns the total number of findings across all files.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.total
}

// Clear empties the index.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.order = nil
	x.byFile = make(map[string][]Finding)
	x.total = 0
}
