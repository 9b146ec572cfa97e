package errindex

import (
	"fmt"
	"regexp"
	"strconv"
)

// Finding is one extracted error reference.
type Finding struct {
	// File is the path as it appeared in the output.
	File string

	// Line is 1-based. A pattern without a line group yields 1.
	Line int

	// Column is 1-based. A pattern without a column group yields 1.
	Column int

	// Message is the free-form text after the location.
	Message string
}

// Matcher extracts a Finding from a single output line.
// Implementations may be stateful across lines within one scan.
type Matcher interface {
	// Match reports whether the line carries an error reference.
	Match(line string) (Finding, bool)

	// Reset clears any cross-line state before a fresh scan.
	Reset()
}

// RegexMatcher matches lines against a caller-supplied file pattern with
// positional capture groups: file, line, column, message (in that
// order; trailing groups may be omitted).
//
// When a secondary line pattern is supplied, lines matching it after a
// file-pattern hit inherit that file. Its groups are: line, column,
// message. This mirrors the two-regex scheme used by build tools that
// print the file name once followed by bare locations.
type RegexMatcher struct {
	filePat *regexp.Regexp
	linePat *regexp.Regexp

	// lastFile carries the file across lines for the line pattern.
	lastFile string
}

// NewRegexMatcher compiles the file pattern and optional line pattern.
func NewRegexMatcher(filePattern, linePattern string) (*RegexMatcher, error) {
	if filePattern == "" {
		return nil, fmt.Errorf("file pattern is required")
	}

	fp, err := regexp.Compile(filePattern)
	if err != nil {
		return nil, fmt.Errorf("compile file pattern: %w", err)
	}

	var lp *regexp.Regexp
	if linePattern != "" {
		lp, err = regexp.Compile(linePattern)
		if err != nil {
			return nil, fmt.Errorf("compile line pattern: %w", err)
		}
	}

	return &RegexMatcher{filePat: fp, linePat: lp}, nil
}

// Match implements Matcher.
func (m *RegexMatcher) Match(line string) (Finding, bool) {
	if groups := m.filePat.FindStringSubmatch(line); groups != nil {
		f := Finding{Line: 1, Column: 1}
		f.File = group(groups, 1)
		f.Line = groupInt(groups, 2, 1)
		f.Column = groupInt(groups, 3, 1)
		f.Message = group(groups, 4)
		m.lastFile = f.File
		return f, f.File != ""
	}

	if m.linePat != nil && m.lastFile != "" {
		if groups := m.linePat.FindStringSubmatch(line); groups != nil {
			return Finding{
				File:    m.lastFile,
				Line:    groupInt(groups, 1, 1),
				Column:  groupInt(groups, 2, 1),
				Message: group(groups, 3),
			}, true
		}
	}

	return Finding{}, false
}

// Reset implements Matcher.
func (m *RegexMatcher) Reset() {
	m.lastFile = ""
}

func group(groups []string, i int) string {
	if i < len(groups) {
		return groups[i]
	}
	return ""
}

func groupInt(groups []string, i, def int) int {
	if i < len(groups) {
		if n, err := strconv.Atoi(groups[i]); err == nil && n > 0 {
			return n
		}
	}
	return def
}
