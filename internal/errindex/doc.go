// Package errindex extracts file:line:column error references from build
// output and indexes them by file.
//
// Extraction is pluggable: an Index scans lines with whatever Matcher
// the caller supplies and never hardcodes a particular error-message
// grammar. RegexMatcher covers the common case of a file pattern with
// positional capture groups (file, line, column, message), optionally
// paired with a secondary line pattern for tools that print the file
// name on one line and locations on the following lines.
//
// Rebuilds replace the index wholesale; callers rate-limit rebuilds (the
// output queue only triggers one when a chunk contains a newline).
package errindex
