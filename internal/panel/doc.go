// Package panel provides the display buffer and output panel that build
// output is streamed into.
//
// Buffer is an append-oriented text buffer with newline normalization at
// the append boundary ("\r\n" and lone "\r" become "\n") and
// scroll-to-end cursor behavior. It also keeps viewport and selection
// bookkeeping so a panel's scroll position can be saved before a build
// erases it and restored when the build finishes.
//
// Panel couples a Buffer with presentation settings (word wrap, gutter,
// syntax, result base directory) and visibility. Rendering backends live
// in the backend subpackage.
package panel
