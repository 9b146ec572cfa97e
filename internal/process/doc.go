// Package process spawns and manages one external build process.
//
// A Handle wraps an exec.Cmd with lifecycle tracking, incremental output
// decoding, and whole-subtree termination. Shell commands are run through
// the platform shell (a login shell on macOS, plain bash elsewhere on
// Unix, cmd.exe on Windows); literal argument vectors run directly.
// Children are placed in their own process group (Unix) or job object
// (Windows) so Terminate kills shell-spawned grandchildren too.
//
// Output is read on one goroutine per stream in fixed-size blocks,
// decoded with the stream's incremental decoder, and forwarded to a Sink.
// Stdout reaching EOF is the completion signal; stderr EOF only closes
// that stream.
//
// Handle is safe for concurrent use.
package process
