// Package encoding provides incremental, multi-byte-safe text decoding
// for process output streams.
//
// A Decoder accepts raw byte chunks in whatever sizes the OS delivers
// them and produces valid text. Multi-byte sequences split across chunk
// boundaries decode correctly once the remainder arrives, and malformed
// input is replaced with U+FFFD rather than reported as an error.
//
// Encodings are resolved by IANA name through golang.org/x/text, so any
// charset that registry knows (latin-1, shift_jis, windows-1252, ...)
// can be used for a child process that does not emit UTF-8.
package encoding
