// Package textutil provides small text helpers shared across the repo:
// rune-aware truncation for platform character limits and filename
// sanitization for artifact paths derived from external input.
package textutil
