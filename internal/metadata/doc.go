// Package metadata turns transcripts into publishable episode text: chapter
// lines, optimized titles, long descriptions and newsletter summaries. It
// owns the Spanish prompts sent to the text model and validates everything
// that comes back before the pipeline publishes it.
package metadata
