// Package transcript fetches video caption tracks and renders them as plain
// text, timestamped prompt input, or SRT caption files.
package transcript
