// Package state persists per-video processing outcomes in a single JSON
// file. Each video keeps exactly one record describing its most recent run:
// which pipeline steps succeeded, when the run happened, and the derived
// completed/failed status. The pipeline consults the store to skip completed
// videos and to pick failed ones up again.
package state
