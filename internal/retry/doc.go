// Package retry provides the two retry behaviors the pipeline needs:
// exponential backoff for transient API failures, and fixed linear waits for
// resources that exist but are not ready yet. Policies are plain values
// injected into clients at construction.
package retry
