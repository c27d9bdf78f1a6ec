// Package pipeline runs the per-episode post-production flow.
//
// Process drives a single video through six ordered steps: transcript fetch,
// chapter generation, title and description generation, thumbnail rendering,
// platform publish, and caption upload. Progress is tracked as a small state
// machine and reduced to the four persisted step flags when the run ends. The
// first failing step halts that video's run; batch scans record the failure
// and keep going with the next video.
//
// Scan polls the channel for uploads newer than the stored last-check mark
// and processes whatever has no completed record yet, oldest upload first.
// RunStep executes one step in isolation for operator-driven reruns without
// touching the state store.
//
// Add a step by extending the step table in steps.go and deciding which
// persisted flag, if any, the new step earns.
package pipeline
