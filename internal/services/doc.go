// Package services defines shared utilities consumed by the pipeline steps
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp video IDs, step names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (retryable vs permanent vs availability-lag) uniform
//     across collaborators.
//
// Use these helpers when wiring new step logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
