// Package gemini talks to the Gemini generateContent API for the two
// generation workloads postcast has: episode text (titles, descriptions,
// chapters, summaries) and thumbnail imagery. Calls honor per-model rate
// limiters and retry transient upstream failures with capped exponential
// backoff, respecting Retry-After when the API sends one.
package gemini
