// Package main hosts the postcast CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into pipeline
// runs, state maintenance, newsletter generation, channel authorization, and
// configuration scaffolding. Configuration resolution and logger construction
// happen once per invocation in commandContext so subcommands stay focused on
// their own flags and output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
