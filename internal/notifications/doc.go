// Package notifications delivers pipeline events to the operator.
//
// The default implementation posts to the Telegram Bot API using the token
// and chat configured in config.toml and gracefully degrades to a no-op when
// notifications are disabled. Delivery is best effort by contract: every
// method returns whether the message went out and never an error, so a dead
// bot can not fail a pipeline run.
//
// All pipeline code depends only on the small Service interface, which keeps
// alternative transports cheap to add.
package notifications
