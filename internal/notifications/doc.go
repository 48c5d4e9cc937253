// Package notifications pushes video lifecycle events to ntfy.
//
// Callers publish an Event with a small string Payload; the service formats
// the title, message, and tags. When no topic is configured the service is a
// no-op, and individual event families can be muted in config.
package notifications
