// Package notifications delivers pipeline events to operators.
//
// Two channels exist: ntfy (HTTP POST to a topic URL) and email over SMTP.
// NewService assembles whichever are configured and degrades to a no-op when
// neither is. Reporter is what jobs use: it logs a failure locally, then
// hands it to the service in the background so a slow or broken channel can
// never stall or fail a stage.
package notifications
