// Package metrics provides interfaces and implementations for collecting
// mailstackd server metrics, shared by the IMAP and SMTP protocol engines.
// This package defines the Collector interface for recording metrics and
// the Server interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording mail server metrics. Every
// method takes a protocol label ("imap" or "smtp") so the two engines share
// one set of time series distinguished by that label.
type Collector interface {
	// Connection metrics
	ConnectionOpened(protocol string)
	ConnectionClosed(protocol string)
	TLSConnectionEstablished(protocol string)

	// Authentication metrics (authenticated user's domain)
	AuthAttempt(protocol, authDomain string, success bool)

	// Command metrics
	CommandProcessed(protocol, command string)

	// Message metrics
	MessageRetrieved(protocol, userDomain string, sizeBytes int64)
	MessageStored(protocol, userDomain string, sizeBytes int64)
	MessageDeleted(protocol, userDomain string)
	MessageListed(protocol, userDomain string)

	// IMAP IDLE metrics
	IdleSessionStarted()
	IdleSessionEnded()

	// Mail store watcher metrics
	WatcherEvent(kind string)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
