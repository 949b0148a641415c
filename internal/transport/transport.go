// Package transport owns the stream socket to the game server.
//
// A [Dialer] establishes the raw connection (plain TCP or forwarded
// through an SSH gateway); [Conn] wraps it with read-readiness
// signalling so a single control goroutine can service it without ever
// blocking on the socket itself.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
