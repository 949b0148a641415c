// Package core is the orchestration layer.  It composes the transport,
// session, autoconnect and local server pieces into complete
// operational modes and provides a builder that selects the right mode
// from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  client  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of civlink (play or
// probe).  Each mode owns its full lifecycle from connection
// establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
