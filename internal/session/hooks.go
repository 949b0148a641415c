package session

import (
	"civlink/config"
	"civlink/internal/codec"
)

// Handler receives every decoded packet, session-control packets
// included, after the session has updated its own state.  The packet is
// owned by the handler.
type Handler interface {
	HandlePacket(s *Session, pkt codec.Packet)
}

// HandlerFunc adapts a function to [Handler].
type HandlerFunc func(s *Session, pkt codec.Packet)

// HandlePacket calls f(s, pkt).
func (f HandlerFunc) HandlePacket(s *Session, pkt codec.Packet) { f(s, pkt) }

// Governor batches the work packets trigger.  Freeze is called before
// the first packet of a drain and Unfreeze after the last.
type Governor interface {
	Freeze()
	Unfreeze()
}

// Notifier shows status text to the user.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(msg string)

// Notify calls f(msg).
func (f NotifierFunc) Notify(msg string) { f(msg) }

// ServerKiller stops a locally spawned game server.  With force false
// the server is asked to shut down first.
type ServerKiller interface {
	KillServer(force bool)
}

// OptionsSaver persists user options.  *config.OptionsStore satisfies it.
type OptionsSaver interface {
	SaveOnExit() bool
	Save() error
	RememberServer(u config.ServerURL)
}

// ResultsTracker correlates a pending request with the server's
// processing-finished marks.
type ResultsTracker interface {
	// PendingResults returns the request id being waited for, or 0.
	PendingResults() uint32
	// ResultsReady is called once the server has finished processing id.
	ResultsReady(id uint32)
}

// Hooks are optional lifecycle callbacks.  Nil fields are skipped.
type Hooks struct {
	// NetInputRegistered fires once the transport's read-ready signal
	// is being watched.
	NetInputRegistered func()
	// NetInputRemoved fires when the transport is released.
	NetInputRemoved func()
	// Flush writes back application state tied to the session before a
	// requested disconnect.
	Flush func()
	// CancelWaits stops timed waits owned by the session.
	CancelWaits func()
}

type nopGovernor struct{}

func (nopGovernor) Freeze()   {}
func (nopGovernor) Unfreeze() {}

type nopKiller struct{}

func (nopKiller) KillServer(bool) {}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
