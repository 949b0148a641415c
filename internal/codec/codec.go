// Package codec turns buffered bytes into discrete packets and back.
//
// The session only depends on the [Codec] interface; [Binary] is the
// framing spoken by the game server: a big-endian uint16 frame length
// (header included), a one-byte packet type, then the body.
package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrNeedMoreData means the buffer holds no complete frame yet.  It
	// is not a failure: wait for more bytes.
	ErrNeedMoreData = errors.New("codec: need more data")

	// ErrCorrupt means the buffer can never yield a valid frame.
	ErrCorrupt = errors.New("codec: corrupt packet")
)

// Codec encodes outgoing packets and extracts incoming ones.
type Codec interface {
	// Encode returns one complete frame for payload.
	Encode(t Type, payload any) ([]byte, error)

	// Decode extracts the first packet in buf and reports how many
	// bytes it consumed.  It returns ErrNeedMoreData when buf holds a
	// partial frame and an error wrapping ErrCorrupt for garbage.  The
	// returned packet never aliases buf.
	Decode(buf []byte) (Packet, int, error)
}

// Type is the packet type tag.
type Type uint8

const (
	ProcessingStarted  Type = 0
	ProcessingFinished Type = 1
	ServerJoinReq      Type = 4
	ServerJoinReply    Type = 5
	ConnPing           Type = 88
	ConnPong           Type = 89
)

var typeNames = map[Type]string{
	ProcessingStarted:  "PROCESSING_STARTED",
	ProcessingFinished: "PROCESSING_FINISHED",
	ServerJoinReq:      "SERVER_JOIN_REQ",
	ServerJoinReply:    "SERVER_JOIN_REPLY",
	ConnPing:           "CONN_PING",
	ConnPong:           "CONN_PONG",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PACKET_%d", uint8(t))
}

// Packet is one decoded packet.  Payload is a *JoinRequest, *JoinReply
// or *ProcessingMark for the session-control types, nil for ping/pong,
// and the raw body ([]byte) for everything else.
type Packet struct {
	Type    Type
	Payload any
}

// JoinRequest is sent once after the transport connects.
type JoinRequest struct {
	MajorVersion uint8
	MinorVersion uint8
	PatchVersion uint8
	VersionLabel string
	Capability   string
	Username     string
}

// JoinReply is the server's answer to a JoinRequest.
type JoinReply struct {
	YouCanJoin    bool
	Message       string
	Capability    string
	ChallengeFile string
	ConnID        int16
}

// ProcessingMark brackets the server's handling of one client request.
type ProcessingMark struct {
	RequestID uint32
}
