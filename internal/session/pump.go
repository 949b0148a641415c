package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"civlink/internal/codec"
)

// PumpKind classifies the outcome of [Session.Pump].
type PumpKind int

const (
	// BytesRead means N bytes were moved into the receive buffer.
	BytesRead PumpKind = iota
	// WouldBlock means the transport is open but had nothing to read.
	WouldBlock
	// ConnectionClosed means the transport has ended.
	ConnectionClosed
	// ReadError means reading from or writing to the transport failed.
	ReadError
)

func (k PumpKind) String() string {
	switch k {
	case BytesRead:
		return "bytes-read"
	case WouldBlock:
		return "would-block"
	case ConnectionClosed:
		return "connection-closed"
	case ReadError:
		return "read-error"
	default:
		return fmt.Sprintf("pump-kind(%d)", int(k))
	}
}

// PumpResult is what one [Session.Pump] call achieved.
type PumpResult struct {
	Kind PumpKind
	N    int
	Err  error
}

// Pump moves available bytes from the transport into the receive
// buffer.  Queued outbound bytes are written first.  With block set it
// waits for data, the end of the stream, or ctx.  A full receive buffer
// stops the drain early without failing it.
func (s *Session) Pump(ctx context.Context, block bool) PumpResult {
	if s.conn == nil {
		return PumpResult{Kind: ConnectionClosed}
	}
	if !s.conn.IsOpen() {
		if err := s.conn.Err(); err != nil && !errors.Is(err, io.EOF) {
			return PumpResult{Kind: ReadError, Err: err}
		}
		return PumpResult{Kind: ConnectionClosed}
	}

	if s.inUse.Load() && s.send != nil && s.send.Len() > 0 {
		if err := s.writeOut(); err != nil {
			return PumpResult{Kind: ReadError, Err: err}
		}
	}

	if block {
		s.conn.WaitForReadyRead(ctx)
	}

	total := 0
	for s.conn.BytesAvailable() > 0 {
		n, err := s.conn.ReadInto(s.recv)
		if err != nil {
			return PumpResult{Kind: ReadError, N: total, Err: err}
		}
		if n == 0 {
			s.logger.Debug("receive buffer full, %d bytes left queued", s.conn.BytesAvailable())
			break
		}
		total += n
	}
	s.metrics.BytesReceived(int64(total))

	if total == 0 {
		return PumpResult{Kind: WouldBlock}
	}
	return PumpResult{Kind: BytesRead, N: total}
}

// Dispatch decodes and hands out every complete packet in the receive
// buffer, bracketed by one governor freeze.  The loop stops as soon as
// a packet handler ends the session; the freeze is then abandoned.
func (s *Session) Dispatch(r PumpResult) {
	switch r.Kind {
	case ConnectionClosed:
		s.closeOnError("server disconnected")
		return
	case ReadError:
		if r.Err != nil {
			s.logger.Debug("pump: %v", r.Err)
		}
		s.closeOnError("read error")
		return
	}

	if s.recv == nil || s.recv.Len() == 0 {
		return
	}

	s.opts.Governor.Freeze()
	dispatched := 0
	for s.inUse.Load() {
		pkt, n, err := s.codec.Decode(s.recv.Bytes())
		if errors.Is(err, codec.ErrNeedMoreData) {
			break
		}
		if err != nil {
			s.logger.Warn("dropping connection: %v", err)
			s.closeOnError("read error")
			return
		}
		s.recv.Consume(n)
		dispatched++
		s.handle(pkt)
	}
	if !s.inUse.Load() {
		return
	}
	s.opts.Governor.Unfreeze()

	if dispatched > 0 {
		s.metrics.Drain()
	}
	// Bytes left behind by a full receive buffer, or an end of stream
	// seen while draining, need another pass.
	s.conn.Rearm()
}

// InputFromServer services one read-ready pulse.
func (s *Session) InputFromServer(ctx context.Context) {
	s.Dispatch(s.Pump(ctx, false))
}

// handle applies session-control packets, then passes the packet on.
func (s *Session) handle(pkt codec.Packet) {
	s.metrics.PacketReceived()
	s.logger.Debug("received %s", pkt.Type)

	var rejected *codec.JoinReply
	switch p := pkt.Payload.(type) {
	case *codec.JoinReply:
		if p.YouCanJoin {
			s.established.Store(true)
			s.connID = p.ConnID
			s.serverCapability = p.Capability
			s.metrics.SessionEstablished()
			s.logger.Verbose("join accepted, connection id %d", p.ConnID)
		} else {
			rejected = p
		}
	case *codec.ProcessingMark:
		s.processingMark(pkt.Type, p.RequestID)
	}

	if pkt.Type == codec.ConnPing {
		if err := s.Send(codec.ConnPong, nil); err != nil {
			return
		}
	}

	if s.opts.Handler != nil {
		s.opts.Handler.HandlePacket(s, pkt)
	}

	if pkt.Type == codec.ProcessingFinished && s.opts.Results != nil {
		if pending := s.opts.Results.PendingResults(); pending > 0 && s.lastProcessedRequestID >= pending {
			s.opts.Results.ResultsReady(pending)
		}
	}

	if rejected != nil && s.inUse.Load() {
		s.notify(fmt.Sprintf("You were rejected from the game: %s", rejected.Message))
		s.Disconnect(false)
	}
}

// processingMark tracks which request the server is working on.  A
// zero id in the mark means "the next one after the last finished".
func (s *Session) processingMark(t codec.Type, id uint32) {
	switch t {
	case codec.ProcessingStarted:
		if id == 0 {
			id = s.lastProcessedRequestID + 1
		}
		s.requestIDOfHandledPacket = id
	case codec.ProcessingFinished:
		if id == 0 {
			id = s.requestIDOfHandledPacket
		}
		if id > s.lastRequestIDUsed {
			id = s.lastRequestIDUsed
		}
		if id > s.lastProcessedRequestID {
			s.lastProcessedRequestID = id
		}
		s.requestIDOfHandledPacket = 0
	}
}
