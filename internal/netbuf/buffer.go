// Package netbuf provides the bounded byte queues a session uses for
// undecoded inbound bytes and unsent outbound bytes.
package netbuf

import (
	"errors"

	"github.com/valyala/bytebufferpool"
)

// DefaultLimit is large enough to hold several maximum-size frames.
const DefaultLimit = 256 * 1024

// ErrFull is returned by Write when the data would exceed the limit.
var ErrFull = errors.New("netbuf: buffer full")

// Buffer is a FIFO byte queue backed by a pooled byte buffer.  It is not
// safe for concurrent use.
type Buffer struct {
	bb    *bytebufferpool.ByteBuffer
	limit int
}

// New returns an empty buffer holding at most limit bytes.  A
// non-positive limit selects DefaultLimit.
func New(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Buffer{bb: bytebufferpool.Get(), limit: limit}
}

// Len returns the number of queued bytes.
func (b *Buffer) Len() int { return len(b.bb.B) }

// Room returns how many more bytes fit before the limit.
func (b *Buffer) Room() int { return b.limit - len(b.bb.B) }

// Bytes returns the queued bytes.  The slice aliases the buffer and is
// only valid until the next mutating call.
func (b *Buffer) Bytes() []byte { return b.bb.B }

// Write appends p in full or not at all.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.Room() {
		return 0, ErrFull
	}
	return b.bb.Write(p)
}

// Consume drops the first n queued bytes.
func (b *Buffer) Consume(n int) {
	if n >= len(b.bb.B) {
		b.bb.Reset()
		return
	}
	rest := copy(b.bb.B, b.bb.B[n:])
	b.bb.B = b.bb.B[:rest]
}

// Reset empties the buffer.
func (b *Buffer) Reset() { b.bb.Reset() }

// Release hands the backing storage back to the pool.  The buffer must
// not be used afterwards.
func (b *Buffer) Release() {
	if b.bb == nil {
		return
	}
	bytebufferpool.Put(b.bb)
	b.bb = nil
}
