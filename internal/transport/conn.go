package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"civlink/internal/netbuf"
	"civlink/util"
)

// MaxPending caps how many received bytes the reader goroutine queues
// ahead of the consumer before it stops reading from the socket.
const MaxPending = 1 << 20

// Conn wraps a connected stream socket.  A background goroutine moves
// bytes from the socket into an in-memory queue and pulses [Conn.Ready];
// the owner drains the queue with [Conn.ReadInto] from its own goroutine
// and never blocks on the socket.
//
// Closure of the socket (by the peer or by a read error) is reported
// only once every queued byte has been consumed, so the final packets a
// server sends before hanging up are still delivered.
type Conn struct {
	raw          net.Conn
	writeTimeout time.Duration
	logger       *util.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   [][]byte
	avail   int
	readErr error // terminal read error; io.EOF on orderly close
	shut    bool  // Close called locally

	ready chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewConn takes ownership of raw and starts the reader goroutine.
// A zero writeTimeout leaves writes without a deadline.
func NewConn(raw net.Conn, writeTimeout time.Duration, logger *util.Logger) *Conn {
	c := &Conn{
		raw:          raw,
		writeTimeout: writeTimeout,
		logger:       logger,
		ready:        make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer close(c.done)

	scratch := util.GetBuf()
	defer util.PutBuf(scratch)

	for {
		c.mu.Lock()
		for c.avail >= MaxPending && !c.shut {
			c.cond.Wait()
		}
		shut := c.shut
		c.mu.Unlock()
		if shut {
			return
		}

		n, err := c.raw.Read(*scratch)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, (*scratch)[:n])
			c.mu.Lock()
			c.queue = append(c.queue, chunk)
			c.avail += n
			c.mu.Unlock()
			c.Signal()
		}
		if err != nil {
			c.mu.Lock()
			if c.readErr == nil {
				c.readErr = err
			}
			shut := c.shut
			c.mu.Unlock()
			if !shut && !errors.Is(err, io.EOF) {
				c.logger.Debug("read failed: %v", err)
			}
			c.Signal()
			return
		}
	}
}

// Ready pulses whenever there is something for the owner to look at:
// new bytes, or the end of the stream.  Pulses coalesce.
func (c *Conn) Ready() <-chan struct{} { return c.ready }

// Signal pulses [Conn.Ready] without blocking.
func (c *Conn) Signal() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Rearm pulses [Conn.Ready] if bytes are still queued or the stream has
// ended, so a consumer that stopped short of draining gets called back.
func (c *Conn) Rearm() {
	c.mu.Lock()
	pending := !c.shut && (c.avail > 0 || c.readErr != nil)
	c.mu.Unlock()
	if pending {
		c.Signal()
	}
}

// IsOpen reports whether the stream can still yield bytes.  It stays
// true after the peer hangs up until the queue is drained.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shut {
		return false
	}
	return c.readErr == nil || c.avail > 0
}

// BytesAvailable returns the number of queued, unconsumed bytes.
func (c *Conn) BytesAvailable() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avail
}

// Err returns the error that ended the stream, or nil while it is
// still open.  An orderly close by the peer yields io.EOF.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shut && c.readErr == nil {
		return net.ErrClosed
	}
	return c.readErr
}

// WaitForReadyRead blocks until bytes are queued, the stream ends, or
// ctx is done.  It reports whether bytes are available.
func (c *Conn) WaitForReadyRead(ctx context.Context) bool {
	for {
		c.mu.Lock()
		avail, ended := c.avail, c.readErr != nil || c.shut
		c.mu.Unlock()
		if avail > 0 {
			return true
		}
		if ended {
			return false
		}
		select {
		case <-c.ready:
		case <-ctx.Done():
			return false
		}
	}
}

// ReadInto moves as many queued bytes as fit into dst.  It returns 0
// with a nil error when nothing is queued or dst is full.
func (c *Conn) ReadInto(dst *netbuf.Buffer) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shut {
		return 0, net.ErrClosed
	}

	total := 0
	for len(c.queue) > 0 {
		room := dst.Room()
		if room == 0 {
			break
		}
		chunk := c.queue[0]
		take := len(chunk)
		if take > room {
			take = room
		}
		if _, err := dst.Write(chunk[:take]); err != nil {
			return total, err
		}
		total += take
		if take == len(chunk) {
			c.queue[0] = nil
			c.queue = c.queue[1:]
		} else {
			c.queue[0] = chunk[take:]
		}
	}
	c.avail -= total
	if total > 0 {
		c.cond.Broadcast()
	}
	return total, nil
}

// Write sends p in full, honouring the configured write deadline.
func (c *Conn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.raw.Write(p)
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// Close shuts the socket and waits for the reader goroutine to exit.
// Queued bytes are discarded.  Close is idempotent.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.shut = true
		c.queue = nil
		c.avail = 0
		c.cond.Broadcast()
		c.mu.Unlock()

		err = c.raw.Close()
		<-c.done
	})
	return err
}
