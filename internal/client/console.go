package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"civlink/config"
	"civlink/internal/codec"
	"civlink/internal/session"
	"civlink/util"
)

const helpText = `Commands:
  /connect [url]   connect to url, or the configured server
  /disconnect      close the current session
  /stats           print session statistics as JSON
  /quit            disconnect and exit`

// Console prints user-facing messages.  It satisfies both
// session.Notifier and autoconnect.Notifier.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Notify writes msg on its own line.
func (c *Console) Notify(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, msg)
}

func (c *Console) printf(format string, args ...interface{}) {
	c.Notify(fmt.Sprintf(format, args...))
}

// Handler is the default packet handler: join messages go to the
// console and everything else is logged.
type Handler struct {
	Console *Console
	Logger  *util.Logger
}

// HandlePacket implements session.Handler.
func (h *Handler) HandlePacket(s *session.Session, pkt codec.Packet) {
	switch p := pkt.Payload.(type) {
	case *codec.JoinReply:
		if p.YouCanJoin {
			h.Console.printf("Joined %s as connection %d.", s.Target(), p.ConnID)
			if p.Message != "" {
				h.Console.Notify(p.Message)
			}
		}
	case []byte:
		h.Logger.Debug("%s: %d byte(s)", pkt.Type, len(p))
	}
}

// ── commands ─────────────────────────────────────────────────────────

type command struct {
	name string
	arg  string
}

func parseCommand(line string) (command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, false
	}
	cmd := command{name: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		cmd.arg = fields[1]
	}
	return cmd, true
}

// readLines feeds out with commands from r until r ends or stop is
// closed.  out is closed on return.
func readLines(r io.Reader, out chan<- command, stop <-chan struct{}) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		cmd, ok := parseCommand(sc.Text())
		if !ok {
			continue
		}
		select {
		case out <- cmd:
		case <-stop:
			return
		}
	}
}

// resolveTarget parses a /connect argument.  Missing parts are taken
// from def.
func resolveTarget(arg string, def config.ServerURL) (config.ServerURL, error) {
	if arg == "" {
		return def, nil
	}
	u, err := config.ParseServerURL(arg)
	if err != nil {
		return config.ServerURL{}, err
	}
	if u.Username == "" {
		u.Username = def.Username
	}
	return u.WithDefaults(), nil
}
