// Package localserver launches a game server as a child process so the
// client can play against it, and stops it again when the session ends.
package localserver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"civlink/util"
)

// ErrNotRunning is returned when an operation needs a live server.
var ErrNotRunning = errors.New("local server is not running")

// Server is one child server process.  It satisfies the session's
// ServerKiller.
type Server struct {
	Command     string
	GracePeriod time.Duration
	Output      io.Writer // child stdout and stderr; nil discards

	logger *util.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// New returns a Server for command.  It is not started.
func New(command string, grace time.Duration, logger *util.Logger) *Server {
	return &Server{Command: command, GracePeriod: grace, logger: logger.With("server")}
}

// Start launches the command through the system shell.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return fmt.Errorf("local server already started (pid %d)", s.cmd.Process.Pid)
	}
	if s.Command == "" {
		return errors.New("no local server command configured")
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd.exe", "/C", s.Command)
	} else {
		cmd = exec.Command("/bin/sh", "-c", s.Command)
	}
	if s.Output != nil {
		cmd.Stdout = s.Output
		cmd.Stderr = s.Output
		// Grandchildren may hold the pipe open after the shell dies.
		cmd.WaitDelay = time.Second
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting local server %q: %w", s.Command, err)
	}
	s.logger.Verbose("started %q (pid %d)", s.Command, cmd.Process.Pid)

	s.cmd = cmd
	s.done = make(chan struct{})
	go s.wait(cmd, s.done)
	return nil
}

func (s *Server) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(done)
	if err != nil {
		s.logger.Debug("exited: %v", err)
	} else {
		s.logger.Debug("exited")
	}
}

// Running reports whether the child is still alive.
func (s *Server) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Done is closed when the child exits.  It is nil before Start.
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the child's exit error once it has exited.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// KillServer stops the child.  Without force it is sent SIGTERM and
// given GracePeriod to exit before being killed.  Killing a server that
// is not running does nothing.
func (s *Server) KillServer(force bool) {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()
	if cmd == nil || !s.Running() {
		return
	}

	if !force && s.GracePeriod > 0 {
		if err := cmd.Process.Signal(syscall.SIGTERM); err == nil {
			t := time.NewTimer(s.GracePeriod)
			defer t.Stop()
			select {
			case <-done:
				s.logger.Verbose("stopped")
				return
			case <-t.C:
				s.logger.Warn("did not stop within %s, killing", s.GracePeriod)
			}
		}
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debug("kill: %v", err)
	}
	<-done
	s.logger.Verbose("killed")
}
