package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Options are the user preferences persisted between runs.
type Options struct {
	SaveOptionsOnExit bool   `toml:"save_options_on_exit"`
	UsePrevServer     bool   `toml:"use_prev_server"`
	DefaultServerHost string `toml:"default_server_host"`
	DefaultServerPort int    `toml:"default_server_port"`
	DefaultUsername   string `toml:"default_username"`
}

// DefaultOptions mirrors a fresh installation.
func DefaultOptions() Options {
	return Options{
		SaveOptionsOnExit: true,
		UsePrevServer:     true,
		DefaultServerHost: DefaultServerHost,
		DefaultServerPort: DefaultServerPort,
	}
}

// DefaultOptionsPath returns the options file under the user config dir.
func DefaultOptionsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, filepath.FromSlash(DefaultOptionsFile)), nil
}

// OptionsStore guards the options shared by the CLI and the session's
// save-on-exit hook.
type OptionsStore struct {
	path string

	mu   sync.Mutex
	opts Options
}

// LoadOptions reads path.  A missing file yields [DefaultOptions].
func LoadOptions(path string) (*OptionsStore, error) {
	s := &OptionsStore{path: path, opts: DefaultOptions()}
	if path == "" {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s.opts); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("options parse failed (%s): %w", path, err)
	}
	return s, nil
}

// Get returns a copy of the current options.
func (s *OptionsStore) Get() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Update applies fn to the options under the lock.
func (s *OptionsStore) Update(fn func(*Options)) {
	s.mu.Lock()
	fn(&s.opts)
	s.mu.Unlock()
}

// SaveOnExit reports whether options are written on disconnect.
func (s *OptionsStore) SaveOnExit() bool {
	return s.Get().SaveOptionsOnExit
}

// RememberServer stores the last server used when UsePrevServer is set.
func (s *OptionsStore) RememberServer(u ServerURL) {
	s.Update(func(o *Options) {
		if !o.UsePrevServer {
			return
		}
		o.DefaultServerHost = u.Host
		o.DefaultServerPort = u.WithDefaults().Port
	})
}

// DefaultServer returns the remembered server as a ServerURL.
func (s *OptionsStore) DefaultServer() ServerURL {
	o := s.Get()
	return ServerURL{Host: o.DefaultServerHost, Port: o.DefaultServerPort, Username: o.DefaultUsername}
}

// Save writes the options file atomically.  A store without a path is
// a no-op.
func (s *OptionsStore) Save() error {
	if s.path == "" {
		return nil
	}
	opts := s.Get()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("options save failed (%s): %w", s.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".options-*.toml")
	if err != nil {
		return fmt.Errorf("options save failed (%s): %w", s.path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := toml.NewEncoder(tmp).Encode(opts); err != nil {
		tmp.Close()
		return fmt.Errorf("options encode failed (%s): %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("options save failed (%s): %w", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("options save failed (%s): %w", s.path, err)
	}
	return nil
}
