package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"civlink/util"
)

// Scheme is the optional URL scheme accepted by [ParseServerURL].
const Scheme = "civlink"

// ServerURL is a parsed server address.  The zero value means "the
// default server" once [ServerURL.WithDefaults] is applied.
type ServerURL struct {
	Host     string
	Port     int
	Username string
}

// ParseServerURL accepts "[civlink://][user@]host[:port]".  Every part
// is optional; an empty string yields the zero ServerURL.
func ParseServerURL(raw string) (ServerURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ServerURL{}, nil
	}
	if !strings.Contains(raw, "://") {
		raw = Scheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ServerURL{}, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != Scheme {
		return ServerURL{}, fmt.Errorf("unsupported scheme %q (want %s://)", u.Scheme, Scheme)
	}
	if u.Path != "" && u.Path != "/" {
		return ServerURL{}, fmt.Errorf("unexpected path %q in server URL", u.Path)
	}

	out := ServerURL{Host: u.Hostname()}
	if u.User != nil {
		out.Username = u.User.Username()
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return ServerURL{}, fmt.Errorf("invalid port %q", p)
		}
		out.Port = port
	}
	return out, nil
}

// WithDefaults resolves an empty host to localhost and a non-positive
// port to the default game port.
func (u ServerURL) WithDefaults() ServerURL {
	if u.Host == "" {
		u.Host = DefaultServerHost
	}
	if u.Port <= 0 {
		u.Port = DefaultServerPort
	}
	return u
}

// Addr returns the dialable "host:port".
func (u ServerURL) Addr() string {
	return util.FormatAddr(u.Host, u.Port)
}

// String renders the URL for display, without the scheme.
func (u ServerURL) String() string {
	host := u.Host
	if u.Port > 0 {
		host = u.Addr()
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if u.Username != "" {
		return u.Username + "@" + host
	}
	return host
}
