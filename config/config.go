// Package config defines the runtime configuration for minechat and
// provides helpers for parsing tunnel specifications and durations.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds every tuneable for a single minechat process.  It is
// filled once (defaults, then environment, then flags) and not
// modified after validation.
type Config struct {
	// ── Chat server ──────────────────────────────────────────────────
	Host        string
	ReadingPort int
	WritingPort int

	// ── Identity ─────────────────────────────────────────────────────
	Token          string
	Nickname       string
	TokenDir       string // where <nickname>.token files live
	SignUpFallback bool   // fall through to sign-up when the token is rejected

	// ── Storage ──────────────────────────────────────────────────────
	HistoryFile       string
	HistoryTimestamps bool

	// ── Timing ───────────────────────────────────────────────────────
	SmallTimeout     time.Duration // per-read bound and ping echo deadline
	BigTimeout       time.Duration // backoff before a delayed retry
	PingInterval     time.Duration
	WatchdogWindow   time.Duration
	HandshakeTimeout time.Duration
	DialTimeout      time.Duration

	// ── Mode ─────────────────────────────────────────────────────────
	Register bool   // sign up once, save the token and exit
	Send     string // send one message and exit

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Host:              DefaultHost,
		ReadingPort:       DefaultReadingPort,
		WritingPort:       DefaultWritingPort,
		TokenDir:          DefaultTokenDir,
		HistoryFile:       DefaultHistoryFile,
		HistoryTimestamps: true,
		SmallTimeout:      DefaultSmallTimeout,
		BigTimeout:        DefaultBigTimeout,
		PingInterval:      DefaultPingInterval,
		WatchdogWindow:    DefaultWatchdogWindow,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		DialTimeout:       DefaultDialTimeout,
		Verbose:           1,
	}
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec, if set, into the Tunnel* fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Duration parser ──────────────────────────────────────────────────

// ParseDuration accepts Go duration syntax ("1.5s", "200ms") or a bare
// number of seconds ("3", "0.5").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
