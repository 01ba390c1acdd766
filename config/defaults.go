package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultHost is the public chat server.
	DefaultHost = "minechat.dvmn.org"

	// DefaultReadingPort streams incoming chat lines.
	DefaultReadingPort = 5000

	// DefaultWritingPort accepts the handshake and outgoing messages.
	DefaultWritingPort = 5050

	// DefaultHistoryFile is the append-only chat log.
	DefaultHistoryFile = "minechat.history"

	// DefaultTokenDir is where <nickname>.token files are written.
	DefaultTokenDir = "."

	// DefaultSmallTimeout bounds each read on the reading socket and
	// each ping echo.
	DefaultSmallTimeout = 1 * time.Second

	// DefaultBigTimeout is the backoff before retrying after a name
	// resolution failure or an unexpected error.
	DefaultBigTimeout = 5 * time.Second

	// DefaultPingInterval is the pause between liveness probes.
	DefaultPingInterval = 1 * time.Second

	// DefaultWatchdogWindow is how long the connection group may go
	// without evidence of life before it is torn down.
	DefaultWatchdogWindow = 3 * time.Second

	// DefaultHandshakeTimeout bounds each read during sign-in/sign-up.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultDialTimeout is the TCP connect timeout.
	DefaultDialTimeout = 10 * time.Second

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22
)
