package config

import (
	"time"

	chaterr "minechat/internal/errors"
	"minechat/util"
)

// Validate checks that the configuration is internally consistent.
// The first problem found is returned as a *errors.ConfigError.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &chaterr.ConfigError{
			Field:   "host",
			Message: "chat host is required",
			Hint:    "pass --host or set MINECHAT_HOST",
		}
	}
	if !util.ValidPort(c.ReadingPort) {
		return portError("reading-port", c.ReadingPort)
	}
	if !util.ValidPort(c.WritingPort) {
		return portError("writing-port", c.WritingPort)
	}

	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"small-timeout", c.SmallTimeout},
		{"big-timeout", c.BigTimeout},
		{"ping-interval", c.PingInterval},
		{"watchdog-window", c.WatchdogWindow},
		{"handshake-timeout", c.HandshakeTimeout},
	} {
		if d.value <= 0 {
			return &chaterr.ConfigError{
				Field:   d.field,
				Value:   d.value,
				Message: "must be positive",
			}
		}
	}
	if c.WatchdogWindow <= c.SmallTimeout {
		return &chaterr.ConfigError{
			Field:   "watchdog-window",
			Value:   c.WatchdogWindow,
			Message: "must be longer than --small-timeout",
			Hint:    "idle reads time out every --small-timeout; the window has to outlast at least one of them",
		}
	}

	if c.Register && c.Send != "" {
		return &chaterr.ConfigError{
			Field:   "register",
			Message: "--register and --send are mutually exclusive",
		}
	}
	if c.Register && c.Nickname == "" {
		return &chaterr.ConfigError{
			Field:   "nickname",
			Message: "required with --register",
			Hint:    "pass --nickname <name>",
		}
	}
	if !c.Register && c.Token == "" && c.Nickname == "" {
		return &chaterr.ConfigError{
			Field:   "token",
			Message: "either a token or a nickname is required",
			Hint:    "pass --token <hash>, or --nickname <name> to register a new account",
		}
	}
	if c.SignUpFallback && c.Nickname == "" {
		return &chaterr.ConfigError{
			Field:   "signup-fallback",
			Message: "needs a nickname to sign up with",
			Hint:    "pass --nickname <name>",
		}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return &chaterr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "tunnel host is required",
			Hint:    "use -T [user@]host[:port]",
		}
	}
	return nil
}

func portError(field string, port int) error {
	return &chaterr.ConfigError{
		Field:   field,
		Value:   port,
		Message: "out of range 1-65535",
		Hint:    "use a port between 1 and 65535",
	}
}
