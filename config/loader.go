package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the MINECHAT_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive); anything else that is
// non-empty means false.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty,
// well-formed env vars override the existing value.  This should be
// called BEFORE CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("MINECHAT_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("MINECHAT_READING_PORT"); v > 0 {
		cfg.ReadingPort = v
	}
	if v := envInt("MINECHAT_WRITING_PORT"); v > 0 {
		cfg.WritingPort = v
	}

	// Identity
	if v := os.Getenv("MINECHAT_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("MINECHAT_NICKNAME"); v != "" {
		cfg.Nickname = v
	}
	if v := os.Getenv("MINECHAT_TOKEN_DIR"); v != "" {
		cfg.TokenDir = v
	}
	if v, ok := envBool("MINECHAT_SIGNUP_FALLBACK"); ok {
		cfg.SignUpFallback = v
	}

	// Storage
	if v := os.Getenv("MINECHAT_HISTORY_FILE"); v != "" {
		cfg.HistoryFile = v
	}
	if v, ok := envBool("MINECHAT_HISTORY_TIMESTAMPS"); ok {
		cfg.HistoryTimestamps = v
	}

	// Timing
	if v := envDuration("MINECHAT_SMALL_TIMEOUT"); v > 0 {
		cfg.SmallTimeout = v
	}
	if v := envDuration("MINECHAT_BIG_TIMEOUT"); v > 0 {
		cfg.BigTimeout = v
	}
	if v := envDuration("MINECHAT_PING_INTERVAL"); v > 0 {
		cfg.PingInterval = v
	}
	if v := envDuration("MINECHAT_WATCHDOG_WINDOW"); v > 0 {
		cfg.WatchdogWindow = v
	}

	// SSH tunnel
	if v := os.Getenv("MINECHAT_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("MINECHAT_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if v, ok := envBool("MINECHAT_SSH_AGENT"); ok {
		cfg.UseSSHAgent = v
	}
	if v, ok := envBool("MINECHAT_STRICT_HOSTKEY"); ok {
		cfg.StrictHostKey = v
	}
	if v := os.Getenv("MINECHAT_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("MINECHAT_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) (value, ok bool) {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return false, false
	}
	return v == "1" || v == "true" || v == "yes", true
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
